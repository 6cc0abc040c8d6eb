package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"keyframer/internal/dedup"
	"keyframer/internal/fileutil"
	"keyframer/internal/media"
	"keyframer/internal/quality"
	"keyframer/internal/scene"
)

// Report is the JSON document persisted for every successful run.
type Report struct {
	VideoID        string            `json:"video_id"`
	RunID          string            `json:"run_id"`
	Stats          Stats             `json:"stats"`
	SceneMetadata  SceneMetadata     `json:"scene_metadata"`
	QualityMetrics []quality.Metrics `json:"quality_metrics"`
	DuplicateInfo  []dedup.Record    `json:"duplicate_info"`
	FinalKeyframes []Keyframe        `json:"final_keyframes"`
}

// SceneMetadata describes how scenes were detected. Search details are only
// present for adaptive runs.
type SceneMetadata struct {
	Mode           string  `json:"mode"`
	TotalScenes    int     `json:"total_scenes"`
	FPS            float64 `json:"fps"`
	ThresholdUsed  float64 `json:"threshold_used"`
	MinSceneLength int     `json:"min_scene_length"`
	*SearchMetadata
}

// SearchMetadata carries the adaptive search trace.
type SearchMetadata struct {
	TargetScenes   int           `json:"target_scenes"`
	Tolerance      int           `json:"tolerance"`
	Converged      bool          `json:"converged"`
	FinalThreshold float64       `json:"final_threshold"`
	Iterations     []scene.Probe `json:"iterations"`
}

// Keyframe is one persisted frame.
type Keyframe struct {
	SceneID   int     `json:"scene_id"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration"`
	Path      string  `json:"path"`
}

func sceneMetadata(detection scene.Detection, info media.VideoInfo) SceneMetadata {
	meta := SceneMetadata{
		Mode:           detection.Mode,
		TotalScenes:    len(detection.Scenes),
		FPS:            info.FrameRate,
		ThresholdUsed:  detection.Threshold,
		MinSceneLength: detection.MinSceneLength,
	}
	if detection.Mode == scene.ModeAdaptive {
		iterations := detection.Iterations
		if iterations == nil {
			iterations = []scene.Probe{}
		}
		meta.SearchMetadata = &SearchMetadata{
			TargetScenes:   detection.Target,
			Tolerance:      detection.Tolerance,
			Converged:      detection.Converged,
			FinalThreshold: detection.Threshold,
			Iterations:     iterations,
		}
	}
	return meta
}

// JSONReportWriter writes reports to <Dir>/<video_id>_report.json.
type JSONReportWriter struct {
	Dir string
}

// Path returns the report location for a video id.
func (w JSONReportWriter) Path(videoID string) string {
	return filepath.Join(w.Dir, videoID+"_report.json")
}

// Write encodes the report with two-space indentation and writes it atomically.
func (w JSONReportWriter) Write(ctx context.Context, report Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	path := w.Path(report.VideoID)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}
