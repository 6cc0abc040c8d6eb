package pipeline

import (
	"keyframer/internal/media"
	"keyframer/internal/quality"
	"keyframer/internal/scene"
)

// Stats aggregates the counts and blur scores of one run.
type Stats struct {
	VideoPath          string  `json:"video_path"`
	VideoDuration      float64 `json:"video_duration"`
	ProcessingTime     float64 `json:"processing_time"`
	ScenesDetected     int     `json:"scenes_detected"`
	AvgSceneDuration   float64 `json:"avg_scene_duration"`
	DetectionThreshold float64 `json:"detection_threshold"`

	FramesExtracted          int `json:"frames_extracted"`
	FramesBlurRejected       int `json:"frames_blur_rejected"`
	FramesTransitionRejected int `json:"frames_transition_rejected"`
	FramesDedupRemoved       int `json:"frames_dedup_removed"`
	FramesFinal              int `json:"frames_final"`

	// Blur scores are taken over frames that passed the quality gate.
	AvgBlurScore float64 `json:"avg_blur_score"`
	MinBlurScore float64 `json:"min_blur_score"`
	MaxBlurScore float64 `json:"max_blur_score"`

	BlurRejectedPercent       float64 `json:"blur_rejected_percent"`
	TransitionRejectedPercent float64 `json:"transition_rejected_percent"`
	DedupRemovedPercent       float64 `json:"dedup_removed_percent"`
	FinalPercent              float64 `json:"final_percent"`
}

// Percent expresses n relative to the number of extracted frames.
func (s Stats) Percent(n int) float64 {
	if s.FramesExtracted == 0 {
		return 0
	}
	return 100 * float64(n) / float64(s.FramesExtracted)
}

func buildStats(path string, info media.VideoInfo, detection scene.Detection, metrics []quality.Metrics, dedupRemoved, final int, elapsed float64) Stats {
	stats := Stats{
		VideoPath:          path,
		VideoDuration:      info.Duration,
		ProcessingTime:     elapsed,
		ScenesDetected:     len(detection.Scenes),
		AvgSceneDuration:   scene.AverageDuration(detection.Scenes),
		DetectionThreshold: detection.Threshold,
		FramesExtracted:    len(metrics),
		FramesDedupRemoved: dedupRemoved,
		FramesFinal:        final,
	}

	passed := 0
	sum := 0.0
	for _, m := range metrics {
		switch {
		case !m.IsSharp:
			stats.FramesBlurRejected++
		case m.IsTransition:
			stats.FramesTransitionRejected++
		default:
			if passed == 0 || m.LaplacianVariance < stats.MinBlurScore {
				stats.MinBlurScore = m.LaplacianVariance
			}
			if passed == 0 || m.LaplacianVariance > stats.MaxBlurScore {
				stats.MaxBlurScore = m.LaplacianVariance
			}
			sum += m.LaplacianVariance
			passed++
		}
	}
	if passed > 0 {
		stats.AvgBlurScore = sum / float64(passed)
	}

	stats.BlurRejectedPercent = stats.Percent(stats.FramesBlurRejected)
	stats.TransitionRejectedPercent = stats.Percent(stats.FramesTransitionRejected)
	stats.DedupRemovedPercent = stats.Percent(stats.FramesDedupRemoved)
	stats.FinalPercent = stats.Percent(stats.FramesFinal)
	return stats
}
