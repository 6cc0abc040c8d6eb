package main

import (
	"fmt"
	"sort"
	"strings"

	"keyframer/internal/pipeline"
)

// extractSummary is the --json shape of a finished run.
type extractSummary struct {
	RunID          string            `json:"run_id"`
	VideoID        string            `json:"video_id"`
	Mode           string            `json:"mode"`
	Converged      *bool             `json:"converged,omitempty"`
	Stats          pipeline.Stats    `json:"stats"`
	ReportPath     string            `json:"report_path"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
	FinalKeyframes []string          `json:"final_keyframes"`
}

func newExtractSummary(result pipeline.Result) extractSummary {
	summary := extractSummary{
		RunID:          result.RunID,
		VideoID:        result.VideoID,
		Mode:           result.Report.SceneMetadata.Mode,
		Stats:          result.Stats,
		ReportPath:     result.ReportPath,
		Artifacts:      result.Artifacts,
		FinalKeyframes: make([]string, 0, len(result.Report.FinalKeyframes)),
	}
	if search := result.Report.SceneMetadata.SearchMetadata; search != nil {
		converged := search.Converged
		summary.Converged = &converged
	}
	for _, kf := range result.Report.FinalKeyframes {
		summary.FinalKeyframes = append(summary.FinalKeyframes, kf.Path)
	}
	return summary
}

func renderSummary(result pipeline.Result, colorize bool) string {
	s := result.Stats
	rows := [][]string{
		{"Video", s.VideoPath},
		{"Video ID", result.VideoID},
		{"Duration", seconds(s.VideoDuration)},
		{"Processing time", seconds(s.ProcessingTime)},
		{"Detection", detectionLabel(result.Report.SceneMetadata)},
		{"Scenes detected", fmt.Sprintf("%d (avg %s)", s.ScenesDetected, seconds(s.AvgSceneDuration))},
		{"Frames extracted", fmt.Sprintf("%d", s.FramesExtracted)},
		{"Blur rejected", countWithPercent(s.FramesBlurRejected, s.BlurRejectedPercent)},
		{"Transition rejected", countWithPercent(s.FramesTransitionRejected, s.TransitionRejectedPercent)},
		{"Duplicates removed", countWithPercent(s.FramesDedupRemoved, s.DedupRemovedPercent)},
		{"Final keyframes", countWithPercent(s.FramesFinal, s.FinalPercent)},
		{"Blur score min/avg/max", fmt.Sprintf("%.1f / %.1f / %.1f", s.MinBlurScore, s.AvgBlurScore, s.MaxBlurScore)},
		{"Report", result.ReportPath},
	}

	names := make([]string, 0, len(result.Artifacts))
	for name := range result.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{artifactLabel(name), result.Artifacts[name]})
	}

	return renderTable(
		[]string{"Metric", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
		tableOptions{title: "Processing Summary", colorize: colorize},
	)
}

func detectionLabel(meta pipeline.SceneMetadata) string {
	label := fmt.Sprintf("%s, threshold %.2f", meta.Mode, meta.ThresholdUsed)
	if search := meta.SearchMetadata; search != nil {
		label += fmt.Sprintf(", %d probes, converged %s", len(search.Iterations), yesNo(search.Converged))
	}
	return label
}

func countWithPercent(n int, percent float64) string {
	return fmt.Sprintf("%d (%.1f%%)", n, percent)
}

func seconds(value float64) string {
	return fmt.Sprintf("%.2fs", value)
}

func artifactLabel(name string) string {
	switch name {
	case "contact_sheet":
		return "Contact sheet"
	case "html_report":
		return "HTML report"
	default:
		return strings.ReplaceAll(name, "_", " ")
	}
}
