package visualize

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"keyframer/internal/fileutil"
	"keyframer/internal/pipeline"
)

//go:embed report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"seconds": func(v float64) string { return fmt.Sprintf("%.2fs", v) },
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"score":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
}).Parse(reportTemplate))

// HTMLReport writes a standalone page to <Dir>/<video_id>_report.html.
type HTMLReport struct {
	Dir string
}

type statBox struct {
	Label string
	Value string
}

type keyframeView struct {
	SceneID   int
	Timestamp float64
	Duration  float64
	Src       string
	Name      string
}

type reportView struct {
	VideoID    string
	RunID      string
	Report     pipeline.Report
	Boxes      []statBox
	Keyframes  []keyframeView
	Rejections []rejectionView
}

type rejectionView struct {
	FrameID int
	Reason  string
}

// Name implements pipeline.Renderer.
func (HTMLReport) Name() string { return "html_report" }

// Path returns the page location for a video id.
func (h HTMLReport) Path(videoID string) string {
	return filepath.Join(h.Dir, videoID+"_report.html")
}

// Render executes the template and writes the page atomically.
func (h HTMLReport) Render(ctx context.Context, report pipeline.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, h.view(report)); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	path := h.Path(report.VideoID)
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write html report: %w", err)
	}
	return path, nil
}

func (h HTMLReport) view(report pipeline.Report) reportView {
	s := report.Stats
	view := reportView{
		VideoID: report.VideoID,
		RunID:   report.RunID,
		Report:  report,
		Boxes: []statBox{
			{Label: "Scenes Detected", Value: fmt.Sprint(s.ScenesDetected)},
			{Label: "Final Keyframes", Value: fmt.Sprint(s.FramesFinal)},
			{Label: "Processing Time", Value: fmt.Sprintf("%.1fs", s.ProcessingTime)},
			{Label: "Blur Rejected", Value: fmt.Sprint(s.FramesBlurRejected)},
			{Label: "Transition Rejected", Value: fmt.Sprint(s.FramesTransitionRejected)},
			{Label: "Duplicates Removed", Value: fmt.Sprint(s.FramesDedupRemoved)},
		},
	}
	for _, kf := range report.FinalKeyframes {
		view.Keyframes = append(view.Keyframes, keyframeView{
			SceneID:   kf.SceneID,
			Timestamp: kf.Timestamp,
			Duration:  kf.Duration,
			Src:       h.relative(kf.Path),
			Name:      filepath.Base(kf.Path),
		})
	}
	for _, m := range report.QualityMetrics {
		if m.PassesQuality {
			continue
		}
		view.Rejections = append(view.Rejections, rejectionView{FrameID: m.FrameID, Reason: m.RejectionReason})
	}
	return view
}

// relative makes keyframe links work when the output directory is moved.
func (h HTMLReport) relative(path string) string {
	if rel, err := filepath.Rel(h.Dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
