package pipeline

import (
	"context"
	"image"

	"keyframer/internal/dedup"
	"keyframer/internal/history"
	"keyframer/internal/media"
	"keyframer/internal/quality"
	"keyframer/internal/scene"
)

// FrameSource probes a video and reads single frames by index.
type FrameSource interface {
	Probe(ctx context.Context, path string) (media.VideoInfo, error)
	ReadFrame(ctx context.Context, path string, index int, info media.VideoInfo) (image.Image, error)
}

// Evaluator judges a single frame.
type Evaluator interface {
	Evaluate(img image.Image, frameID int) quality.Metrics
}

// Deduplicator removes near-duplicate frames from an ordered set.
type Deduplicator interface {
	Frames(frames []image.Image, ids []int) (dedup.Result, error)
}

// KeyframeStore persists selected frames.
type KeyframeStore interface {
	Save(ctx context.Context, videoID string, sc scene.Scene, img image.Image) (string, error)
	Remove(paths []string) error
	// Prune deletes keyframes of earlier runs that are not listed in keep.
	Prune(videoID string, keep []string) error
}

// ReportWriter persists the run report and returns its location.
type ReportWriter interface {
	Write(ctx context.Context, report Report) (string, error)
}

// Renderer produces an optional artifact from a finished report. An empty
// path with a nil error means there was nothing to render.
type Renderer interface {
	Name() string
	Render(ctx context.Context, report Report) (string, error)
}

// Locker serializes runs for the same video id.
type Locker interface {
	Lock(videoID string) (unlock func(), err error)
}

// RunRecorder receives one entry per finished run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run history.Run) error
}
