// Package media holds the video metadata shared by the frame reader, the
// scene detector, and the pipeline.
package media

import "context"

// VideoInfo is the probe result the pipeline needs to map between frame
// indices and timestamps.
type VideoInfo struct {
	Path       string
	FrameRate  float64
	FrameCount int
	Duration   float64
	Width      int
	Height     int
}

// Timestamp converts a frame index to seconds. Returns 0 when the frame rate
// is unknown.
func (v VideoInfo) Timestamp(frame int) float64 {
	if v.FrameRate <= 0 {
		return 0
	}
	return float64(frame) / v.FrameRate
}

// FrameAt converts seconds to the nearest frame index.
func (v VideoInfo) FrameAt(seconds float64) int {
	if v.FrameRate <= 0 || seconds <= 0 {
		return 0
	}
	return int(seconds*v.FrameRate + 0.5)
}

// Prober reports video metadata for a path.
type Prober interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
}
