package scene

import (
	"context"
	"sort"
)

// Scene is a contiguous span between two detected content changes.
type Scene struct {
	ID         int     `json:"scene_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
}

// Duration returns the scene length in seconds.
func (s Scene) Duration() float64 {
	return s.EndTime - s.StartTime
}

// MidFrame returns the representative frame index of the scene.
func (s Scene) MidFrame() int {
	return (s.StartFrame + s.EndFrame) / 2
}

// Boundary is a raw detector result before scene ids are assigned.
type Boundary struct {
	StartTime  float64
	EndTime    float64
	StartFrame int
	EndFrame   int
}

// Detector reports scene boundaries for a video at a sensitivity threshold.
// Lower thresholds are more sensitive.
type Detector interface {
	Detect(ctx context.Context, path string, threshold float64, minSceneLength int) ([]Boundary, error)
}

// FromBoundaries orders boundaries by start and assigns increasing scene ids
// starting at zero. Empty spans are skipped.
func FromBoundaries(boundaries []Boundary) []Scene {
	ordered := append([]Boundary(nil), boundaries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartFrame < ordered[j].StartFrame
	})
	scenes := make([]Scene, 0, len(ordered))
	for _, b := range ordered {
		if b.EndTime <= b.StartTime || b.EndFrame < b.StartFrame {
			continue
		}
		scenes = append(scenes, Scene{
			ID:         len(scenes),
			StartTime:  b.StartTime,
			EndTime:    b.EndTime,
			StartFrame: b.StartFrame,
			EndFrame:   b.EndFrame,
		})
	}
	return scenes
}

// AverageDuration returns the mean scene duration, or 0 for no scenes.
func AverageDuration(scenes []Scene) float64 {
	if len(scenes) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range scenes {
		total += s.Duration()
	}
	return total / float64(len(scenes))
}
