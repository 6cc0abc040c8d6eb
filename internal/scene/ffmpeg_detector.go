package scene

import (
	"context"
	"sync"

	"keyframer/internal/media"
)

// CutFinder reports the timestamps (seconds) where the content-change score
// exceeds score, on a 0..1 scale.
type CutFinder interface {
	SceneCuts(ctx context.Context, path string, score float64) ([]float64, error)
}

// FFmpegDetector implements Detector on top of ffmpeg's scene filter.
// Threshold is on the 0..100 content scale and maps to score threshold/100.
type FFmpegDetector struct {
	Cuts   CutFinder
	Prober media.Prober

	mu    sync.Mutex
	cache map[string]media.VideoInfo
}

// NewFFmpegDetector returns a detector that probes each path once.
func NewFFmpegDetector(cuts CutFinder, prober media.Prober) *FFmpegDetector {
	return &FFmpegDetector{Cuts: cuts, Prober: prober}
}

// Detect implements Detector.
func (d *FFmpegDetector) Detect(ctx context.Context, path string, threshold float64, minSceneLength int) ([]Boundary, error) {
	info, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	cuts, err := d.Cuts.SceneCuts(ctx, path, threshold/100)
	if err != nil {
		return nil, err
	}
	return BoundariesFromCuts(cuts, info, minSceneLength), nil
}

func (d *FFmpegDetector) probe(ctx context.Context, path string) (media.VideoInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info, ok := d.cache[path]; ok {
		return info, nil
	}
	info, err := d.Prober.Probe(ctx, path)
	if err != nil {
		return media.VideoInfo{}, err
	}
	if d.cache == nil {
		d.cache = make(map[string]media.VideoInfo)
	}
	d.cache[path] = info
	return info, nil
}

// BoundariesFromCuts converts cut timestamps into contiguous scene spans
// covering the whole video. Frame 0 always opens the first scene, cuts within
// minSceneLength frames of the previous boundary are merged into it, and the
// video's frame count closes the last scene.
func BoundariesFromCuts(cuts []float64, info media.VideoInfo, minSceneLength int) []Boundary {
	total := info.FrameCount
	if total <= 0 {
		total = info.FrameAt(info.Duration)
	}
	if total <= 0 {
		return nil
	}

	starts := []int{0}
	for _, cut := range cuts {
		frame := info.FrameAt(cut)
		if frame <= 0 || frame >= total {
			continue
		}
		prev := starts[len(starts)-1]
		if frame <= prev || frame-prev < minSceneLength {
			continue
		}
		starts = append(starts, frame)
	}

	boundaries := make([]Boundary, 0, len(starts))
	for i, start := range starts {
		end := total
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if end <= start {
			continue
		}
		boundaries = append(boundaries, Boundary{
			StartFrame: start,
			EndFrame:   end,
			StartTime:  info.Timestamp(start),
			EndTime:    info.Timestamp(end),
		})
	}
	return boundaries
}
