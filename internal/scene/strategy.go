package scene

import (
	"context"
	"fmt"

	"keyframer/internal/services"
)

// Detection modes.
const (
	ModeFixed    = "fixed"
	ModeAdaptive = "adaptive"
)

// Probe records one iteration of the adaptive search.
type Probe struct {
	Iteration int     `json:"iteration"`
	Threshold float64 `json:"threshold"`
	Scenes    int     `json:"scenes"`
	Diff      int     `json:"diff"`
}

// Detection is the outcome of a strategy run.
type Detection struct {
	Mode           string
	Scenes         []Scene
	Threshold      float64
	MinSceneLength int
	// Adaptive only.
	Target     int
	Tolerance  int
	Converged  bool
	Iterations []Probe
}

// Strategy produces the scenes for a video.
type Strategy interface {
	Detect(ctx context.Context, path string) (Detection, error)
}

// Fixed runs the detector once at Threshold.
type Fixed struct {
	Detector       Detector
	Threshold      float64
	MinSceneLength int
}

// Detect implements Strategy.
func (f Fixed) Detect(ctx context.Context, path string) (Detection, error) {
	boundaries, err := f.Detector.Detect(ctx, path, f.Threshold, f.MinSceneLength)
	if err != nil {
		return Detection{}, err
	}
	return Detection{
		Mode:           ModeFixed,
		Scenes:         FromBoundaries(boundaries),
		Threshold:      f.Threshold,
		MinSceneLength: f.MinSceneLength,
	}, nil
}

// Adaptive binary-searches the detector threshold in [Low, High] for a scene
// count within Tolerance of Target, probing at most MaxIterations times.
type Adaptive struct {
	Detector       Detector
	Target         int
	Tolerance      int
	MaxIterations  int
	Low            float64
	High           float64
	MinSceneLength int
	// OnProbe, when set, is called after each probe is recorded.
	OnProbe func(Probe)
}

type searchState struct {
	low, high     float64
	best          []Scene
	bestThreshold float64
	bestDiff      int
	haveBest      bool
}

// Detect implements Strategy. When no probe converges, the probe with the
// smallest diff wins; ties go to the earliest probe.
func (a Adaptive) Detect(ctx context.Context, path string) (Detection, error) {
	if a.Target <= 0 || a.MaxIterations <= 0 || a.Tolerance < 0 || a.Low >= a.High {
		return Detection{}, services.Wrap(services.ErrConfiguration, "scene detection", "adaptive search",
			fmt.Sprintf("invalid parameters (target=%d tolerance=%d iterations=%d bounds=%g..%g)",
				a.Target, a.Tolerance, a.MaxIterations, a.Low, a.High), nil)
	}

	result := Detection{
		Mode:           ModeAdaptive,
		MinSceneLength: a.MinSceneLength,
		Target:         a.Target,
		Tolerance:      a.Tolerance,
		Iterations:     make([]Probe, 0, a.MaxIterations),
	}
	state := searchState{low: a.Low, high: a.High}

	for iteration := 0; iteration < a.MaxIterations; iteration++ {
		mid := (state.low + state.high) / 2
		boundaries, err := a.Detector.Detect(ctx, path, mid, a.MinSceneLength)
		if err != nil {
			return Detection{}, fmt.Errorf("adaptive search iteration %d (threshold %.2f): %w", iteration, mid, err)
		}
		scenes := FromBoundaries(boundaries)
		count := len(scenes)
		diff := a.Target
		if count > 0 {
			diff = abs(count - a.Target)
		}

		probe := Probe{Iteration: iteration, Threshold: mid, Scenes: count, Diff: diff}
		result.Iterations = append(result.Iterations, probe)
		if a.OnProbe != nil {
			a.OnProbe(probe)
		}

		if !state.haveBest || diff < state.bestDiff {
			state.best = scenes
			state.bestThreshold = mid
			state.bestDiff = diff
			state.haveBest = true
		}

		if diff <= a.Tolerance {
			result.Scenes = scenes
			result.Threshold = mid
			result.Converged = true
			return result, nil
		}

		if count < a.Target {
			state.high = mid
		} else {
			state.low = mid
		}
	}

	result.Scenes = state.best
	result.Threshold = state.bestThreshold
	return result, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
