package quality

import (
	"fmt"
	"image"
)

// Metrics is the verdict for one frame.
type Metrics struct {
	FrameID           int     `json:"frame_id"`
	LaplacianVariance float64 `json:"laplacian_variance"`
	AvgIntensity      float64 `json:"avg_intensity"`
	IntensityStd      float64 `json:"intensity_std"`
	IsSharp           bool    `json:"is_sharp"`
	IsTransition      bool    `json:"is_transition"`
	PassesQuality     bool    `json:"passes_quality"`
	RejectionReason   string  `json:"rejection_reason"`
}

// Gate holds the thresholds frames are judged against.
type Gate struct {
	BlurThreshold      float64
	FadeBlackThreshold float64
	FadeWhiteThreshold float64
	FadeStdThreshold   float64
}

// DefaultGate returns the stock thresholds.
func DefaultGate() Gate {
	return Gate{
		BlurThreshold:      100,
		FadeBlackThreshold: 25,
		FadeWhiteThreshold: 230,
		FadeStdThreshold:   15,
	}
}

// Evaluate measures img and classifies it.
func (g Gate) Evaluate(img image.Image, frameID int) Metrics {
	gray := Grayscale(img)
	mean, std := gray.MeanStd()
	return g.Classify(frameID, gray.LaplacianVariance(), mean, std)
}

// Classify applies the gate's decision rules to precomputed measurements.
func (g Gate) Classify(frameID int, blurScore, mean, std float64) Metrics {
	sharp := blurScore >= g.BlurThreshold
	transition := g.isTransition(mean, std)

	reason := ""
	switch {
	case !sharp:
		reason = fmt.Sprintf("blur (score=%.1f < %g)", blurScore, g.BlurThreshold)
	case transition:
		reason = fmt.Sprintf("fade/transition (intensity=%.1f, std=%.1f)", mean, std)
	}

	return Metrics{
		FrameID:           frameID,
		LaplacianVariance: blurScore,
		AvgIntensity:      mean,
		IntensityStd:      std,
		IsSharp:           sharp,
		IsTransition:      transition,
		PassesQuality:     sharp && !transition,
		RejectionReason:   reason,
	}
}

func (g Gate) isTransition(mean, std float64) bool {
	switch {
	case mean < g.FadeBlackThreshold && std < g.FadeStdThreshold:
		return true
	case mean > g.FadeWhiteThreshold && std < g.FadeStdThreshold:
		return true
	default:
		return std < g.FadeStdThreshold/2
	}
}
