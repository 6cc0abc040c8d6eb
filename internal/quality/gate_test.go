package quality

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	return img
}

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// opaque hides the concrete type so Grayscale takes the generic path.
type opaque struct{ image.Image }

func TestClassifyBlurBoundaryIsInclusive(t *testing.T) {
	gate := DefaultGate()
	m := gate.Classify(3, 100, 128, 50)
	if !m.IsSharp || !m.PassesQuality || m.RejectionReason != "" {
		t.Fatalf("blur score equal to threshold must pass, got %+v", m)
	}
	m = gate.Classify(3, 99.99, 128, 50)
	if m.IsSharp || m.PassesQuality {
		t.Fatalf("blur score below threshold must fail, got %+v", m)
	}
}

func TestClassifyRules(t *testing.T) {
	gate := DefaultGate()
	tests := []struct {
		name       string
		blur       float64
		mean, std  float64
		transition bool
		reason     string
	}{
		{"sharp and textured", 150, 128, 40, false, ""},
		{"blurry", 40, 128, 40, false, "blur (score=40.0 < 100)"},
		{"fade to black", 150, 10, 10, true, "fade/transition (intensity=10.0, std=10.0)"},
		{"fade to white", 150, 240, 12, true, "fade/transition (intensity=240.0, std=12.0)"},
		{"flat mid gray", 150, 128, 7, true, "fade/transition (intensity=128.0, std=7.0)"},
		{"dim but textured", 150, 20, 20, false, ""},
		{"moderate std not flat", 150, 128, 10, false, ""},
		{"blurry fade reports blur only", 12.34, 5, 1, true, "blur (score=12.3 < 100)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := gate.Classify(7, tc.blur, tc.mean, tc.std)
			if m.FrameID != 7 {
				t.Fatalf("frame id %d, want 7", m.FrameID)
			}
			if m.IsTransition != tc.transition {
				t.Fatalf("IsTransition = %v, want %v", m.IsTransition, tc.transition)
			}
			if m.RejectionReason != tc.reason {
				t.Fatalf("reason %q, want %q", m.RejectionReason, tc.reason)
			}
			if m.PassesQuality != (m.IsSharp && !m.IsTransition) {
				t.Fatalf("inconsistent verdict %+v", m)
			}
			if (m.RejectionReason == "") != m.PassesQuality {
				t.Fatalf("reason must be empty iff frame passes, got %+v", m)
			}
		})
	}
}

func TestLumaRounding(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    uint8
	}{
		{255, 0, 0, 76},
		{0, 255, 0, 150},
		{0, 0, 255, 29},
		{255, 255, 255, 255},
		{0, 0, 0, 0},
	}
	for _, tc := range tests {
		if got := luma(tc.r, tc.g, tc.b); got != tc.want {
			t.Fatalf("luma(%d,%d,%d) = %d, want %d", tc.r, tc.g, tc.b, got, tc.want)
		}
	}
}

func TestEvaluateCheckerboardIsSharp(t *testing.T) {
	m := DefaultGate().Evaluate(checkerboard(8, 6), 0)
	if math.Abs(m.LaplacianVariance-1020*1020) > 1e-6 {
		t.Fatalf("unexpected laplacian variance %v", m.LaplacianVariance)
	}
	if m.AvgIntensity != 127.5 || m.IntensityStd != 127.5 {
		t.Fatalf("unexpected intensity stats %v/%v", m.AvgIntensity, m.IntensityStd)
	}
	if !m.PassesQuality {
		t.Fatalf("expected checkerboard to pass, got %+v", m)
	}
}

func TestEvaluateUniformFrameIsRejectedForBlur(t *testing.T) {
	m := DefaultGate().Evaluate(uniform(16, 9, color.RGBA{R: 5, G: 5, B: 5, A: 255}), 4)
	if m.LaplacianVariance != 0 || m.IntensityStd != 0 {
		t.Fatalf("expected zero variance, got %+v", m)
	}
	if m.IsSharp || !m.IsTransition {
		t.Fatalf("expected blurry transition, got %+v", m)
	}
	if m.RejectionReason != "blur (score=0.0 < 100)" {
		t.Fatalf("unexpected reason %q", m.RejectionReason)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	img := checkerboard(10, 10)
	img.Set(3, 3, color.RGBA{R: 90, G: 30, B: 200, A: 255})
	gate := DefaultGate()
	first := gate.Evaluate(img, 2)
	for i := 0; i < 3; i++ {
		if again := gate.Evaluate(img, 2); again != first {
			t.Fatalf("evaluation %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestGrayscaleFastPathMatchesGeneric(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 50), B: uint8((x + y) * 17), A: 255})
		}
	}
	sub := img.SubImage(image.Rect(2, 1, 6, 4))

	fast := Grayscale(sub)
	generic := Grayscale(opaque{sub})
	if fast.Width != 4 || fast.Height != 3 {
		t.Fatalf("unexpected dimensions %dx%d", fast.Width, fast.Height)
	}
	for i := range fast.Pix {
		if fast.Pix[i] != generic.Pix[i] {
			t.Fatalf("pixel %d differs: fast=%d generic=%d", i, fast.Pix[i], generic.Pix[i])
		}
	}
}

func TestReflect101(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 5, 1},
		{5, 5, 3},
		{0, 5, 0},
		{-1, 1, 0},
		{1, 1, 0},
		{-3, 2, 1},
	}
	for _, tc := range tests {
		if got := reflect101(tc.i, tc.n); got != tc.want {
			t.Fatalf("reflect101(%d, %d) = %d, want %d", tc.i, tc.n, got, tc.want)
		}
	}
}
