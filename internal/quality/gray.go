package quality

import (
	"image"
	"math"
)

// Gray is an 8-bit single-channel frame.
type Gray struct {
	Width  int
	Height int
	Pix    []uint8
}

// Grayscale converts img using Y = 0.299R + 0.587G + 0.114B, rounded.
func Grayscale(img image.Image) Gray {
	b := img.Bounds()
	g := Gray{Width: b.Dx(), Height: b.Dy(), Pix: make([]uint8, b.Dx()*b.Dy())}

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < g.Height; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			for x := 0; x < g.Width; x++ {
				p := row[x*4 : x*4+3 : x*4+3]
				g.Pix[y*g.Width+x] = luma(p[0], p[1], p[2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < g.Height; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			for x := 0; x < g.Width; x++ {
				p := row[x*4 : x*4+3 : x*4+3]
				g.Pix[y*g.Width+x] = luma(p[0], p[1], p[2])
			}
		}
	default:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				g.Pix[y*g.Width+x] = luma(uint8(r>>8), uint8(gr>>8), uint8(bl>>8))
			}
		}
	}
	return g
}

func luma(r, g, b uint8) uint8 {
	y := math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
	if y > 255 {
		return 255
	}
	return uint8(y)
}

// MeanStd returns the population mean and standard deviation of the pixels.
func (g Gray) MeanStd() (float64, float64) {
	if len(g.Pix) == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range g.Pix {
		sum += float64(p)
	}
	mean := sum / float64(len(g.Pix))
	var sq float64
	for _, p := range g.Pix {
		d := float64(p) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(g.Pix)))
}

// LaplacianVariance returns the population variance of the response to the
// kernel [0 1 0; 1 -4 1; 0 1 0], mirroring edges without repeating the border
// pixel (reflect-101).
func (g Gray) LaplacianVariance() float64 {
	n := len(g.Pix)
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := 0; y < g.Height; y++ {
		up := reflect101(y-1, g.Height) * g.Width
		down := reflect101(y+1, g.Height) * g.Width
		row := y * g.Width
		for x := 0; x < g.Width; x++ {
			left := reflect101(x-1, g.Width)
			right := reflect101(x+1, g.Width)
			v := float64(g.Pix[up+x]) + float64(g.Pix[down+x]) +
				float64(g.Pix[row+left]) + float64(g.Pix[row+right]) -
				4*float64(g.Pix[row+x])
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		return 0
	}
	return variance
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
