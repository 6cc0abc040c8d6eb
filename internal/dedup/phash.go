package dedup

import (
	"image"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

const (
	phashSample = 32
	phashSize   = 8
)

// PHash is the DCT perceptual hash: luminance downscaled to 32x32, 2-D DCT-II,
// and one bit per low-frequency coefficient in the top-left 8x8 block set when
// the coefficient exceeds the block's median. Bits are row-major, most
// significant first.
type PHash struct{}

var dctTable = buildDCTTable()

func buildDCTTable() [phashSize][phashSample]float64 {
	var table [phashSize][phashSample]float64
	for k := 0; k < phashSize; k++ {
		for n := 0; n < phashSample; n++ {
			table[k][n] = math.Cos(math.Pi * float64(k) * (2*float64(n) + 1) / (2 * phashSample))
		}
	}
	return table
}

// Fingerprint implements Fingerprinter.
func (PHash) Fingerprint(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, phashSample, phashSample))
	draw.CatmullRom.Scale(small, small.Bounds(), luminance(img), img.Bounds(), draw.Src, nil)

	var pixels [phashSample][phashSample]float64
	for y := 0; y < phashSample; y++ {
		for x := 0; x < phashSample; x++ {
			pixels[y][x] = float64(small.Pix[y*small.Stride+x])
		}
	}

	// Column transform, then row transform, keeping only the low 8 frequencies.
	var cols [phashSize][phashSample]float64
	for k := 0; k < phashSize; k++ {
		for x := 0; x < phashSample; x++ {
			var sum float64
			for y := 0; y < phashSample; y++ {
				sum += pixels[y][x] * dctTable[k][y]
			}
			cols[k][x] = sum
		}
	}
	coeffs := make([]float64, 0, phashSize*phashSize)
	for k := 0; k < phashSize; k++ {
		for l := 0; l < phashSize; l++ {
			var sum float64
			for x := 0; x < phashSample; x++ {
				sum += cols[k][x] * dctTable[l][x]
			}
			coeffs = append(coeffs, sum)
		}
	}

	med := median(coeffs)
	var hash uint64
	for i, c := range coeffs {
		if c > med {
			hash |= 1 << uint(63-i)
		}
	}
	return hash
}

func luminance(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			l := (299*(r>>8) + 587*(g>>8) + 114*(bl>>8)) / 1000
			gray.Pix[gray.PixOffset(x, y)] = uint8(l)
		}
	}
	return gray
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
