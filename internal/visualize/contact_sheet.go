package visualize

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"keyframer/internal/fileutil"
	"keyframer/internal/pipeline"
)

// Tile geometry of the contact sheet.
const (
	TileWidth      = 320
	TileHeight     = 180
	DefaultColumns = 5
	labelHeight    = 18
)

// ContactSheet tiles the final keyframes into one JPEG written to
// <Dir>/<video_id>_contact_sheet.jpg.
type ContactSheet struct {
	Dir     string
	Columns int
	Quality int
}

// Name implements pipeline.Renderer.
func (ContactSheet) Name() string { return "contact_sheet" }

// Path returns the sheet location for a video id.
func (c ContactSheet) Path(videoID string) string {
	return filepath.Join(c.Dir, videoID+"_contact_sheet.jpg")
}

// Render draws the sheet. A report without keyframes renders nothing.
func (c ContactSheet) Render(ctx context.Context, report pipeline.Report) (string, error) {
	if len(report.FinalKeyframes) == 0 {
		return "", nil
	}
	columns := c.Columns
	if columns <= 0 {
		columns = DefaultColumns
	}
	if columns > len(report.FinalKeyframes) {
		columns = len(report.FinalKeyframes)
	}
	rows := (len(report.FinalKeyframes) + columns - 1) / columns

	sheet := image.NewRGBA(image.Rect(0, 0, columns*TileWidth, rows*TileHeight))
	for i, kf := range report.FinalKeyframes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		frame, err := loadImage(kf.Path)
		if err != nil {
			return "", err
		}
		origin := image.Pt((i%columns)*TileWidth, (i/columns)*TileHeight)
		drawTile(sheet, origin, frame, strings.TrimSuffix(filepath.Base(kf.Path), filepath.Ext(kf.Path)))
	}

	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	path := c.Path(report.VideoID)
	err := fileutil.WriteAtomicFunc(path, 0o644, func(w io.Writer) error {
		return jpeg.Encode(w, sheet, &jpeg.Options{Quality: quality})
	})
	if err != nil {
		return "", fmt.Errorf("write contact sheet: %w", err)
	}
	return path, nil
}

func drawTile(dst *image.RGBA, origin image.Point, frame image.Image, label string) {
	tile := image.Rect(origin.X, origin.Y, origin.X+TileWidth, origin.Y+TileHeight)
	xdraw.CatmullRom.Scale(dst, tile, frame, frame.Bounds(), xdraw.Src, nil)

	band := image.Rect(tile.Min.X, tile.Max.Y-labelHeight, tile.Max.X, tile.Max.Y)
	xdraw.Draw(dst, band, image.NewUniform(color.RGBA{A: 180}), image.Point{}, xdraw.Over)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 0, G: 255, B: 0, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(band.Min.X+4, band.Max.Y-5),
	}
	d.DrawString(label)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyframe: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode keyframe %s: %w", path, err)
	}
	return img, nil
}
