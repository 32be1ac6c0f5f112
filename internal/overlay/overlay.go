// Package overlay renders recognized word boxes over the source frame.
package overlay

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/anime-shed/live-ocr-go/pkg/models"
)

// Stroke is the default box outline.
var Stroke = color.RGBA{R: 255, A: 255}

// Options controls rendering.
type Options struct {
	Color     color.Color
	LineWidth int
	// MaxWidth downscales the output when the source is wider. Zero keeps the source size.
	MaxWidth int
}

// Draw returns a copy of img with a rectangle outlined around every word of
// every line. img is not modified.
func Draw(img image.Image, result *models.Result, opts Options) *image.RGBA {
	if opts.Color == nil {
		opts.Color = Stroke
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}

	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(out, image.Point{}, img, b, xdraw.Src, nil)

	if result != nil {
		src := image.NewUniform(opts.Color)
		for _, line := range result.Lines {
			for _, w := range line.Words {
				strokeRect(out, toRect(w.Rect), opts.LineWidth, src)
			}
		}
	}

	if opts.MaxWidth > 0 && out.Bounds().Dx() > opts.MaxWidth {
		return scale(out, opts.MaxWidth)
	}
	return out
}

func toRect(r [4]float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(r[0])), int(math.Floor(r[1])),
		int(math.Ceil(r[2])), int(math.Ceil(r[3])),
	)
}

func strokeRect(dst *image.RGBA, r image.Rectangle, width int, src image.Image) {
	r = r.Canon()
	if r.Empty() {
		return
	}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		e = e.Intersect(dst.Bounds())
		if !e.Empty() {
			xdraw.Draw(dst, e, src, image.Point{}, xdraw.Src)
		}
	}
}

func scale(src *image.RGBA, maxWidth int) *image.RGBA {
	b := src.Bounds()
	h := int(math.Round(float64(b.Dy()) * float64(maxWidth) / float64(b.Dx())))
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
