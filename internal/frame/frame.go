// Package frame holds the raw pixel buffers sampled from a video source or
// decoded from dropped image files.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/anime-shed/live-ocr-go/internal/errors"
)

// RawFrame is a row-major, channel-interleaved pixel buffer with 3 (RGB) or
// 4 (RGBA) channels. A frame is consumed once and never retained.
type RawFrame struct {
	Width    int
	Height   int
	Channels int
	Pixels   []byte
}

// Validate checks the buffer against the engine's input contract.
func (f *RawFrame) Validate() error {
	if f == nil {
		return apperrors.NewInvalidImageError("frame is nil", nil)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return apperrors.NewInvalidImageError(
			fmt.Sprintf("frame dimensions must be positive (got %dx%d)", f.Width, f.Height), nil)
	}
	if f.Channels != 3 && f.Channels != 4 {
		return apperrors.NewInvalidImageError(
			fmt.Sprintf("unsupported channel count %d (want 3 or 4)", f.Channels), nil)
	}
	if f.Width > math.MaxInt/f.Height/f.Channels {
		return apperrors.NewInvalidImageError(
			fmt.Sprintf("frame dimensions %dx%dx%d are too large", f.Width, f.Height, f.Channels), nil)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pixels) != want {
		return apperrors.NewInvalidImageError(
			fmt.Sprintf("pixel buffer has %d bytes, %dx%dx%d requires %d",
				len(f.Pixels), f.Width, f.Height, f.Channels, want), nil)
	}
	return nil
}

// FromImage copies img into a 4-channel frame with origin at (0,0).
func FromImage(img image.Image) *RawFrame {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	pixels := make([]byte, len(rgba.Pix))
	copy(pixels, rgba.Pix)
	return &RawFrame{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Pixels:   pixels,
	}
}

// Decode reads an encoded image (png, jpeg, gif, bmp, tiff or webp) into a frame.
func Decode(r io.Reader) (*RawFrame, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", apperrors.NewInvalidImageError("failed to decode image", err)
	}
	return FromImage(img), format, nil
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) (*RawFrame, string, error) {
	return Decode(bytes.NewReader(data))
}

// Image returns an RGBA view of the frame for drawing and encoding.
func (f *RawFrame) Image() (*image.RGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Channels == 4 {
		copy(img.Pix, f.Pixels)
		return img, nil
	}
	for src, dst := 0, 0; src < len(f.Pixels); src, dst = src+3, dst+4 {
		img.Pix[dst] = f.Pixels[src]
		img.Pix[dst+1] = f.Pixels[src+1]
		img.Pix[dst+2] = f.Pixels[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img, nil
}
