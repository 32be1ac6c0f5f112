// Package engine defines the contract of the text detection and recognition
// binding. Implementations wrap an external OCR library; the pipeline only
// ever talks to them through Engine.
package engine

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"
	"sync/atomic"
)

// ErrImageMismatch is returned when lines detected on one image are passed to
// recognition together with a different image.
var ErrImageMismatch = errors.New("detected lines belong to a different image")

// Engine is the detection and recognition binding. Call order per frame is
// LoadImage, then DetectText + RecognizeText or the GetTextLines shortcut.
// Implementations are not required to be safe for concurrent use.
type Engine interface {
	Name() string
	LoadImage(width, height int, pixels []byte) (*PreparedImage, error)
	DetectText(img *PreparedImage) ([]DetectedLine, error)
	RecognizeText(img *PreparedImage, lines []DetectedLine) ([]TextLine, error)
	GetTextLines(img *PreparedImage) ([]TextLine, error)
	Close() error
}

// InvalidImageError describes a pixel buffer that does not match its dimensions.
type InvalidImageError struct {
	Width    int
	Height   int
	Length   int
	Channels int
}

func (e *InvalidImageError) Error() string {
	if e.Channels != 3 && e.Channels != 4 && e.Width > 0 && e.Height > 0 {
		return fmt.Sprintf("invalid image: %d bytes for %dx%d is not 3 or 4 channels", e.Length, e.Width, e.Height)
	}
	return fmt.Sprintf("invalid image: %d bytes for %dx%d", e.Length, e.Width, e.Height)
}

var imageSeq atomic.Uint64

// PreparedImage is the normalised RGBA form of one frame. It lives for the
// duration of a single detect/recognize pass.
type PreparedImage struct {
	id     uint64
	width  int
	height int
	rgba   *image.RGBA
}

// NewPreparedImage validates the buffer and normalises it to RGBA. The
// channel count is derived from the buffer length.
func NewPreparedImage(width, height int, pixels []byte) (*PreparedImage, error) {
	if width <= 0 || height <= 0 {
		return nil, &InvalidImageError{Width: width, Height: height, Length: len(pixels)}
	}
	if width > math.MaxInt/height {
		return nil, &InvalidImageError{Width: width, Height: height, Length: len(pixels)}
	}
	area := width * height
	channels := 0
	if area <= len(pixels) && len(pixels)%area == 0 {
		channels = len(pixels) / area
	}
	if channels != 3 && channels != 4 {
		return nil, &InvalidImageError{Width: width, Height: height, Length: len(pixels), Channels: channels}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if channels == 4 {
		copy(rgba.Pix, pixels)
	} else {
		for src, dst := 0, 0; src < len(pixels); src, dst = src+3, dst+4 {
			rgba.Pix[dst] = pixels[src]
			rgba.Pix[dst+1] = pixels[src+1]
			rgba.Pix[dst+2] = pixels[src+2]
			rgba.Pix[dst+3] = 0xff
		}
	}

	return &PreparedImage{
		id:     imageSeq.Add(1),
		width:  width,
		height: height,
		rgba:   rgba,
	}, nil
}

func (p *PreparedImage) ID() uint64 { return p.id }

func (p *PreparedImage) Width() int { return p.width }

func (p *PreparedImage) Height() int { return p.height }

// RGBA exposes the normalised pixels. Callers must not modify them.
func (p *PreparedImage) RGBA() *image.RGBA { return p.rgba }

// DetectedWord is a word region found by the detection stage.
type DetectedWord struct {
	Quad Quad
}

// DetectedLine is a candidate text line. ImageID ties it to the image it was
// detected on.
type DetectedLine struct {
	ImageID uint64
	Quad    Quad
	Words   []DetectedWord
}

// TextWord is a recognized word with its region.
type TextWord struct {
	Text       string
	Quad       Quad
	Confidence float64
}

// TextLine is a recognized line; Words are ordered left to right.
type TextLine struct {
	Text  string
	Words []TextWord
}

// CheckLines rejects detections that were not produced from img.
func CheckLines(img *PreparedImage, lines []DetectedLine) error {
	for _, l := range lines {
		if l.ImageID != img.ID() {
			return fmt.Errorf("%w: line from image %d, got image %d", ErrImageMismatch, l.ImageID, img.ID())
		}
	}
	return nil
}

// DetectAndRecognize composes the two stages on the same image. Bindings
// without a native shortcut use it for GetTextLines.
func DetectAndRecognize(e Engine, img *PreparedImage) ([]TextLine, error) {
	lines, err := e.DetectText(img)
	if err != nil {
		return nil, fmt.Errorf("detect text: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	out, err := e.RecognizeText(img, lines)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return out, nil
}

// AssignWords groups recognized words under the detected line they overlap
// most. Lines that receive no words are dropped; words outside every line
// are discarded.
func AssignWords(lines []DetectedLine, words []TextWord) []TextLine {
	buckets := make([][]TextWord, len(lines))
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		wr := w.Quad.BoundingRect()
		best, bestArea := -1, 0.0
		for i, l := range lines {
			if a := overlapArea(l.Quad.BoundingRect(), wr); a > bestArea {
				best, bestArea = i, a
			}
		}
		if best < 0 {
			continue
		}
		buckets[best] = append(buckets[best], w)
	}

	out := make([]TextLine, 0, len(lines))
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Quad.BoundingRect()[0] < bucket[j].Quad.BoundingRect()[0]
		})
		texts := make([]string, len(bucket))
		for i, w := range bucket {
			texts[i] = strings.TrimSpace(w.Text)
		}
		out = append(out, TextLine{Text: strings.Join(texts, " "), Words: bucket})
	}
	return out
}
