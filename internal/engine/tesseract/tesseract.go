// Package tesseract binds the engine contract to libtesseract through gosseract.
package tesseract

import (
	"bytes"
	"fmt"
	"image/png"
	"sort"

	"github.com/otiai10/gosseract/v2"

	"github.com/anime-shed/live-ocr-go/internal/engine"
)

// Options configures the tesseract client. TessdataDir must contain
// <Language>.traineddata and, when UseOSD is set, osd.traineddata.
type Options struct {
	TessdataDir string
	Language    string
	UseOSD      bool
	PageSegMode *int
	Variables   map[string]string
}

// Engine implements engine.Engine with a single long-lived gosseract client.
type Engine struct {
	client    *gosseract.Client
	currentID uint64
}

// New constructs the client and applies options. The returned engine owns
// the client until Close.
func New(opts Options) (*Engine, error) {
	client := gosseract.NewClient()

	if opts.TessdataDir != "" {
		if err := client.SetTessdataPrefix(opts.TessdataDir); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if opts.Language != "" {
		if err := client.SetLanguage(opts.Language); err != nil {
			client.Close()
			return nil, fmt.Errorf("set language: %w", err)
		}
	}

	mode := gosseract.PSM_AUTO
	if opts.UseOSD {
		mode = gosseract.PSM_AUTO_OSD
	}
	if opts.PageSegMode != nil {
		mode = gosseract.PageSegMode(*opts.PageSegMode)
	}
	if err := client.SetPageSegMode(mode); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}

	keys := make([]string, 0, len(opts.Variables))
	for k := range opts.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := client.SetVariable(gosseract.SettableVariable(k), opts.Variables[k]); err != nil {
			client.Close()
			return nil, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	return &Engine{client: client}, nil
}

func (e *Engine) Name() string { return "tesseract" }

// Version reports the linked libtesseract version.
func (e *Engine) Version() string { return e.client.Version() }

func (e *Engine) LoadImage(width, height int, pixels []byte) (*engine.PreparedImage, error) {
	return engine.NewPreparedImage(width, height, pixels)
}

// DetectText returns one line per tesseract text line.
func (e *Engine) DetectText(img *engine.PreparedImage) ([]engine.DetectedLine, error) {
	if err := e.setImage(img); err != nil {
		return nil, err
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("line boxes: %w", err)
	}
	lines := make([]engine.DetectedLine, 0, len(boxes))
	for _, b := range boxes {
		if b.Box.Empty() {
			continue
		}
		lines = append(lines, engine.DetectedLine{
			ImageID: img.ID(),
			Quad:    engine.RectQuad(b.Box),
		})
	}
	return lines, nil
}

// RecognizeText reads words and groups them under the given lines.
func (e *Engine) RecognizeText(img *engine.PreparedImage, lines []engine.DetectedLine) ([]engine.TextLine, error) {
	if err := engine.CheckLines(img, lines); err != nil {
		return nil, err
	}
	if err := e.setImage(img); err != nil {
		return nil, err
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}
	words := make([]engine.TextWord, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, engine.TextWord{
			Text:       b.Word,
			Quad:       engine.RectQuad(b.Box),
			Confidence: b.Confidence / 100.0,
		})
	}
	return engine.AssignWords(lines, words), nil
}

func (e *Engine) GetTextLines(img *engine.PreparedImage) ([]engine.TextLine, error) {
	return engine.DetectAndRecognize(e, img)
}

func (e *Engine) Close() error {
	return e.client.Close()
}

// setImage hands the image to tesseract once per prepared image.
func (e *Engine) setImage(img *engine.PreparedImage) error {
	if e.currentID == img.ID() {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.RGBA()); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	e.currentID = img.ID()
	return nil
}
