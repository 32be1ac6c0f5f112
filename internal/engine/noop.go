package engine

type noopEngine struct{}

// NewNoopEngine returns an engine that validates input and never finds text.
func NewNoopEngine() Engine {
	return noopEngine{}
}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) LoadImage(width, height int, pixels []byte) (*PreparedImage, error) {
	return NewPreparedImage(width, height, pixels)
}

func (noopEngine) DetectText(*PreparedImage) ([]DetectedLine, error) { return nil, nil }

func (noopEngine) RecognizeText(img *PreparedImage, lines []DetectedLine) ([]TextLine, error) {
	if err := CheckLines(img, lines); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e noopEngine) GetTextLines(img *PreparedImage) ([]TextLine, error) {
	return DetectAndRecognize(e, img)
}

func (noopEngine) Close() error { return nil }
