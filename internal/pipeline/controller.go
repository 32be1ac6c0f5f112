// Package pipeline owns the recognition engine and runs at most one
// detection and recognition pass at a time over sampled frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/live-ocr-go/internal/engine"
	apperrors "github.com/anime-shed/live-ocr-go/internal/errors"
	"github.com/anime-shed/live-ocr-go/internal/frame"
	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/internal/observer"
	"github.com/anime-shed/live-ocr-go/pkg/models"
)

// ErrEngineUnavailable is returned for every frame once initialization has
// failed or the controller has been closed.
var ErrEngineUnavailable = apperrors.NewEngineUnavailableError("recognition engine unavailable", nil)

// EngineLoader produces the engine. It may take seconds.
type EngineLoader interface {
	Initialize(ctx context.Context) (engine.Engine, error)
}

// Matcher searches recognized text against the reference dictionary.
type Matcher interface {
	Search(query string) []string
}

const (
	dropNotReady = "not_ready"
	dropBusy     = "busy"
)

// Controller is the single entry point for running OCR on a frame. One
// controller exists per process; callers share it.
type Controller struct {
	loader         EngineLoader
	matcher        Matcher
	events         observer.Subject
	timeout        time.Duration
	minQueryLength int

	status      atomic.Int32
	startOnce   sync.Once
	ready       chan struct{}
	closed      atomic.Bool
	closeOnce   sync.Once
	releaseOnce sync.Once

	// eng and initErr are written once before status leaves Initializing.
	eng     engine.Engine
	initErr error

	// engineMu is held for the whole engine call, including calls abandoned
	// by a timeout, so the engine never runs concurrently with itself.
	engineMu sync.Mutex

	passes          atomic.Uint64
	droppedBusy     atomic.Uint64
	droppedNotReady atomic.Uint64
	failures        atomic.Uint64
	timeouts        atomic.Uint64

	errMu   sync.Mutex
	lastErr string
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout bounds a single pass. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithMinQueryLength sets how many characters a line must exceed before it
// is submitted to the matcher.
func WithMinQueryLength(n int) Option {
	return func(c *Controller) { c.minQueryLength = n }
}

// WithEvents publishes lifecycle and frame events to subject.
func WithEvents(subject observer.Subject) Option {
	return func(c *Controller) { c.events = subject }
}

// New creates a controller in the Uninitialized state. matcher may be nil.
func New(loader EngineLoader, matcher Matcher, opts ...Option) *Controller {
	c := &Controller{
		loader:         loader,
		matcher:        matcher,
		timeout:        5 * time.Second,
		minQueryLength: 4,
		ready:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins engine initialization in the background. Only the first call
// has any effect; it never blocks on the loader.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.status.Store(int32(StatusInitializing))
		c.publish(ctx, observer.PipelineEvent{EventType: observer.EngineInitializing})
		go c.initialize(ctx)
	})
}

func (c *Controller) initialize(ctx context.Context) {
	start := time.Now()
	eng, err := c.load(ctx)
	if err == nil && c.closed.Load() {
		eng.Close()
		err = errors.New("controller closed during initialization")
	}

	if err != nil {
		c.initErr = err
		c.recordError(err)
		c.status.Store(int32(StatusFailed))
		logger.WithError(err).Error("Engine initialization failed")
		c.publish(ctx, observer.PipelineEvent{
			EventType:      observer.EngineFailed,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		close(c.ready)
		return
	}

	c.eng = eng
	c.status.Store(int32(StatusReady))
	c.publish(ctx, observer.PipelineEvent{
		EventType:      observer.EngineReady,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"engine": eng.Name()},
	})
	close(c.ready)

	// Close may have run between the check above and the Ready store.
	if c.closed.Load() {
		c.releaseEngine()
	}
}

func (c *Controller) load(ctx context.Context) (eng engine.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			eng, err = nil, apperrors.NewLoadError(fmt.Sprintf("loader panic: %v", r), nil)
		}
	}()
	eng, err = c.loader.Initialize(ctx)
	if err == nil && eng == nil {
		err = apperrors.NewLoadError("loader returned no engine", nil)
	}
	return eng, err
}

// Ready is closed once initialization has settled, successfully or not.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until initialization settles or ctx is done. It returns an
// error wrapping ErrEngineUnavailable if initialization failed.
func (c *Controller) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c.initErr != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, c.initErr)
	}
	return nil
}

// Status reports the current state.
func (c *Controller) Status() Status {
	return Status(c.status.Load())
}

// DetectAndRecognize runs one pass over f.
//
// It returns (nil, nil) without touching the engine when the frame is
// dropped: the engine is not ready yet or another pass is still running.
// After a failed initialization it returns ErrEngineUnavailable. Any other
// error (invalid image, engine failure, panic, timeout) ends the pass; in
// every case the status is back to Ready before the call returns.
func (c *Controller) DetectAndRecognize(ctx context.Context, f *frame.RawFrame) (*models.Result, error) {
	if c.closed.Load() {
		return nil, ErrEngineUnavailable
	}
	switch c.Status() {
	case StatusUninitialized, StatusInitializing:
		c.drop(ctx, dropNotReady)
		return nil, nil
	case StatusFailed:
		return nil, ErrEngineUnavailable
	}

	if !c.status.CompareAndSwap(int32(StatusReady), int32(StatusBusy)) {
		c.drop(ctx, dropBusy)
		return nil, nil
	}
	defer c.status.Store(int32(StatusReady))

	frameID := uuid.NewString()
	start := time.Now()

	if err := f.Validate(); err != nil {
		return nil, c.fail(ctx, frameID, start, err)
	}

	// A pass abandoned by a timeout may still own the engine.
	if !c.engineMu.TryLock() {
		c.drop(ctx, dropBusy)
		return nil, nil
	}
	if c.closed.Load() {
		c.engineMu.Unlock()
		return nil, ErrEngineUnavailable
	}

	done := make(chan passOutcome, 1)
	go func() {
		defer c.engineMu.Unlock()
		lines, err := c.runEngine(f)
		done <- passOutcome{lines: lines, err: err}
	}()

	var expired <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var out passOutcome
	select {
	case out = <-done:
	case <-expired:
		c.timeouts.Add(1)
		return nil, c.fail(ctx, frameID, start,
			apperrors.NewTimeoutError(fmt.Sprintf("detection exceeded %s", c.timeout), nil))
	case <-ctx.Done():
		return nil, c.fail(ctx, frameID, start,
			apperrors.NewTimeoutError("detection abandoned", ctx.Err()))
	}
	if out.err != nil {
		return nil, c.fail(ctx, frameID, start, out.err)
	}

	result := buildResult(frameID, f, out.lines)
	result.Matches = c.match(result.Lines)
	elapsed := time.Since(start)
	result.DetectionMS = elapsed.Milliseconds()

	c.passes.Add(1)
	logger.WithFields(logrus.Fields{
		"frame_id":     frameID,
		"detection_ms": result.DetectionMS,
		"lines":        len(result.Lines),
		"matches":      len(result.Matches),
	}).Debug("Pass completed")
	c.publish(ctx, observer.PipelineEvent{
		EventType:      observer.FrameProcessed,
		FrameID:        frameID,
		ProcessingTime: elapsed,
		Success:        true,
		Metadata:       map[string]interface{}{"lines": len(result.Lines)},
	})
	return result, nil
}

type passOutcome struct {
	lines []engine.TextLine
	err   error
}

// runEngine must be called with engineMu held.
func (c *Controller) runEngine(f *frame.RawFrame) (lines []engine.TextLine, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, apperrors.NewProcessingError(fmt.Sprintf("engine panic: %v", r), nil)
		}
	}()

	img, err := c.eng.LoadImage(f.Width, f.Height, f.Pixels)
	if err != nil {
		var invalid *engine.InvalidImageError
		if errors.As(err, &invalid) {
			return nil, apperrors.NewInvalidImageError(invalid.Error(), err)
		}
		return nil, apperrors.NewProcessingError("failed to load image", err)
	}

	lines, err = c.eng.GetTextLines(img)
	if err != nil {
		return nil, apperrors.NewProcessingError("text recognition failed", err)
	}
	return lines, nil
}

func buildResult(frameID string, f *frame.RawFrame, lines []engine.TextLine) *models.Result {
	result := &models.Result{
		FrameID:   frameID,
		Timestamp: time.Now(),
		Width:     f.Width,
		Height:    f.Height,
		Lines:     make([]models.Line, 0, len(lines)),
		Matches:   []models.Match{},
	}
	for _, l := range lines {
		line := models.Line{Text: l.Text, Words: make([]models.Word, 0, len(l.Words))}
		for _, w := range l.Words {
			line.Words = append(line.Words, models.Word{Text: w.Text, Rect: w.Quad.BoundingRect()})
		}
		result.Lines = append(result.Lines, line)
	}
	return result
}

// match submits every line longer than minQueryLength characters.
func (c *Controller) match(lines []models.Line) []models.Match {
	matches := []models.Match{}
	if c.matcher == nil {
		return matches
	}
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if utf8.RuneCountInString(text) <= c.minQueryLength {
			continue
		}
		candidates := c.matcher.Search(text)
		if candidates == nil {
			candidates = []string{}
		}
		matches = append(matches, models.Match{Line: text, Candidates: candidates})
	}
	return matches
}

func (c *Controller) drop(ctx context.Context, reason string) {
	if reason == dropNotReady {
		c.droppedNotReady.Add(1)
	} else {
		c.droppedBusy.Add(1)
	}
	c.publish(ctx, observer.PipelineEvent{
		EventType: observer.FrameDropped,
		Metadata:  map[string]interface{}{"reason": reason},
	})
}

func (c *Controller) fail(ctx context.Context, frameID string, start time.Time, err error) error {
	c.failures.Add(1)
	c.recordError(err)
	c.publish(ctx, observer.PipelineEvent{
		EventType:      observer.FrameFailed,
		FrameID:        frameID,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
	})
	return err
}

func (c *Controller) recordError(err error) {
	c.errMu.Lock()
	c.lastErr = err.Error()
	c.errMu.Unlock()
}

func (c *Controller) publish(ctx context.Context, event observer.PipelineEvent) {
	if c.events != nil {
		c.events.NotifyObservers(ctx, event)
	}
}

// Stats is a point-in-time snapshot of the controller.
type Stats struct {
	Status          Status `json:"status"`
	Engine          string `json:"engine,omitempty"`
	Passes          uint64 `json:"passes"`
	DroppedBusy     uint64 `json:"dropped_busy"`
	DroppedNotReady uint64 `json:"dropped_not_ready"`
	Failures        uint64 `json:"failures"`
	Timeouts        uint64 `json:"timeouts"`
	LastError       string `json:"last_error,omitempty"`
}

func (c *Controller) Stats() Stats {
	s := Stats{
		Status:          c.Status(),
		Passes:          c.passes.Load(),
		DroppedBusy:     c.droppedBusy.Load(),
		DroppedNotReady: c.droppedNotReady.Load(),
		Failures:        c.failures.Load(),
		Timeouts:        c.timeouts.Load(),
	}
	if s.Status == StatusReady || s.Status == StatusBusy {
		s.Engine = c.eng.Name()
	}
	c.errMu.Lock()
	s.LastError = c.lastErr
	c.errMu.Unlock()
	return s
}

// Close waits for any running engine call and releases the engine. Later
// passes return ErrEngineUnavailable.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		st := c.Status()
		if st != StatusReady && st != StatusBusy {
			return
		}
		err = c.releaseEngine()
	})
	return err
}

func (c *Controller) releaseEngine() error {
	var err error
	c.releaseOnce.Do(func() {
		c.engineMu.Lock()
		defer c.engineMu.Unlock()
		err = c.eng.Close()
	})
	return err
}
