// Package sampler drives the pipeline from a stream of frames on a fixed period.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/live-ocr-go/internal/frame"
	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/pkg/models"
)

// Detector is the pipeline entry point the sampler calls each tick.
type Detector interface {
	DetectAndRecognize(ctx context.Context, f *frame.RawFrame) (*models.Result, error)
}

// LatestFrame holds at most one frame. Put overwrites, Take empties the slot.
type LatestFrame struct {
	mu sync.Mutex
	f  *frame.RawFrame
}

// Put stores f, replacing any frame not yet taken.
func (l *LatestFrame) Put(f *frame.RawFrame) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}

// Take returns the stored frame and clears the slot, or nil when empty.
func (l *LatestFrame) Take() *frame.RawFrame {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.f
	l.f = nil
	return f
}

// ResultStore keeps the most recent successful result. Dropped or failed
// frames leave it unchanged.
type ResultStore struct {
	mu     sync.RWMutex
	latest *models.Result
}

func (s *ResultStore) Set(r *models.Result) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
}

// Latest returns the last stored result, or nil.
func (s *ResultStore) Latest() *models.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Sampler takes the latest frame on every tick and hands it to the detector.
type Sampler struct {
	detector Detector
	source   *LatestFrame
	store    *ResultStore
	interval time.Duration
	onResult func(*models.Result)
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithOnResult registers a callback for every successful result.
func WithOnResult(fn func(*models.Result)) Option {
	return func(s *Sampler) { s.onResult = fn }
}

func New(detector Detector, source *LatestFrame, store *ResultStore, interval time.Duration, opts ...Option) *Sampler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	s := &Sampler{
		detector: detector,
		source:   source,
		store:    store,
		interval: interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is done. Errors are logged and never stop the loop.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.WithField("interval", s.interval.String()).Info("Frame sampler started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Frame sampler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes the latest frame once, if there is one.
func (s *Sampler) Tick(ctx context.Context) {
	f := s.source.Take()
	if f == nil {
		return
	}

	res, err := s.detector.DetectAndRecognize(ctx, f)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"width":  f.Width,
			"height": f.Height,
		}).Warn("Frame sampling pass failed")
		return
	}
	if res == nil {
		return
	}

	s.store.Set(res)
	if s.onResult != nil {
		s.onResult(res)
	}
}
