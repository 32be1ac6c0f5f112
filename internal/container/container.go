package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/anime-shed/live-ocr-go/internal/config"
	"github.com/anime-shed/live-ocr-go/internal/factory"
	"github.com/anime-shed/live-ocr-go/internal/fuzzy"
	"github.com/anime-shed/live-ocr-go/internal/loader"
	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/internal/observer"
	"github.com/anime-shed/live-ocr-go/internal/pipeline"
	"github.com/anime-shed/live-ocr-go/internal/repository"
	"github.com/anime-shed/live-ocr-go/internal/sampler"
	"github.com/anime-shed/live-ocr-go/internal/storage"
	"github.com/anime-shed/live-ocr-go/internal/transport"
)

// Container holds all application dependencies. It owns the one pipeline
// controller of the process.
type Container struct {
	config     *config.Config
	fetcher    storage.BlobFetcher
	loader     *loader.Loader
	dictionary repository.DictionaryRepository
	matcher    *fuzzy.Searcher
	events     *observer.EventPublisher
	metrics    *observer.MetricsObserver
	controller *pipeline.Controller
	frames     *sampler.LatestFrame
	results    *sampler.ResultStore
	sampler    *sampler.Sampler

	handlerOnce sync.Once
	handler     http.Handler
}

// NewContainer builds the dependency graph. Engine initialization does not
// start until Controller or Start is called.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	components := factory.NewComponentFactory(cfg)

	fetcher, err := components.StorageFactory.CreateStorage(factory.StorageType(cfg.Models.Source))
	if err != nil {
		return nil, fmt.Errorf("failed to create model storage: %w", err)
	}

	modelLoader := loader.New(fetcher, components.EngineFactory, loader.Options{
		EngineType:   factory.EngineType(cfg.Engine.Type),
		Language:     cfg.Engine.Language,
		Runtime:      cfg.Models.Runtime,
		Detection:    cfg.Models.Detection,
		Recognition:  cfg.Models.Recognition,
		FetchTimeout: cfg.Models.FetchTimeout,
	})

	dictionary := repository.NewDictionaryRepository(cfg.Matcher.Dictionary)
	entries, err := dictionary.Load(ctx)
	if err != nil {
		// The pipeline still runs; lines just never match.
		logger.WithError(err).WithField("source", dictionary.Source()).Warn("Dictionary unavailable, matching disabled until it loads")
	}
	matcher := fuzzy.NewSearcher(entries,
		fuzzy.WithMaxResults(cfg.Matcher.MaxResults),
		fuzzy.WithThreshold(cfg.Matcher.Threshold),
	)

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	controller := pipeline.New(modelLoader, matcher,
		pipeline.WithTimeout(cfg.Engine.DetectionTimeout),
		pipeline.WithMinQueryLength(cfg.Matcher.MinQueryLength),
		pipeline.WithEvents(events),
	)

	frames := &sampler.LatestFrame{}
	results := &sampler.ResultStore{}

	return &Container{
		config:     cfg,
		fetcher:    fetcher,
		loader:     modelLoader,
		dictionary: dictionary,
		matcher:    matcher,
		events:     events,
		metrics:    metrics,
		controller: controller,
		frames:     frames,
		results:    results,
		sampler:    sampler.New(controller, frames, results, cfg.Sampler.Interval),
	}, nil
}

// Start kicks off engine initialization; repeated calls are no-ops.
func (c *Container) Start(ctx context.Context) *pipeline.Controller {
	c.controller.Start(ctx)
	return c.controller
}

// Controller returns the process-wide controller, starting initialization on first use.
func (c *Container) Controller() *pipeline.Controller {
	return c.Start(context.Background())
}

// WatchDictionary reloads the matcher when the dictionary source changes.
// It blocks until ctx is done and returns immediately for sources that cannot be watched.
func (c *Container) WatchDictionary(ctx context.Context) error {
	if !c.config.Matcher.Watch {
		return nil
	}
	err := c.dictionary.Watch(ctx, func(entries []string) {
		c.matcher.SetDictionary(entries)
		c.events.NotifyObservers(ctx, observer.PipelineEvent{
			EventType: observer.DictionaryReloaded,
			Success:   true,
			Metadata:  map[string]interface{}{"entries": len(entries)},
		})
	})
	if errors.Is(err, repository.ErrWatchUnsupported) {
		logger.WithField("source", c.dictionary.Source()).Info("Dictionary source is remote, hot reload disabled")
		return nil
	}
	return err
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	c.handlerOnce.Do(func() {
		c.handler = transport.NewHandler(transport.Deps{
			Controller: c.controller,
			Matcher:    c.matcher,
			Frames:     c.frames,
			Results:    c.results,
			Metrics:    c.metrics,
			Config:     c.config,
		})
	})
	return c.handler
}

// Sampler returns the frame sampler fed by POST /frames
func (c *Container) Sampler() *sampler.Sampler {
	return c.sampler
}

// Matcher returns the fuzzy matcher
func (c *Container) Matcher() *fuzzy.Searcher {
	return c.matcher
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases the engine and staged model files
func (c *Container) Close() error {
	err := c.controller.Close()
	if lerr := c.loader.Close(); err == nil {
		err = lerr
	}
	return err
}
