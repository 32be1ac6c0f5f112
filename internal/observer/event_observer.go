package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PipelineEvent represents a pipeline lifecycle or frame event
type PipelineEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	FrameID        string                 `json:"frame_id,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// EngineInitializing when model loading starts
	EngineInitializing EventType = "engine_initializing"
	// EngineReady when the engine accepts frames
	EngineReady EventType = "engine_ready"
	// EngineFailed when initialization failed for good
	EngineFailed EventType = "engine_failed"
	// FrameProcessed when a pass produced a result
	FrameProcessed EventType = "frame_processed"
	// FrameDropped when a frame was shed (engine not ready or busy)
	FrameDropped EventType = "frame_dropped"
	// FrameFailed when a pass ended in an error
	FrameFailed EventType = "frame_failed"
	// DictionaryReloaded when the matcher dictionary was replaced
	DictionaryReloaded EventType = "dictionary_reloaded"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"success":    event.Success,
	}
	if event.FrameID != "" {
		fields["frame_id"] = event.FrameID
	}
	if event.ProcessingTime > 0 {
		fields["processing_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case EngineInitializing:
		entry.Info("Engine initialization started")
	case EngineReady:
		entry.Info("Engine ready")
	case EngineFailed:
		entry.Error("Engine initialization failed")
	case FrameProcessed:
		entry.Debug("Frame processed")
	case FrameDropped:
		entry.Debug("Frame dropped")
	case FrameFailed:
		entry.Warn("Frame processing failed")
	case DictionaryReloaded:
		entry.Info("Dictionary reloaded")
	default:
		entry.Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	processedFrames     int64
	droppedFrames       int64
	failedFrames        int64
	linesRecognized     int64
	totalProcessingTime time.Duration
	engineState         string
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{engineState: "uninitialized"}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case EngineInitializing:
		o.engineState = "initializing"
	case EngineReady:
		o.engineState = "ready"
	case EngineFailed:
		o.engineState = "failed"
	case FrameProcessed:
		o.processedFrames++
		o.totalProcessingTime += event.ProcessingTime
		if n, ok := event.Metadata["lines"].(int); ok {
			o.linesRecognized += int64(n)
		}
	case FrameDropped:
		o.droppedFrames++
	case FrameFailed:
		o.failedFrames++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.processedFrames > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.processedFrames)
	}

	return map[string]interface{}{
		"engine_state":        o.engineState,
		"processed_frames":    o.processedFrames,
		"dropped_frames":      o.droppedFrames,
		"failed_frames":       o.failedFrames,
		"lines_recognized":    o.linesRecognized,
		"total_processing_ms": o.totalProcessingTime.Milliseconds(),
		"avg_processing_ms":   avgProcessingTime.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
