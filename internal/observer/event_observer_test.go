package observer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type chanObserver struct {
	name   string
	events chan PipelineEvent
}

func (o *chanObserver) OnEvent(ctx context.Context, event PipelineEvent) { o.events <- event }
func (o *chanObserver) GetObserverName() string                          { return o.name }

type panicObserver struct{}

func (panicObserver) OnEvent(ctx context.Context, event PipelineEvent) { panic("boom") }
func (panicObserver) GetObserverName() string                          { return "panic_observer" }

func TestEventPublisher_Notify(t *testing.T) {
	p := NewEventPublisher()
	obs := &chanObserver{name: "chan", events: make(chan PipelineEvent, 1)}
	p.Subscribe(panicObserver{})
	p.Subscribe(obs)

	p.NotifyObservers(context.Background(), PipelineEvent{EventType: FrameProcessed, FrameID: "f1"})

	select {
	case ev := <-obs.events:
		if ev.FrameID != "f1" || ev.Timestamp.IsZero() {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}

	p.Unsubscribe(obs)
	p.NotifyObservers(context.Background(), PipelineEvent{EventType: FrameDropped})
	select {
	case ev := <-obs.events:
		t.Errorf("unsubscribed observer received %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, PipelineEvent{EventType: EngineInitializing})
	m.OnEvent(ctx, PipelineEvent{EventType: EngineReady})
	m.OnEvent(ctx, PipelineEvent{EventType: FrameProcessed, ProcessingTime: 100 * time.Millisecond, Metadata: map[string]interface{}{"lines": 2}})
	m.OnEvent(ctx, PipelineEvent{EventType: FrameProcessed, ProcessingTime: 300 * time.Millisecond, Metadata: map[string]interface{}{"lines": 1}})
	m.OnEvent(ctx, PipelineEvent{EventType: FrameDropped})
	m.OnEvent(ctx, PipelineEvent{EventType: FrameFailed})

	got := m.GetMetrics()
	checks := map[string]interface{}{
		"engine_state":      "ready",
		"processed_frames":  int64(2),
		"dropped_frames":    int64(1),
		"failed_frames":     int64(1),
		"lines_recognized":  int64(3),
		"avg_processing_ms": int64(200),
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	o := NewLoggingObserver(l)
	o.OnEvent(context.Background(), PipelineEvent{
		EventType:    EngineFailed,
		ErrorMessage: "load: model missing",
	})

	out := buf.String()
	if !strings.Contains(out, "Engine initialization failed") || !strings.Contains(out, "model missing") {
		t.Errorf("unexpected log output: %s", out)
	}
	if o.GetObserverName() != "logging_observer" {
		t.Errorf("GetObserverName() = %s", o.GetObserverName())
	}
}
