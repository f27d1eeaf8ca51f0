package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/metrics"
)

// EventPublisher is satisfied by *events.Bus.
type EventPublisher interface {
	Publish(ev events.Event)
}

// EventExporter republishes the cached pipeline progress on the event bus
// for the /api/metrics stream. A pipeline whose frame counter did not move
// since the last tick is skipped, so stalled or stopped pipelines go quiet.
type EventExporter struct {
	publisher EventPublisher
	interval  time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewEventExporter creates an exporter publishing once per second.
func NewEventExporter(publisher EventPublisher) *EventExporter {
	return &EventExporter{
		publisher: publisher,
		interval:  time.Second,
	}
}

// Start launches the export loop. It runs until ctx is done or Stop is
// called. Starting a running exporter does nothing.
func (e *EventExporter) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		return
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(ctx, e.stop, e.done)
}

// Stop ends the loop and waits for it. Safe to call at any time.
func (e *EventExporter) Stop() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (e *EventExporter) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// frame counter per pipeline at the previous publish
	last := make(map[string]float64)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			e.publish(last)
		}
	}
}

func (e *EventExporter) publish(last map[string]float64) {
	all := metrics.GetAllPipelineMetrics()
	for name := range last {
		if _, ok := all[name]; !ok {
			delete(last, name)
		}
	}
	for name, m := range all {
		if prev, seen := last[name]; seen && prev == m.Frames {
			continue
		}
		last[name] = m.Frames
		e.publisher.Publish(events.PipelineMetricsEvent{
			EventType:       "pipeline_metrics",
			Name:            name,
			FPS:             formatFloat(m.FPS, 2),
			Speed:           formatFloat(m.Speed, 2),
			Frames:          formatFloat(m.Frames, 0),
			DroppedFrames:   formatFloat(m.DroppedFrames, 0),
			DuplicateFrames: formatFloat(m.DuplicateFrames, 0),
		})
	}
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
