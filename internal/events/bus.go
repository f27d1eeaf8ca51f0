package events

import (
	"github.com/kelindar/event"
)

// Bus fans fakecam events out to in-process subscribers. Delivery is
// asynchronous and per-type ordered.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to the subscribers of its concrete type. Types the
// bus does not know are dropped.
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type, so unwrap the interface
	switch e := ev.(type) {
	case ProcessStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceEvent:
		event.Publish(b.dispatcher, e)
	case DownloadProgressEvent:
		event.Publish(b.dispatcher, e)
	case MediaGeneratedEvent:
		event.Publish(b.dispatcher, e)
	case PreferencesChangedEvent:
		event.Publish(b.dispatcher, e)
	case PipelineMetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe calls fn for every published event of type T and returns the
// unsubscribe function.
func Subscribe[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}

// SubscribeToChannel forwards events of type T into ch for select-based
// consumers such as SSE handlers. When ch is full the event is dropped
// rather than stalling the dispatcher.
func SubscribeToChannel[T Event](b *Bus, ch chan<- any) func() {
	return Subscribe(b, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
