package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/fakecam/internal/events"
)

// ConnectedEvent is sent once when an SSE client attaches.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established"`
	Timestamp string `json:"timestamp"`
}

// streamEvents forwards events from ch until the client goes away.
func streamEvents(ctx context.Context, ch <-chan any, send sse.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}

func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Process state changes, device changes, download progress, generated media and preference reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":           ConnectedEvent{},
		"process-state":       events.ProcessStateChangedEvent{},
		"device":              events.DeviceEvent{},
		"download-progress":   events.DownloadProgressEvent{},
		"media-generated":     events.MediaGeneratedEvent{},
		"preferences-changed": events.PreferencesChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ProcessStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DownloadProgressEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.MediaGeneratedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PreferencesChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(ConnectedEvent{
			Message:   "SSE connection established",
			Timestamp: events.Timestamp(),
		}); err != nil {
			return
		}

		streamEvents(ctx, eventCh, send)
	})
}
