package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/pkg/linuxav/hotplug"
	"github.com/smazurov/fakecam/pkg/linuxav/v4l2"
)

// Watcher publishes DeviceEvent when the loopback node appears or goes away,
// including when another tool loads or unloads the module.
type Watcher struct {
	device    string
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	present bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher returns a Watcher for device (e.g. /dev/video10).
func NewWatcher(device string, publisher Publisher) *Watcher {
	return &Watcher{
		device:    device,
		publisher: publisher,
		logger:    logging.GetLogger("devices"),
		present:   v4l2.IsCharDevice(device),
	}
}

// Start opens the netlink socket and begins watching. It returns an error
// when the socket cannot be created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	mon, err := hotplug.NewMonitor()
	if err != nil {
		return fmt.Errorf("open uevent socket: %w", err)
	}
	mon.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	ch := make(chan hotplug.Event, 16)
	go func() {
		err := mon.Run(ctx, ch)
		_ = mon.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("Hotplug monitor stopped", "error", err)
		}
	}()
	go func() {
		defer close(w.done)
		for ev := range ch {
			w.handle(ev)
		}
	}()

	w.logger.Info("Watching for device changes", "device", w.device)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// handle publishes a change when ev flips the presence of the node. Repeated
// add or remove events for the same state are dropped.
func (w *Watcher) handle(ev hotplug.Event) {
	if ev.Node() != w.device {
		return
	}

	var present bool
	var action string
	switch ev.Action {
	case hotplug.ActionAdd:
		present, action = true, ActionAdded
	case hotplug.ActionRemove:
		present, action = false, ActionRemoved
	default:
		return
	}

	w.mu.Lock()
	changed := w.present != present
	w.present = present
	w.mu.Unlock()
	if !changed {
		return
	}

	w.logger.Info("Video device changed", "device", w.device, "action", action)
	publish(w.publisher, KindVideo, w.device, action, "hotplug")
}
