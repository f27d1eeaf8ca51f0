// Package devices creates and removes the virtual camera (a v4l2loopback
// node) and the virtual microphone (a PulseAudio null sink), and watches the
// camera node for hotplug changes.
package devices

import (
	"context"
	"errors"
	"time"

	"github.com/smazurov/fakecam/internal/events"
)

var (
	ErrDeviceMissing = errors.New("video device did not appear")
	ErrModuleBusy    = errors.New("v4l2loopback module is still in use")
	ErrSinkMissing   = errors.New("audio sink did not appear")
	ErrNoAudioServer = errors.New("no pulse compatible audio server is running")
)

// Device kinds carried by DeviceEvent.
const (
	KindVideo = "video"
	KindAudio = "audio"
)

// DeviceEvent actions.
const (
	ActionReady   = "ready"
	ActionFailed  = "failed"
	ActionRemoved = "removed"
	ActionAdded   = "added"
)

// Publisher receives device events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

func publish(p Publisher, kind, path, action, message string) {
	if p == nil {
		return
	}
	p.Publish(events.DeviceEvent{
		Device:    kind,
		Path:      path,
		Action:    action,
		Message:   message,
		Timestamp: events.Timestamp(),
	})
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
