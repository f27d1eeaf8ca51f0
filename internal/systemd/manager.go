// Package systemd talks to the user's systemd instance over D-Bus. fakecam
// uses it to make sure a PulseAudio compatible sound server is running before
// it creates the virtual microphone sink.
package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Units that provide the pulse protocol, in preference order.
var AudioServerUnits = []string{"pipewire-pulse.service", "pulseaudio.service"}

// Manager handles systemd unit lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager creates a new systemd manager with a user-level D-Bus connection.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to user systemd: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// ActiveState returns the ActiveState property of unit ("active",
// "inactive", "failed", ...).
func (m *Manager) ActiveState(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState value %s", prop.Value.String())
	}
	return state, nil
}

// StartUnit starts unit in replace mode and waits for the job result.
func (m *Manager) StartUnit(ctx context.Context, unit string) error {
	done := make(chan string, 1)
	if _, err := m.conn.StartUnitContext(ctx, unit, "replace", done); err != nil {
		return err
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("start %s: job %s", unit, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
