//go:build linux

// Package hotplug provides pure Go device hotplug monitoring using netlink.
//
// This package monitors kernel device events without cgo by directly listening
// to NETLINK_KOBJECT_UEVENT messages from the kernel. fakecam uses it to notice
// the v4l2loopback node appearing after modprobe and disappearing after
// modprobe -r, including when another tool unloads the module.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Action constants for device events.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// Subsystem names.
const (
	SubsystemVideo4Linux = "video4linux"
	SubsystemSound       = "sound"
)

// Event represents a kernel device event.
type Event struct {
	Action    string            // "add", "remove", "change", etc.
	KObj      string            // Kernel object path: /devices/virtual/video4linux/video10
	Subsystem string            // "video4linux", "sound", etc.
	DevType   string            // Device type if available
	DevName   string            // Device name relative to /dev (e.g., "video10")
	DevPath   string            // sysfs DEVPATH
	Env       map[string]string // All environment variables from the event
}

// Node returns the /dev path of the event's device, or "" when the event
// carries no DEVNAME.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return e.DevName
	}
	return "/dev/" + e.DevName
}

// Monitor listens for kernel device events via netlink.
type Monitor struct {
	fd        int
	filters   map[string]struct{}
	filtersMu sync.RWMutex
}

// NewMonitor creates a new device event monitor bound to the kernel
// broadcast group.
func NewMonitor() (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // Kernel broadcast group
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	// Read timeout so Run can check its context periodically
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &Monitor{
		fd:      fd,
		filters: make(map[string]struct{}),
	}, nil
}

// AddSubsystemFilter adds a subsystem filter. Only events from matching
// subsystems will be returned. If no filters are added, all events pass through.
// This method is safe for concurrent use.
func (m *Monitor) AddSubsystemFilter(subsystem string) {
	m.filtersMu.Lock()
	m.filters[subsystem] = struct{}{}
	m.filtersMu.Unlock()
}

// Close releases the monitor resources.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run sends matching events to the channel until the context is cancelled
// or the socket fails. The events channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		event := ParseUEvent(buf[:n])
		if event == nil || !m.accepts(event) {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Monitor) accepts(e *Event) bool {
	m.filtersMu.RLock()
	defer m.filtersMu.RUnlock()
	if len(m.filters) == 0 {
		return true
	}
	_, ok := m.filters[e.Subsystem]
	return ok
}

// ParseUEvent parses a kernel uevent message.
// Format: "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0..."
// Messages rebroadcast by udev carry a binary "libudev" header which is skipped.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}

	if bytes.HasPrefix(data, []byte("libudev")) {
		data = skipUdevHeader(data)
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts[0]) == 0 {
		return nil
	}

	header := string(parts[0])
	atIdx := strings.Index(header, "@")
	if atIdx < 1 {
		return nil
	}

	event := &Event{
		Action: header[:atIdx],
		KObj:   header[atIdx+1:],
		Env:    make(map[string]string),
	}

	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		case "DEVPATH":
			event.DevPath = value
		}
	}

	return event
}

func skipUdevHeader(data []byte) []byte {
	for i := 0; i < len(data)-1; i++ {
		if data[i] != 0 {
			continue
		}
		rest := data[i+1:]
		seg := rest
		if end := bytes.IndexByte(rest, 0); end >= 0 {
			seg = rest[:end]
		}
		if idx := bytes.IndexByte(seg, '@'); idx > 0 && idx < 20 {
			return rest
		}
	}
	return data
}
