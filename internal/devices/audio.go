package devices

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/systemd"
)

// ServiceManager is the slice of the systemd user manager the sink needs.
// *systemd.Manager satisfies it.
type ServiceManager interface {
	ActiveState(ctx context.Context, unit string) (string, error)
	StartUnit(ctx context.Context, unit string) error
}

// AudioSink manages the null sink whose monitor source is the virtual
// microphone.
type AudioSink struct {
	runner   command.Runner
	settings config.Settings
	services ServiceManager
	logger   *slog.Logger

	mu       sync.Mutex
	moduleID int
	ready    bool
}

// NewAudioSink returns an AudioSink for settings.SinkName. services may be
// nil when no user systemd instance is reachable; the audio server check is
// then skipped.
func NewAudioSink(runner command.Runner, settings config.Settings, services ServiceManager) *AudioSink {
	return &AudioSink{
		runner:   runner,
		settings: settings,
		services: services,
		logger:   logging.GetLogger("devices"),
		moduleID: -1,
	}
}

// Name returns the sink name.
func (a *AudioSink) Name() string { return a.settings.SinkName }

// Monitor returns the source applications record from.
func (a *AudioSink) Monitor() string { return a.settings.SinkName + ".monitor" }

// IsSetup reports whether Setup completed and Teardown has not run since.
func (a *AudioSink) IsSetup() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// ModuleID returns the module index returned by the last Create, or -1.
func (a *AudioSink) ModuleID() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moduleID
}

func (a *AudioSink) pactl(ctx context.Context, args ...string) (string, error) {
	res, err := a.runner.Run(ctx, command.Cmd{Name: "pactl", Args: args, Timeout: a.settings.CommandTimeout})
	return res.Stdout, err
}

// Loaded reports whether the sink is listed by the audio server.
func (a *AudioSink) Loaded(ctx context.Context) bool {
	out, err := a.pactl(ctx, "list", "short", "sinks")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 1 && fields[1] == a.settings.SinkName {
			return true
		}
	}
	return false
}

// ModuleIDs returns the indexes of every null-sink module that created a
// sink with our name.
func (a *AudioSink) ModuleIDs(ctx context.Context) ([]int, error) {
	out, err := a.pactl(ctx, "list", "short", "modules")
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return parseModuleIDs(out, a.settings.SinkName), nil
}

func parseModuleIDs(out, sink string) []int {
	var ids []int
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "module-null-sink") || !strings.Contains(line, "sink_name="+sink) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if id, err := strconv.Atoi(fields[0]); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Cleanup stops stale writers and unloads every module owning the sink.
func (a *AudioSink) Cleanup(ctx context.Context) error {
	delay := a.settings.CleanupDelay
	for _, pattern := range []string{
		"ffmpeg.*" + a.settings.SinkName,
		"ffmpeg.*" + a.settings.SinkDescription,
	} {
		if _, err := KillByPattern(ctx, a.runner, pattern, delay); err != nil {
			a.logger.Warn("Failed to stop leftover writers", "pattern", pattern, "error", err)
		}
	}
	if err := sleep(ctx, delay); err != nil {
		return err
	}

	ids, err := a.ModuleIDs(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, id := range ids {
		if _, err := a.pactl(ctx, "unload-module", strconv.Itoa(id)); err != nil {
			a.logger.Warn("Failed to unload sink module", "module", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("unload module %d: %w", id, err)
			}
			continue
		}
		a.logger.Info("Unloaded sink module", "module", id)
	}
	if len(ids) > 0 {
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.moduleID = -1
	a.mu.Unlock()
	return firstErr
}

// Create loads a null sink and returns its module index.
func (a *AudioSink) Create(ctx context.Context) (int, error) {
	out, err := a.pactl(ctx, "load-module", "module-null-sink",
		"sink_name="+a.settings.SinkName,
		"sink_properties=device.description="+a.settings.SinkDescription)
	if err != nil {
		return -1, fmt.Errorf("load null sink: %w", err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return -1, fmt.Errorf("load null sink: unexpected module index %q", strings.TrimSpace(out))
	}

	if err := sleep(ctx, a.settings.CleanupDelay); err != nil {
		return id, err
	}
	if !a.Loaded(ctx) {
		return id, fmt.Errorf("%w: %s", ErrSinkMissing, a.settings.SinkName)
	}

	a.mu.Lock()
	a.moduleID = id
	a.mu.Unlock()
	a.logger.Info("Null sink created", "sink", a.settings.SinkName, "module", id)
	return id, nil
}

// AudioServer returns the active systemd unit serving the pulse protocol,
// or "" when none is active or systemd is unreachable.
func (a *AudioSink) AudioServer(ctx context.Context) string {
	if a.services == nil {
		return ""
	}
	for _, unit := range systemd.AudioServerUnits {
		state, err := a.services.ActiveState(ctx, unit)
		if err == nil && state == "active" {
			return unit
		}
	}
	return ""
}

// EnsureAudioServer starts the first startable audio server unit when none
// is active. Without a systemd connection it assumes a server is present.
func (a *AudioSink) EnsureAudioServer(ctx context.Context) error {
	if a.services == nil || a.AudioServer(ctx) != "" {
		return nil
	}
	for _, unit := range systemd.AudioServerUnits {
		if err := a.services.StartUnit(ctx, unit); err != nil {
			a.logger.Debug("Could not start audio server", "unit", unit, "error", err)
			continue
		}
		a.logger.Info("Started audio server", "unit", unit)
		return nil
	}
	return ErrNoAudioServer
}

// Setup recreates the sink from scratch.
func (a *AudioSink) Setup(ctx context.Context) error {
	if err := a.EnsureAudioServer(ctx); err != nil {
		// pulseaudio may still be autospawned outside systemd
		a.logger.Warn("Audio server check failed", "error", err)
	}
	if err := a.Cleanup(ctx); err != nil {
		a.logger.Warn("Audio cleanup incomplete", "error", err)
	}
	if _, err := a.Create(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()
	a.logger.Info("Use 'Monitor of " + a.settings.SinkDescription + "' as microphone input")
	return nil
}

// Teardown stops writers and removes the sink.
func (a *AudioSink) Teardown(ctx context.Context) error {
	a.mu.Lock()
	a.ready = false
	a.mu.Unlock()
	return a.Cleanup(ctx)
}
