package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/smazurov/fakecam/internal/audio"
	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/devices"
	"github.com/smazurov/fakecam/internal/download"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/ffmpeg"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/metrics"
	"github.com/smazurov/fakecam/internal/metrics/collectors"
	"github.com/smazurov/fakecam/internal/metrics/exporters"
	"github.com/smazurov/fakecam/internal/monitor"
	"github.com/smazurov/fakecam/internal/prefs"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/internal/systemd"
	"github.com/smazurov/fakecam/internal/tts"
	"github.com/smazurov/fakecam/internal/video"
)

// App holds every long-lived component of a fakecam instance.
type App struct {
	Settings config.Settings
	Bus      *events.Bus
	Runner   command.Runner
	Registry *process.Registry
	TTS      *tts.Manager
	Video    *video.Manager
	Audio    *audio.Manager
	Devices  *devices.Manager
	Monitor  *monitor.System
	Prefs    *prefs.Store

	services   *systemd.Manager
	collectors []*collectors.ProgressCollector
	exporter   *exporters.EventExporter
	logger     *slog.Logger
}

// NewApp builds the component graph for settings. Nothing touches devices
// or starts processes yet.
func NewApp(ctx context.Context, settings config.Settings) *App {
	a := &App{
		Settings: settings,
		Bus:      events.New(),
		Runner:   command.Exec{Sudo: settings.UseSudo},
		logger:   logging.GetLogger("main"),
	}

	a.Registry = process.NewRegistry(
		process.WithLogger(logging.GetLogger("process")),
		process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel),
		process.WithKillTimeout(settings.KillTimeout),
		process.WithStateChange(a.onStateChange),
	)

	vm := devices.DetectVM(ctx, a.Runner)
	a.Prefs = prefs.NewStore(settings.PrefsFile, prefs.Defaults(vm), a.Bus)
	if err := a.Prefs.Load(); err != nil {
		a.logger.Warn("Failed to load preferences, using defaults", "path", settings.PrefsFile, "error", err)
	}

	a.TTS = tts.NewManager(a.Runner, settings.TTSEngines, tts.Params{
		Speed:     settings.TTSSpeed,
		Pitch:     settings.TTSPitch,
		Amplitude: settings.TTSAmplitude,
	}, settings.FFmpegPath)

	a.Video = video.NewManager(a.Registry, download.New(), a.Bus, settings, a.Prefs.VMMode())
	a.Audio = audio.NewManager(a.Registry, a.Runner, a.TTS, a.Bus, settings)

	var services devices.ServiceManager
	if m, err := systemd.NewManager(ctx); err != nil {
		a.logger.Debug("User systemd unavailable, skipping audio server check", "error", err)
	} else {
		a.services = m
		services = m
	}
	a.Devices = devices.NewManager(
		devices.NewVideoDevice(a.Runner, settings),
		devices.NewAudioSink(a.Runner, settings, services),
		a.Bus,
	)
	a.Monitor = monitor.New(a.Registry, a.Runner, a.Video, settings)
	return a
}

func (a *App) onStateChange(name string, oldState, newState process.State, err error) {
	metrics.RecordTransition(name, newState)

	ev := events.ProcessStateChangedEvent{
		Name:      name,
		OldState:  oldState.String(),
		NewState:  newState.String(),
		Timestamp: events.Timestamp(),
	}
	if p, ok := a.Registry.Lookup(name); ok {
		ev.PID = p.PID()
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Bus.Publish(ev)

	if newState == process.StateStopped || newState == process.StateError {
		metrics.DeletePipelineMetrics(name)
	}
}

// StartMetrics opens one ffmpeg progress socket per pipeline next to the
// lock file and republishes the samples on the bus. Failures only disable
// the pipeline metrics.
func (a *App) StartMetrics(ctx context.Context) {
	dir := filepath.Dir(a.Settings.LockFile)
	for _, pipeline := range []struct {
		name string
		set  func(string)
	}{
		{video.ProcessName, a.Video.SetProgressSocket},
		{audio.ProcessName, a.Audio.SetProgressSocket},
	} {
		c := collectors.NewProgressCollector(filepath.Join(dir, "fakecam-"+pipeline.name+".progress"), pipeline.name)
		if err := c.Start(ctx); err != nil {
			a.logger.Warn("Pipeline metrics disabled", "process", pipeline.name, "error", err)
			continue
		}
		pipeline.set(c.SocketPath())
		a.collectors = append(a.collectors, c)
	}

	a.exporter = exporters.NewEventExporter(a.Bus)
	a.exporter.Start(ctx)
}

// ApplyPreferences reacts to external edits of the preferences file.
func (a *App) ApplyPreferences(ctx context.Context, p prefs.Preferences) {
	if p.VMMode == a.Video.VMMode() {
		return
	}
	if err := a.Video.SetVMMode(ctx, p.VMMode); err != nil {
		a.logger.Warn("Failed to apply VM mode from preferences", "error", err)
	}
}

// Shutdown stops every pipeline and then removes the devices, since
// modprobe -r fails while a writer holds the node. teardown=false leaves
// the devices in place.
func (a *App) Shutdown(ctx context.Context, teardown bool) error {
	results := a.Registry.StopAll(a.Settings.StopTimeout)
	var unconfirmed []string
	for name, ok := range results {
		if !ok {
			unconfirmed = append(unconfirmed, name)
		}
	}

	ok := true
	if teardown {
		ok = a.Devices.TeardownAll(ctx)
	}

	if len(unconfirmed) > 0 {
		return fmt.Errorf("kill unconfirmed for %v", unconfirmed)
	}
	if !ok {
		return fmt.Errorf("device teardown incomplete")
	}
	return nil
}

// Close releases background resources. It does not stop processes.
func (a *App) Close() {
	if a.exporter != nil {
		a.exporter.Stop()
	}
	for _, c := range a.collectors {
		if err := c.Stop(); err != nil {
			a.logger.Debug("Failed to stop progress collector", "error", err)
		}
	}
	if err := a.Prefs.Close(); err != nil {
		a.logger.Debug("Failed to stop preferences watcher", "error", err)
	}
	if a.services != nil {
		a.services.Close()
	}
}

// commandContext bounds one-shot CLI operations.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
