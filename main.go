package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smazurov/fakecam/cmd"
	"github.com/smazurov/fakecam/internal/api"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/devices"
	"github.com/smazurov/fakecam/internal/instance"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/metrics"
	"github.com/smazurov/fakecam/internal/metrics/exporters"
	"github.com/smazurov/fakecam/internal/prefs"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"~/.config/fakecam/config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:"127.0.0.1:8091" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, empty disables auth
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Device lifecycle
	SetupDevices   bool `help:"Set up the virtual devices on start" default:"true" toml:"devices.setup_on_start" env:"DEVICES_SETUP_ON_START"`
	TeardownOnExit bool `help:"Remove the virtual devices on exit" default:"true" toml:"devices.teardown_on_exit" env:"DEVICES_TEARDOWN_ON_EXIT"`

	// Logging settings
	Debug         bool   `help:"Enable debug logging"`
	LogFile       string `help:"Also write logs to this file" toml:"logging.file" env:"LOGGING_FILE"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	var settings config.Settings
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		opts.Config = config.ExpandHome(opts.Config)
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Format = opts.LoggingFormat
		if opts.Debug {
			loggingConfig.Level = "debug"
		}
		if opts.LogFile != "" {
			loggingConfig.File = config.ExpandHome(opts.LogFile)
		}
		if initErr := logging.Initialize(loggingConfig); initErr != nil {
			slog.Warn("Log file disabled", "error", initErr)
		}

		logger := logging.GetLogger("main")

		var loadErr error
		settings, loadErr = config.LoadSettings(opts.Config)
		if loadErr != nil {
			logger.Warn("Failed to load settings, using defaults", "error", loadErr)
		}

		// Everything below only runs for the server itself, not subcommands.
		// OnStart runs in its own goroutine; mu keeps OnStop from reading
		// half-built state and makes it wait for setup to finish.
		var (
			mu       sync.Mutex
			stopping bool
			app      *cmd.App
			lock     *instance.Lock
			server   *api.Server
			watcher  *devices.Watcher
			cancel   context.CancelFunc
		)

		hooks.OnStart(func() {
			mu.Lock()
			if stopping {
				mu.Unlock()
				return
			}

			var lockErr error
			lock, lockErr = instance.Acquire(settings.LockFile)
			if lockErr != nil {
				logger.Error("Cannot start", "error", lockErr)
				os.Exit(1)
			}

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			app = cmd.NewApp(ctx, settings)
			bus := app.Bus
			logging.SetLogCallback(func(entry logging.LogEntry) {
				bus.Publish(api.NewLogEntryEvent(entry))
			})

			prometheus.MustRegister(metrics.NewProcessCollector(app.Registry))
			app.StartMetrics(ctx)

			a := app
			if watchErr := a.Prefs.Watch(func(p prefs.Preferences) { a.ApplyPreferences(ctx, p) }); watchErr != nil {
				logger.Warn("Preferences hot reload disabled", "error", watchErr)
			}

			if opts.SetupDevices {
				app.Devices.SetupAll(ctx)
			}

			watcher = devices.NewWatcher(settings.VideoDevice, app.Bus)
			if watchErr := watcher.Start(ctx); watchErr != nil {
				logger.Warn("Device hotplug monitoring disabled", "error", watchErr)
			}

			server = api.NewServer(&api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				Processes:         app.Registry,
				StopTimeout:       settings.StopTimeout,
				Video:             app.Video,
				Audio:             app.Audio,
				Devices:           app.Devices,
				Monitor:           app.Monitor,
				Prefs:             app.Prefs,
				EventBus:          app.Bus,
				PrometheusHandler: exporters.HTTPHandler(),
			})

			if sent, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			} else if sent {
				logger.Debug("Notified systemd")
			}

			srv := server
			mu.Unlock()

			if startErr := srv.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			mu.Lock()
			stopping = true
			app, lock, server, watcher, cancel := app, lock, server, watcher, cancel
			mu.Unlock()

			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			if watcher != nil {
				watcher.Stop()
			}

			if app != nil {
				ctx, done := context.WithTimeout(context.Background(), settings.CommandTimeout*3)
				if shutdownErr := app.Shutdown(ctx, opts.TeardownOnExit); shutdownErr != nil {
					logger.Error("Shutdown incomplete", "error", shutdownErr)
				}
				done()
				app.Close()
			}
			if cancel != nil {
				cancel()
			}

			if lock != nil {
				if releaseErr := lock.Release(); releaseErr != nil && !errors.Is(releaseErr, os.ErrNotExist) {
					logger.Warn("Failed to release instance lock", "error", releaseErr)
				}
			}
			_ = logging.Close()
		})
	})

	loadSettings := func() config.Settings { return settings }
	root := cli.Root()
	root.Short = "Virtual camera and microphone for testing video calls"
	root.AddCommand(
		cmd.NewRunCmd(loadSettings),
		cmd.NewDevicesCmd(loadSettings),
		cmd.NewLibraryCmd(),
		cmd.NewVideoCmd(loadSettings),
		cmd.NewAudioCmd(loadSettings),
		cmd.NewTTSCmd(loadSettings),
		cmd.NewStatusCmd(),
	)

	cli.Run()
}
