package process

import (
	"log/slog"
	"time"

	"github.com/smazurov/fakecam/internal/logging"
)

// DefaultKillTimeout bounds the wait after SIGKILL before a stop gives up
// confirming the exit.
const DefaultKillTimeout = time.Second

// StateChangeCallback is called after a process state changes.
// Used for domain-specific reactions (e.g., events, metrics).
// It runs without any process lock held.
type StateChangeCallback func(name string, oldState, newState State, err error)

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, tts engines).
type LogParser func(line string) (level, msg string)

// Options configures ManagedProcess instances created by a Registry.
type Options struct {
	// Logger for lifecycle messages. If nil, uses slog.Default().
	Logger logging.Logger

	// OutputLogger receives process stdout/stderr lines. If nil, uses Logger.
	OutputLogger logging.Logger

	// LogParser extracts levels from output lines (optional).
	LogParser LogParser

	// OnStateChange is called on every transition (optional).
	OnStateChange StateChangeCallback

	// KillTimeout bounds the wait after SIGKILL. Zero means DefaultKillTimeout.
	KillTimeout time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Options)

// WithLogger sets the lifecycle logger.
func WithLogger(logger logging.Logger) RegistryOption {
	return func(o *Options) { o.Logger = logger }
}

// WithLogParser sets the logger and parser used for process output.
func WithLogParser(logger logging.Logger, parser LogParser) RegistryOption {
	return func(o *Options) {
		o.OutputLogger = logger
		o.LogParser = parser
	}
}

// WithStateChange registers a transition callback.
func WithStateChange(cb StateChangeCallback) RegistryOption {
	return func(o *Options) { o.OnStateChange = cb }
}

// WithKillTimeout overrides how long a stop waits after SIGKILL.
func WithKillTimeout(d time.Duration) RegistryOption {
	return func(o *Options) { o.KillTimeout = d }
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OutputLogger == nil {
		o.OutputLogger = o.Logger
	}
	if o.KillTimeout <= 0 {
		o.KillTimeout = DefaultKillTimeout
	}
	return o
}
