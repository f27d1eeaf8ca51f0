package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that collaborators depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects the global level, output format, optional log file and
// per-module level overrides.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	File    string            `toml:"file"`
	Modules map[string]string `toml:"modules"`
}

// registry owns the module loggers. Initialize rebuilds their output
// chains; loggers obtained earlier keep their old chain but follow the new
// level through the shared LevelVar.
type registry struct {
	mu       sync.RWMutex
	cfg      Config
	ready    bool
	base     slog.LevelVar
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	buffer   *RingBuffer
	callback LogCallback
	file     io.WriteCloser
}

func newRegistry() *registry {
	return &registry{
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
		buffer:  NewRingBuffer(defaultBufferSize),
	}
}

var std = newRegistry()

// Initialize applies config. A log file that cannot be opened is returned
// as an error while every other output stays active.
func Initialize(config Config) error {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.cfg = config
	std.ready = true

	if std.file != nil {
		_ = std.file.Close()
		std.file = nil
	}
	var fileErr error
	if config.File != "" {
		f, err := openLogFile(config.File)
		if err != nil {
			fileErr = err
		} else {
			std.file = f
		}
	}

	base := std.globalLevel()
	std.base.Set(base)
	for module, lv := range std.levels {
		lv.Set(std.moduleLevel(module, base))
		std.loggers[module] = slog.New(std.handler(lv)).With("module", module)
	}

	slog.SetDefault(slog.New(std.handler(&std.base)))
	return fileErr
}

// Close closes the log file, if any.
func Close() error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file == nil {
		return nil
	}
	err := std.file.Close()
	std.file = nil
	return err
}

// GetBuffer returns the ring buffer of recent entries.
func GetBuffer() *RingBuffer {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.buffer
}

// SetLogCallback registers fn to receive every entry as it is buffered.
// The API uses it to publish LogEntryEvent. nil removes the callback.
func SetLogCallback(fn LogCallback) {
	std.mu.Lock()
	std.callback = fn
	std.mu.Unlock()
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	std.mu.RLock()
	logger, ok := std.loggers[module]
	std.mu.RUnlock()
	if ok {
		return logger
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if logger, ok := std.loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	if std.ready {
		lv.Set(std.moduleLevel(module, std.globalLevel()))
	}
	logger = slog.New(std.handler(lv)).With("module", module)
	std.loggers[module] = logger
	std.levels[module] = lv
	return logger
}

// SetModuleLevel changes the level of module at runtime.
func SetModuleLevel(module, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	GetLogger(module)

	std.mu.Lock()
	defer std.mu.Unlock()
	std.levels[module].Set(parsed)
	if std.cfg.Modules == nil {
		std.cfg.Modules = make(map[string]string)
	}
	std.cfg.Modules[module] = level
	return nil
}

// globalLevel returns the configured level, info when unset. Caller holds mu.
func (r *registry) globalLevel() slog.Level {
	if l, ok := parseLevel(r.cfg.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// moduleLevel returns the override for module, or base. Caller holds mu.
func (r *registry) moduleLevel(module string, base slog.Level) slog.Level {
	if l, ok := parseLevel(r.cfg.Modules[module]); ok {
		return l
	}
	return base
}

// handler builds the output chain for one level. Caller holds mu.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	format := r.cfg.Format

	var chain MultiHandler
	if stdoutUsable() {
		chain = append(chain, formatHandler(os.Stdout, format, opts))
	}
	if IsJournalAvailable() {
		chain = append(chain, NewJournalHandler(level))
	}
	if r.file != nil {
		chain = append(chain, formatHandler(r.file, format, opts))
	}
	chain = append(chain, NewBufferHandler(level))

	if len(chain) == 1 {
		return chain[0]
	}
	return chain
}

func formatHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// stdoutUsable is false when stdout is closed or redirected to /dev/null,
// as under systemd with StandardOutput=null.
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	if null, err := os.Stat(os.DevNull); err == nil && os.SameFile(fi, null) {
		return false
	}
	mode := fi.Mode()
	return mode.IsRegular() || mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
