package config

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads one file when it changes on disk and hands the parsed
// value to a callback. The parent directory is watched rather than the
// file, so the file may not exist yet and rename-over saves are seen.
// Saves that leave the content unchanged are not reported.
type Watcher[T any] struct {
	path     string
	load     func(path string) (T, error)
	onChange func(T)
	onError  func(error)
	debounce time.Duration
	logger   *slog.Logger

	fsw      *fsnotify.Watcher
	last     []byte
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*watcherOptions)

type watcherOptions struct {
	debounce time.Duration
	onError  func(error)
}

// WithDebounce sets how long the file must be quiet before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(o *watcherOptions) { o.debounce = d }
}

// WithErrorHandler is called when a reload fails. Errors are always logged.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(o *watcherOptions) { o.onError = fn }
}

// NewWatcher creates a watcher for path. load parses the file; onChange
// receives every successfully loaded new content.
func NewWatcher[T any](path string, load func(string) (T, error), onChange func(T), logger *slog.Logger, opts ...WatcherOption) *Watcher[T] {
	o := watcherOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	return &Watcher[T]{
		path:     filepath.Clean(path),
		load:     load,
		onChange: onChange,
		onError:  o.onError,
		debounce: o.debounce,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The current content becomes the baseline.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.last, _ = os.ReadFile(w.path)

	w.logger.Debug("Watching file", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop ends the watch and waits for the loop to exit. Safe to call twice.
func (w *Watcher[T]) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.fsw == nil {
			return
		}
		err = w.fsw.Close()
		<-w.done
	})
	return err
}

func (w *Watcher[T]) run() {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			// Write for in-place saves, Create for rename-over saves
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher[T]) reload() {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil && bytes.Equal(data, w.last) {
		w.logger.Debug("File rewritten without changes", "path", w.path)
		return
	}

	v, loadErr := w.load(w.path)
	if loadErr != nil {
		w.logger.Warn("Failed to reload file", "path", w.path, "error", loadErr)
		if w.onError != nil {
			w.onError(loadErr)
		}
		return
	}
	w.last = data
	w.onChange(v)
}
