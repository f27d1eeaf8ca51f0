package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "bad" {
		return "", errors.New("bad content")
	}
	return s, nil
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption) <-chan string {
	t.Helper()
	got := make(chan string, 8)
	opts = append([]WatcherOption{WithDebounce(30 * time.Millisecond)}, opts...)
	w := NewWatcher(path, readTrimmed, func(s string) { got <- s }, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return got
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func expect(t *testing.T, got <-chan string, want string) {
	t.Helper()
	select {
	case v := <-got:
		if v != want {
			t.Errorf("reloaded %q, want %q", v, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload, want %q", want)
	}
}

func expectNone(t *testing.T, got <-chan string) {
	t.Helper()
	select {
	case v := <-got:
		t.Errorf("unexpected reload %q", v)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	write(t, path, "one")
	got := startWatcher(t, path)

	write(t, path, "two")
	expect(t, got, "two")
}

func TestWatcherRenameOverSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.toml")
	write(t, path, "one")
	got := startWatcher(t, path)

	tmp := filepath.Join(dir, "prefs.toml.tmp")
	write(t, tmp, "renamed")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	expect(t, got, "renamed")
}

func TestWatcherFileCreatedAfterStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.toml")
	got := startWatcher(t, path)

	write(t, path, "created")
	expect(t, got, "created")
}

func TestWatcherDebounceCoalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	write(t, path, "0")
	got := startWatcher(t, path, WithDebounce(200*time.Millisecond))

	for _, v := range []string{"1", "2", "3", "4"} {
		write(t, path, v)
		time.Sleep(20 * time.Millisecond)
	}
	expect(t, got, "4")
	expectNone(t, got)
}

func TestWatcherIgnoresUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	write(t, path, "same")
	got := startWatcher(t, path)

	write(t, path, "same")
	expectNone(t, got)
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	write(t, path, "good")

	var errs atomic.Int32
	got := startWatcher(t, path, WithErrorHandler(func(error) { errs.Add(1) }))

	write(t, path, "bad")
	deadline := time.Now().Add(3 * time.Second)
	for errs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if errs.Load() == 0 {
		t.Fatal("error handler not called")
	}
	expectNone(t, got)

	write(t, path, "fixed")
	expect(t, got, "fixed")
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	got := make(chan string, 1)
	w := NewWatcher(path, readTrimmed, func(s string) { got <- s }, slog.New(slog.NewTextHandler(io.Discard, nil)), WithDebounce(10*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	write(t, path, "after stop")
	expectNone(t, got)
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w := NewWatcher("/nonexistent/x.toml", readTrimmed, func(string) {}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
