package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLogging(t *testing.T) {
	t.Helper()
	std = newRegistry()
	t.Cleanup(func() { _ = Close() })
}

func enabled(l *slog.Logger, level slog.Level) bool {
	return l.Handler().Enabled(context.Background(), level)
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging(t)
	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"process": "debug", "api": "warn"},
	})

	tests := []struct {
		module                 string
		debug, info, warnLevel bool
	}{
		{"process", true, true, true},
		{"api", false, false, true},
		{"video", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			logger := GetLogger(tt.module)
			if got := enabled(logger, slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if got := enabled(logger, slog.LevelInfo); got != tt.info {
				t.Errorf("info enabled = %v, want %v", got, tt.info)
			}
			if got := enabled(logger, slog.LevelWarn); got != tt.warnLevel {
				t.Errorf("warn enabled = %v, want %v", got, tt.warnLevel)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetLogging(t)

	early := GetLogger("ffmpeg")
	if enabled(early, slog.LevelDebug) {
		t.Fatal("debug enabled before Initialize")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"ffmpeg": "debug"}})

	if !enabled(early, slog.LevelDebug) {
		t.Error("logger obtained before Initialize did not pick up the module level")
	}
	if !enabled(GetLogger("ffmpeg"), slog.LevelDebug) {
		t.Error("logger obtained after Initialize has the wrong level")
	}
}

func TestMultiHandlerRespectsEachLevel(t *testing.T) {
	var debugOut, infoOut bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(multi).With("module", "process")

	logger.Debug("grace period elapsed")
	logger.Info("process running")

	if !strings.Contains(debugOut.String(), "grace period elapsed") {
		t.Errorf("debug handler missed debug record: %q", debugOut.String())
	}
	if strings.Contains(infoOut.String(), "grace period elapsed") {
		t.Errorf("info handler wrote debug record: %q", infoOut.String())
	}
	if !strings.Contains(infoOut.String(), "module=process") {
		t.Errorf("attrs not forwarded: %q", infoOut.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"Warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBufferReceivesEntries(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info", Format: "text"})

	var got []LogEntry
	SetLogCallback(func(entry LogEntry) {
		got = append(got, entry)
	})
	defer SetLogCallback(nil)

	GetLogger("video").Info("Video started", "source", "Test Pattern", "pid", 42)

	entries := GetBuffer().ReadAll()
	if len(entries) == 0 {
		t.Fatal("ring buffer is empty")
	}
	last := entries[len(entries)-1]
	if last.Module != "video" || last.Message != "Video started" {
		t.Errorf("last entry = %+v", last)
	}
	if last.Attributes["source"] != "Test Pattern" {
		t.Errorf("source attribute = %v", last.Attributes["source"])
	}
	if len(got) != 1 || got[0].Message != "Video started" {
		t.Errorf("callback entries = %+v", got)
	}
}

func TestLogFile(t *testing.T) {
	resetLogging(t)
	path := filepath.Join(t.TempDir(), "logs", "fakecam.log")

	if err := Initialize(Config{Level: "debug", Format: "text", File: path}); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	GetLogger("devices").Debug("Loading v4l2loopback", "video_nr", 10)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Loading v4l2loopback") || !strings.Contains(string(data), "module=devices") {
		t.Errorf("log file content = %q", data)
	}
}

func TestLogFileUnwritable(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Initialize(Config{Level: "info", File: filepath.Join(blocker, "fakecam.log")}); err == nil {
		t.Error("Initialize() error = nil, want error for unusable log path")
	}
	// Logging still works
	GetLogger("app").Info("still logging")
	if GetBuffer().Count() == 0 {
		t.Error("buffer empty after failed log file open")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("tts")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before SetModuleLevel")
	}
	if err := SetModuleLevel("tts", "debug"); err != nil {
		t.Fatalf("SetModuleLevel() error = %v", err)
	}
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after SetModuleLevel")
	}
	if err := SetModuleLevel("tts", "loud"); err == nil {
		t.Error("SetModuleLevel() accepted an invalid level")
	}
}

func TestRingBufferTail(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		rb.Write(LogEntry{Message: msg})
	}

	all := rb.ReadAll()
	if len(all) != 3 || all[0].Message != "b" || all[2].Message != "d" {
		t.Errorf("ReadAll() = %+v, want b,c,d", all)
	}
	tail := rb.Tail(2)
	if len(tail) != 2 || tail[0].Message != "c" || tail[1].Message != "d" {
		t.Errorf("Tail(2) = %+v, want c,d", tail)
	}
	if got := rb.Tail(0); len(got) != 3 {
		t.Errorf("Tail(0) len = %d, want 3", len(got))
	}

	empty := NewRingBuffer(0)
	if got := empty.ReadAll(); got != nil {
		t.Errorf("ReadAll() on empty buffer = %+v", got)
	}
	empty.Write(LogEntry{Message: "x"})
	empty.Write(LogEntry{Message: "y"})
	if got := empty.ReadAll(); empty.Count() != 1 || got[0].Message != "y" {
		t.Errorf("size-0 buffer holds %+v, want only y", got)
	}
}

func TestBufferHandlerScopes(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "debug"})

	h := NewBufferHandler(slog.LevelDebug)
	logger := slog.New(h).With("module", "process", "name", "video").
		WithGroup("exit").With("code", 1)
	logger.Warn("Process exited", "took", 1500*time.Millisecond, slog.Group("signal", "name", "SIGTERM"))

	entries := GetBuffer().ReadAll()
	if len(entries) == 0 {
		t.Fatal("ring buffer is empty")
	}
	e := entries[len(entries)-1]
	if e.Module != "process" || e.Level != "warn" {
		t.Errorf("module/level = %q/%q", e.Module, e.Level)
	}
	want := map[string]any{
		"name":             "video",
		"exit.code":        int64(1),
		"exit.took":        "1.5s",
		"exit.signal.name": "SIGTERM",
	}
	for k, v := range want {
		if e.Attributes[k] != v {
			t.Errorf("Attributes[%q] = %#v, want %#v", k, e.Attributes[k], v)
		}
	}
}

func TestJournalKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"module", "MODULE"},
		{"exit_code", "EXIT_CODE"},
		{"exit.code", "EXIT_CODE"},
		{"_private", "PRIVATE"},
		{"1st", "ST"},
		{"message", ""},
		{"priority", ""},
		{"--", ""},
	}
	for _, tt := range tests {
		if got := journalKey(tt.in); got != tt.want {
			t.Errorf("journalKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJournalValue(t *testing.T) {
	tests := []struct {
		v    slog.Value
		want string
	}{
		{slog.IntValue(42), "42"},
		{slog.Float64Value(0.5), "0.5"},
		{slog.BoolValue(true), "true"},
		{slog.DurationValue(2 * time.Second), "2s"},
		{slog.AnyValue(os.ErrNotExist), "file does not exist"},
	}
	for _, tt := range tests {
		if got := journalValue(tt.v); got != tt.want {
			t.Errorf("journalValue(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
