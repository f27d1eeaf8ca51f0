package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	want := Defaults()
	if s.VideoDevice != want.VideoDevice || s.SinkName != want.SinkName {
		t.Errorf("device defaults = %q/%q", s.VideoDevice, s.SinkName)
	}
	if s.StartGrace != 2*time.Second || s.StopTimeout != 2*time.Second {
		t.Errorf("process timeouts = %v/%v", s.StartGrace, s.StopTimeout)
	}
	if !reflect.DeepEqual(s.TTSEngines, DefaultTTSEngines) {
		t.Errorf("TTSEngines = %v", s.TTSEngines)
	}
}

func TestLoadSettingsFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fakecam.toml")
	content := `
[video]
device = "/dev/video42"
nr = 42
fps = 25

[audio]
volume = 3
sink_name = "testmic"

[tts]
engines = ["espeak"]

[process]
start_grace = "750ms"
stop_timeout = 4
kill_timeout = 0.25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FAKECAM_AUDIO_SINK_NAME", "envmic")
	t.Setenv("FAKECAM_PROCESS_CLEANUP_DELAY", "2s")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"device", s.VideoDevice, "/dev/video42"},
		{"nr", s.VideoNr, 42},
		{"fps", s.VideoFPS, 25},
		{"width untouched", s.VideoWidth, 640},
		{"volume from int", s.Volume, 3.0},
		{"sink from env", s.SinkName, "envmic"},
		{"engines", s.TTSEngines, []string{"espeak"}},
		{"grace string", s.StartGrace, 750 * time.Millisecond},
		{"stop seconds", s.StopTimeout, 4 * time.Second},
		{"kill fractional", s.KillTimeout, 250 * time.Millisecond},
		{"cleanup env", s.CleanupDelay, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestSettingsMode(t *testing.T) {
	s := Defaults()
	if got := s.Mode(false); got != (VideoMode{Width: 640, Height: 480, FPS: 30}) {
		t.Errorf("Mode(false) = %+v", got)
	}
	if got := s.Mode(true); got != (VideoMode{Width: 360, Height: 240, FPS: 15}) {
		t.Errorf("Mode(true) = %+v", got)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	tests := map[string]string{
		"~":               "/home/tester",
		"~/fakecam_audio": "/home/tester/fakecam_audio",
		"/abs/path":       "/abs/path",
		"rel/~path":       "rel/~path",
	}
	for in, want := range tests {
		if got := ExpandHome(in); got != want {
			t.Errorf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
