package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// cliOptions mirrors the shape of the humacli Options in main.
type cliOptions struct {
	Config string

	Port           string        `toml:"server.port" env:"SERVER_PORT"`
	AuthUsername   string        `toml:"auth.username" env:"AUTH_USERNAME"`
	SetupDevices   bool          `toml:"devices.setup_on_start" env:"DEVICES_SETUP_ON_START"`
	Retries        int           `toml:"process.retries" env:"PROCESS_RETRIES"`
	Volume         float64       `toml:"audio.volume" env:"AUDIO_VOLUME"`
	Engines        []string      `toml:"tts.engines" env:"TTS_ENGINES"`
	StopTimeout    time.Duration `toml:"process.stop_timeout" env:"PROCESS_STOP_TIMEOUT"`
	NotInFile      string        `toml:"missing.key"`
	unexportedPort string        `toml:"server.port"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleConfig = `
[server]
port = "0.0.0.0:9000"

[auth]
username = "admin"

[devices]
setup_on_start = true

[process]
retries = 5
stop_timeout = "3s"

[audio]
volume = 2

[tts]
engines = ["flite", "espeak"]
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &cliOptions{Config: writeConfig(t, sampleConfig), NotInFile: "kept"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := &cliOptions{
		Config:       opts.Config,
		Port:         "0.0.0.0:9000",
		AuthUsername: "admin",
		SetupDevices: true,
		Retries:      5,
		Volume:       2,
		Engines:      []string{"flite", "espeak"},
		StopTimeout:  3 * time.Second,
		NotInFile:    "kept",
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", opts, want)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("FAKECAM_SERVER_PORT", "127.0.0.1:7000")
	t.Setenv("FAKECAM_TTS_ENGINES", " pico2wave , ,festival ")
	t.Setenv("FAKECAM_PROCESS_STOP_TIMEOUT", "0.5")

	opts := &cliOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.AuthUsername, "auth-username", "", "")
	cmd.Flags().StringVar(&opts.Port, "port", "", "")
	if err := cmd.Flags().Parse([]string{"--port", "cli:1"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats env and file", opts.Port, "cli:1"},
		{"unset flag takes file", opts.AuthUsername, "admin"},
		{"env list", opts.Engines, []string{"pico2wave", "festival"}},
		{"env seconds", opts.StopTimeout, 500 * time.Millisecond},
		{"file int", opts.Retries, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &cliOptions{Config: filepath.Join(t.TempDir(), "nope.toml"), Port: "default"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Port != "default" {
		t.Errorf("Port = %q, want default kept", opts.Port)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &cliOptions{Config: writeConfig(t, "[server\nport = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":           "port",
		"LogFile":        "log-file",
		"AuthUsername":   "auth-username",
		"TeardownOnExit": "teardown-on-exit",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"process": map[string]any{"stop_timeout": "2s"},
		"flat":    "x",
	}
	tests := []struct {
		path string
		want any
	}{
		{"process.stop_timeout", "2s"},
		{"flat", "x"},
		{"process.missing", nil},
		{"flat.deeper", nil},
		{"missing.key", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDurationFromValue(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{"1500ms", 1500 * time.Millisecond, true},
		{"2", 2 * time.Second, true},
		{int64(3), 3 * time.Second, true},
		{0.25, 250 * time.Millisecond, true},
		{"soon", 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := durationFromValue(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("durationFromValue(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSetFieldValueIgnoresMismatchedTypes(t *testing.T) {
	var opts cliOptions
	v := reflect.ValueOf(&opts).Elem()
	setFieldValue(v.FieldByName("Retries"), "five")
	setFieldValue(v.FieldByName("SetupDevices"), "yes")
	setFieldValueFromString(v.FieldByName("Volume"), "loud")
	if opts.Retries != 0 || opts.SetupDevices || opts.Volume != 0 {
		t.Errorf("mismatched values were assigned: %+v", opts)
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
file = "/tmp/fakecam.log"
ffmpeg = "warn"
process = "debug"
ignored = 3
`)
	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" || cfg.File != "/tmp/fakecam.log" {
		t.Errorf("globals = %q/%q/%q", cfg.Level, cfg.Format, cfg.File)
	}
	want := map[string]string{"ffmpeg": "warn", "process": "debug"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	def := LoadLoggingConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if def.Level != "info" || def.Format != "text" || len(def.Modules) != 0 {
		t.Errorf("defaults = %+v", def)
	}
}
