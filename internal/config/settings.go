package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings holds the runtime tunables for devices, media and process
// supervision. Every field can be set from the [video], [audio], [tts],
// [process] and [paths] tables of the config file or a FAKECAM_* env var.
type Settings struct {
	Config string

	// Virtual camera (v4l2loopback)
	VideoDevice        string `toml:"video.device" env:"VIDEO_DEVICE"`
	VideoNr            int    `toml:"video.nr" env:"VIDEO_NR"`
	VideoCardLabel     string `toml:"video.card_label" env:"VIDEO_CARD_LABEL"`
	VideoExclusiveCaps bool   `toml:"video.exclusive_caps" env:"VIDEO_EXCLUSIVE_CAPS"`
	VideoMaxBuffers    int    `toml:"video.max_buffers" env:"VIDEO_MAX_BUFFERS"`
	VideoWidth         int    `toml:"video.width" env:"VIDEO_WIDTH"`
	VideoHeight        int    `toml:"video.height" env:"VIDEO_HEIGHT"`
	VideoFPS           int    `toml:"video.fps" env:"VIDEO_FPS"`
	VMWidth            int    `toml:"video.vm_width" env:"VIDEO_VM_WIDTH"`
	VMHeight           int    `toml:"video.vm_height" env:"VIDEO_VM_HEIGHT"`
	VMFPS              int    `toml:"video.vm_fps" env:"VIDEO_VM_FPS"`
	PixelFormat        string `toml:"video.pixel_format" env:"VIDEO_PIXEL_FORMAT"`
	VideoDir           string `toml:"video.dir" env:"VIDEO_DIR"`

	// Virtual microphone (null sink)
	SinkName        string  `toml:"audio.sink_name" env:"AUDIO_SINK_NAME"`
	SinkDescription string  `toml:"audio.sink_description" env:"AUDIO_SINK_DESCRIPTION"`
	Volume          float64 `toml:"audio.volume" env:"AUDIO_VOLUME"`
	AudioDir        string  `toml:"audio.dir" env:"AUDIO_DIR"`
	ToneFrequency   int     `toml:"audio.tone_frequency" env:"AUDIO_TONE_FREQUENCY"`
	ToneDuration    int     `toml:"audio.tone_duration" env:"AUDIO_TONE_DURATION"`
	ToneAmplitude   float64 `toml:"audio.tone_amplitude" env:"AUDIO_TONE_AMPLITUDE"`

	// Text to speech
	TTSEngines   []string `toml:"tts.engines" env:"TTS_ENGINES"`
	TTSSpeed     int      `toml:"tts.speed" env:"TTS_SPEED"`
	TTSPitch     int      `toml:"tts.pitch" env:"TTS_PITCH"`
	TTSAmplitude int      `toml:"tts.amplitude" env:"TTS_AMPLITUDE"`

	// Process supervision
	FFmpegPath        string        `toml:"process.ffmpeg" env:"PROCESS_FFMPEG"`
	StartGrace        time.Duration `toml:"process.start_grace" env:"PROCESS_START_GRACE"`
	StopTimeout       time.Duration `toml:"process.stop_timeout" env:"PROCESS_STOP_TIMEOUT"`
	KillTimeout       time.Duration `toml:"process.kill_timeout" env:"PROCESS_KILL_TIMEOUT"`
	CommandTimeout    time.Duration `toml:"process.command_timeout" env:"PROCESS_COMMAND_TIMEOUT"`
	CleanupDelay      time.Duration `toml:"process.cleanup_delay" env:"PROCESS_CLEANUP_DELAY"`
	ModuleReloadDelay time.Duration `toml:"process.module_reload_delay" env:"PROCESS_MODULE_RELOAD_DELAY"`
	CleanupRetries    int           `toml:"process.cleanup_retries" env:"PROCESS_CLEANUP_RETRIES"`
	UseSudo           bool          `toml:"process.use_sudo" env:"PROCESS_USE_SUDO"`

	// Files
	PrefsFile string `toml:"paths.prefs" env:"PATHS_PREFS"`
	LockFile  string `toml:"paths.lock" env:"PATHS_LOCK"`
}

// VideoMode is an output resolution and frame rate.
type VideoMode struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

// DefaultTTSEngines is the engine priority used when none is configured.
var DefaultTTSEngines = []string{"flite", "pico2wave", "espeak-ng", "festival", "espeak"}

// Defaults returns the built-in settings.
func Defaults() Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	return Settings{
		VideoDevice:        "/dev/video10",
		VideoNr:            10,
		VideoCardLabel:     "FakeCam",
		VideoExclusiveCaps: true,
		VideoMaxBuffers:    2,
		VideoWidth:         640,
		VideoHeight:        480,
		VideoFPS:           30,
		VMWidth:            360,
		VMHeight:           240,
		VMFPS:              15,
		PixelFormat:        "yuyv422",
		VideoDir:           filepath.Join(home, "fakecam_videos"),

		SinkName:        "fakemic",
		SinkDescription: "FakeMicrophone",
		Volume:          2.5,
		AudioDir:        filepath.Join(home, "fakecam_audio"),
		ToneFrequency:   440,
		ToneDuration:    5,
		ToneAmplitude:   0.8,

		TTSEngines:   append([]string(nil), DefaultTTSEngines...),
		TTSSpeed:     160,
		TTSPitch:     50,
		TTSAmplitude: 200,

		FFmpegPath:        "ffmpeg",
		StartGrace:        2 * time.Second,
		StopTimeout:       2 * time.Second,
		KillTimeout:       time.Second,
		CommandTimeout:    10 * time.Second,
		CleanupDelay:      500 * time.Millisecond,
		ModuleReloadDelay: 500 * time.Millisecond,
		CleanupRetries:    3,
		UseSudo:           true,

		PrefsFile: filepath.Join(home, ".config", "fakecam", "prefs.toml"),
		LockFile:  filepath.Join(runtimeDir(), "fakecam.lock"),
	}
}

// LoadSettings returns Defaults overlaid with the config file at path (if it
// exists) and FAKECAM_* environment variables. Paths starting with ~ are
// expanded.
func LoadSettings(path string) (Settings, error) {
	s := Defaults()
	s.Config = path
	if err := LoadConfig(&s, nil); err != nil {
		return s, err
	}
	s.VideoDir = ExpandHome(s.VideoDir)
	s.AudioDir = ExpandHome(s.AudioDir)
	s.PrefsFile = ExpandHome(s.PrefsFile)
	s.LockFile = ExpandHome(s.LockFile)
	return s, nil
}

// Mode returns the output mode, reduced when running inside a VM.
func (s Settings) Mode(vm bool) VideoMode {
	if vm {
		return VideoMode{Width: s.VMWidth, Height: s.VMHeight, FPS: s.VMFPS}
	}
	return VideoMode{Width: s.VideoWidth, Height: s.VideoHeight, FPS: s.VideoFPS}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func runtimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}
