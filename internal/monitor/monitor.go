// Package monitor reports what the virtual devices are currently carrying:
// the format negotiated on the loopback node, the sample spec of the null
// sink, pipeline uptimes and raw bitrate estimates.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/pkg/linuxav/v4l2"
)

// Registry names of the pipelines whose uptime is reported.
const (
	VideoProcess = "video"
	AudioProcess = "audio"
)

// VideoStats describes the loopback node.
type VideoStats struct {
	Device       string  `json:"device" example:"/dev/video10"`
	DeviceExists bool    `json:"device_exists"`
	Streaming    bool    `json:"streaming"`
	Width        int     `json:"width" example:"640"`
	Height       int     `json:"height" example:"480"`
	Resolution   string  `json:"resolution" example:"640x480"`
	PixelFormat  string  `json:"pixel_format" example:"YUYV"`
	FrameSize    int     `json:"frame_size" doc:"Bytes per frame reported by the driver"`
	FPS          float64 `json:"fps" example:"30"`
}

// AudioStats describes the null sink.
type AudioStats struct {
	Sink       string  `json:"sink" example:"fakemic"`
	SinkExists bool    `json:"sink_exists"`
	Streaming  bool    `json:"streaming"`
	State      string  `json:"state,omitempty" example:"RUNNING"`
	SampleRate int     `json:"sample_rate" example:"44100"`
	Channels   int     `json:"channels" example:"2"`
	Layout     string  `json:"layout" example:"Stereo"`
	Format     string  `json:"format" example:"s16le"`
	Volume     float64 `json:"volume" doc:"Sink volume, 1.0 is 100%"`
}

// StreamStats holds uptimes and bitrate estimates.
type StreamStats struct {
	VideoUptime  float64 `json:"video_uptime_seconds"`
	AudioUptime  float64 `json:"audio_uptime_seconds"`
	VideoBitrate float64 `json:"video_bitrate_mbps" doc:"Raw frame bitrate estimate"`
	AudioBitrate float64 `json:"audio_bitrate_kbps" doc:"PCM bitrate estimate"`
}

// Snapshot is the combined view returned by All.
type Snapshot struct {
	Video     VideoStats  `json:"video"`
	Audio     AudioStats  `json:"audio"`
	Stream    StreamStats `json:"stream"`
	Timestamp time.Time   `json:"timestamp"`
}

// ModeSource reports the output mode currently configured for the camera.
// *video.Manager satisfies it.
type ModeSource interface {
	Mode() config.VideoMode
}

// System collects stats for both devices.
type System struct {
	registry *process.Registry
	runner   command.Runner
	modes    ModeSource
	settings config.Settings
	logger   *slog.Logger

	isDevice  func(string) bool
	getFormat func(string) (v4l2.Format, error)
	now       func() time.Time
}

// New returns a System. modes may be nil, in which case the configured
// normal mode is assumed.
func New(registry *process.Registry, runner command.Runner, modes ModeSource, settings config.Settings) *System {
	return &System{
		registry:  registry,
		runner:    runner,
		modes:     modes,
		settings:  settings,
		logger:    logging.GetLogger("monitor"),
		isDevice:  v4l2.IsCharDevice,
		getFormat: v4l2.GetFormat,
		now:       time.Now,
	}
}

// Video reads the current format of the loopback node.
func (s *System) Video() VideoStats {
	st := VideoStats{
		Device:       s.settings.VideoDevice,
		DeviceExists: s.isDevice(s.settings.VideoDevice),
		Streaming:    s.running(VideoProcess),
		Resolution:   "Unknown",
		PixelFormat:  "Unknown",
	}
	if !st.DeviceExists {
		return st
	}

	f, err := s.getFormat(s.settings.VideoDevice)
	if err != nil {
		s.logger.Debug("Could not read device format", "device", s.settings.VideoDevice, "error", err)
		return st
	}
	st.Width = int(f.Width)
	st.Height = int(f.Height)
	st.Resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
	st.PixelFormat = f.FourCC()
	st.FrameSize = int(f.SizeImage)

	mode := s.settings.Mode(false)
	if s.modes != nil {
		mode = s.modes.Mode()
	}
	if st.Streaming {
		st.FPS = float64(mode.FPS)
	}
	return st
}

// Audio parses the sink section of "pactl list sinks".
func (s *System) Audio(ctx context.Context) AudioStats {
	st := AudioStats{Sink: s.settings.SinkName, Layout: "Unknown", Format: "Unknown"}

	res, err := s.runner.Run(ctx, command.Cmd{
		Name:    "pactl",
		Args:    []string{"list", "sinks"},
		Timeout: 2 * time.Second,
	})
	if err != nil {
		s.logger.Debug("Could not list sinks", "error", err)
		return st
	}

	info, ok := parseSink(res.Stdout, s.settings.SinkName)
	if !ok {
		return st
	}
	st.SinkExists = true
	st.State = info.state
	st.SampleRate = info.rate
	st.Channels = info.channels
	st.Layout = channelLayout(info.channels)
	if info.format != "" {
		st.Format = info.format
	}
	st.Volume = info.volume
	st.Streaming = info.state == "RUNNING" || s.running(AudioProcess)
	return st
}

// All collects video, audio and stream stats.
func (s *System) All(ctx context.Context) Snapshot {
	snap := Snapshot{
		Video:     s.Video(),
		Audio:     s.Audio(ctx),
		Timestamp: s.now().UTC(),
	}
	snap.Stream.VideoUptime = s.uptime(VideoProcess).Seconds()
	snap.Stream.AudioUptime = s.uptime(AudioProcess).Seconds()
	if snap.Video.Streaming {
		snap.Stream.VideoBitrate = VideoBitrate(snap.Video.Width, snap.Video.Height, snap.Video.FrameSize, snap.Video.FPS)
	}
	if snap.Audio.Streaming {
		snap.Stream.AudioBitrate = AudioBitrate(snap.Audio.SampleRate, snap.Audio.Channels, snap.Audio.Format)
	}
	return snap
}

func (s *System) running(name string) bool {
	p, ok := s.registry.Lookup(name)
	return ok && p.Poll() == process.StateRunning
}

// uptime is zero unless the pipeline is running.
func (s *System) uptime(name string) time.Duration {
	p, ok := s.registry.Lookup(name)
	if !ok {
		return 0
	}
	st := p.Status()
	if st.State != process.StateRunning || st.StartedAt.IsZero() {
		return 0
	}
	return s.now().Sub(st.StartedAt)
}

// VideoBitrate estimates the uncompressed bitrate in Mbps. frameSize is the
// driver's bytes per frame; zero assumes two bytes per pixel (YUYV).
func VideoBitrate(width, height, frameSize int, fps float64) float64 {
	if width == 0 || height == 0 || fps == 0 {
		return 0
	}
	bytes := float64(frameSize)
	if bytes == 0 {
		bytes = float64(width * height * 2)
	}
	return round(bytes*8*fps/1e6, 2)
}

// AudioBitrate estimates the PCM bitrate in kbps.
func AudioBitrate(sampleRate, channels int, format string) float64 {
	if sampleRate == 0 {
		return 0
	}
	if channels == 0 {
		channels = 1
	}
	return round(float64(sampleRate*sampleBits(format)*channels)/1000, 1)
}

func sampleBits(format string) int {
	switch format {
	case "u8", "aLaw", "uLaw":
		return 8
	case "s24le", "s24be", "s24-32le", "s24-32be":
		return 24
	case "s32le", "s32be", "float32le", "float32be":
		return 32
	}
	return 16
}

func channelLayout(n int) string {
	switch n {
	case 0:
		return "Unknown"
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	}
	return fmt.Sprintf("%dch", n)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
