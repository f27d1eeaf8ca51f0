package devices

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/fakecam/internal/logging"
)

// Status is the combined device state shown by the API and CLI.
type Status struct {
	VideoDevice       string `json:"video_device" example:"/dev/video10"`
	VideoDeviceExists bool   `json:"video_device_exists"`
	VideoModuleLoaded bool   `json:"video_module_loaded"`
	VideoSetup        bool   `json:"video_setup"`
	VideoDriver       string `json:"video_driver,omitempty" example:"v4l2 loopback"`
	VideoCard         string `json:"video_card,omitempty" example:"FakeCam"`
	AudioSink         string `json:"audio_sink" example:"fakemic"`
	AudioMonitor      string `json:"audio_monitor" example:"fakemic.monitor"`
	AudioSinkLoaded   bool   `json:"audio_sink_loaded"`
	AudioSetup        bool   `json:"audio_setup"`
	AudioServer       string `json:"audio_server,omitempty" example:"pipewire-pulse.service"`
}

// Manager sets up and tears down both virtual devices.
type Manager struct {
	Video *VideoDevice
	Audio *AudioSink

	publisher Publisher
	logger    *slog.Logger
}

// NewManager returns a Manager. publisher may be nil.
func NewManager(video *VideoDevice, audio *AudioSink, publisher Publisher) *Manager {
	return &Manager{
		Video:     video,
		Audio:     audio,
		publisher: publisher,
		logger:    logging.GetLogger("devices"),
	}
}

// SetupAll sets up both devices concurrently. A failure of one does not
// prevent the other.
func (m *Manager) SetupAll(ctx context.Context) (videoOK, audioOK bool) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		videoOK = m.setup(ctx, KindVideo, m.Video.Path(), m.Video.Setup)
	}()
	go func() {
		defer wg.Done()
		audioOK = m.setup(ctx, KindAudio, m.Audio.Name(), m.Audio.Setup)
	}()
	wg.Wait()

	m.logger.Info("Device setup finished", "video", videoOK, "audio", audioOK)
	return videoOK, audioOK
}

func (m *Manager) setup(ctx context.Context, kind, path string, fn func(context.Context) error) bool {
	if err := fn(ctx); err != nil {
		m.logger.Error("Device setup failed", "device", kind, "error", err)
		publish(m.publisher, kind, path, ActionFailed, err.Error())
		return false
	}
	publish(m.publisher, kind, path, ActionReady, "")
	return true
}

// TeardownAll removes both devices and reports whether both succeeded.
func (m *Manager) TeardownAll(ctx context.Context) bool {
	ok := true
	if err := m.Video.Teardown(ctx); err != nil {
		m.logger.Error("Video teardown failed", "error", err)
		publish(m.publisher, KindVideo, m.Video.Path(), ActionFailed, err.Error())
		ok = false
	} else {
		publish(m.publisher, KindVideo, m.Video.Path(), ActionRemoved, "")
	}
	if err := m.Audio.Teardown(ctx); err != nil {
		m.logger.Error("Audio teardown failed", "error", err)
		publish(m.publisher, KindAudio, m.Audio.Name(), ActionFailed, err.Error())
		ok = false
	} else {
		publish(m.publisher, KindAudio, m.Audio.Name(), ActionRemoved, "")
	}
	return ok
}

// Status probes both devices.
func (m *Manager) Status(ctx context.Context) Status {
	s := Status{
		VideoDevice:       m.Video.Path(),
		VideoDeviceExists: m.Video.Available(),
		VideoModuleLoaded: m.Video.ModuleLoaded(),
		VideoSetup:        m.Video.IsSetup(),
		AudioSink:         m.Audio.Name(),
		AudioMonitor:      m.Audio.Monitor(),
		AudioSinkLoaded:   m.Audio.Loaded(ctx),
		AudioSetup:        m.Audio.IsSetup(),
		AudioServer:       m.Audio.AudioServer(ctx),
	}
	if s.VideoDeviceExists {
		if c, err := m.Video.Capability(); err == nil {
			s.VideoDriver = c.Driver
			s.VideoCard = c.Card
		}
	}
	return s
}
