// Package video drives the ffmpeg pipeline that feeds the virtual camera.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/download"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/ffmpeg"
	"github.com/smazurov/fakecam/internal/library"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/process"
)

// ProcessName is the registry key of the video pipeline.
const ProcessName = "video"

// FallbackSource is reported while the blue-screen pipeline runs.
const FallbackSource = "Fallback (Blue Screen)"

var (
	ErrUnknownSource  = errors.New("unknown video source")
	ErrAlreadyRunning = errors.New("video is already running")
	ErrStartFailed    = errors.New("video pipeline failed to start")
	ErrNoSource       = errors.New("no video source selected")
)

// Publisher receives progress events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

// Status describes the video pipeline.
type Status struct {
	Running bool             `json:"running"`
	Source  string           `json:"source,omitempty"`
	VMMode  bool             `json:"vm_mode"`
	Mode    config.VideoMode `json:"mode"`
	Device  string           `json:"device"`
	Process process.Status   `json:"-"`
}

// Manager owns the "video" registry entry.
type Manager struct {
	registry   *process.Registry
	downloader *download.Downloader
	publisher  Publisher
	settings   config.Settings
	logger     *slog.Logger

	opMu sync.Mutex // serializes Start, Stop and Restart

	mu       sync.Mutex
	vmMode   bool
	source   string
	progress string
}

// NewManager creates a video manager. publisher may be nil.
func NewManager(registry *process.Registry, downloader *download.Downloader, publisher Publisher, settings config.Settings, vmMode bool) *Manager {
	return &Manager{
		registry:   registry,
		downloader: downloader,
		publisher:  publisher,
		settings:   settings,
		vmMode:     vmMode,
		logger:     logging.GetLogger("video"),
	}
}

// SetProgressSocket makes later pipelines report progress to path. An
// empty path disables it.
func (m *Manager) SetProgressSocket(path string) {
	m.mu.Lock()
	m.progress = path
	m.mu.Unlock()
}

// Running reports whether the pipeline is alive.
func (m *Manager) Running() bool {
	return m.registry.Get(ProcessName).Poll() == process.StateRunning
}

// Start streams source to the device. File sources are downloaded first; a
// failed download or a pipeline that dies during the grace period falls
// back to a blue screen.
func (m *Manager) Start(ctx context.Context, source string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.start(ctx, source)
}

func (m *Manager) start(ctx context.Context, source string) error {
	if m.Running() {
		return ErrAlreadyRunning
	}

	v, ok := library.FindVideo(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	m.logger.Info("Starting video", "source", v.Name)

	params := m.params()
	var args []string
	switch v.Kind {
	case library.VideoGenerated:
		args = ffmpeg.TestPatternArgs(params)
	case library.VideoDownload:
		path := v.Path(m.settings.VideoDir)
		if err := m.ensureDownloaded(ctx, v); err != nil {
			m.logger.Warn("Download failed, using fallback", "source", v.Name, "error", err)
			args = ffmpeg.FallbackArgs(params)
		} else {
			args = ffmpeg.VideoFileArgs(params, path)
		}
	default:
		return fmt.Errorf("%w: %q has kind %q", ErrUnknownSource, v.Name, v.Kind)
	}

	if m.registry.Start(ProcessName, args, m.settings.StartGrace) {
		m.setSource(v.Name)
		m.logger.Info("Video started", "source", v.Name)
		return nil
	}

	p := m.registry.Get(ProcessName)
	if p.Poll() == process.StateRunning {
		// started through the registry by someone else
		return ErrAlreadyRunning
	}
	m.logger.Warn("Video failed, trying fallback", "error", p.LastError())
	if m.registry.Start(ProcessName, ffmpeg.FallbackArgs(params), m.settings.StartGrace) {
		m.setSource(FallbackSource)
		m.logger.Info("Fallback video started")
		return nil
	}
	if p.Poll() == process.StateRunning {
		return ErrAlreadyRunning
	}

	m.setSource("")
	return startFailed(p.LastError())
}

func startFailed(cause error) error {
	if cause == nil {
		return ErrStartFailed
	}
	return fmt.Errorf("%w: %w", ErrStartFailed, cause)
}

// Stop terminates the pipeline. It returns false only when the kill could
// not be confirmed.
func (m *Manager) Stop() bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.stop()
}

func (m *Manager) stop() bool {
	p := m.registry.Get(ProcessName)
	if p.Poll() != process.StateRunning {
		m.setSource("")
		return true
	}

	m.logger.Info("Stopping video")
	ok := m.registry.Stop(ProcessName, m.settings.StopTimeout)
	if ok {
		m.setSource("")
		m.logger.Info("Video stopped")
	}
	return ok
}

// Restart stops and starts again. An empty source reuses the current one.
func (m *Manager) Restart(ctx context.Context, source string) error {
	if source == "" {
		source = m.Source()
	}
	if source == "" || source == FallbackSource {
		return ErrNoSource
	}
	m.logger.Info("Restarting video", "source", source)
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stop()
	return m.start(ctx, source)
}

// SetVMMode switches output resolution. A running pipeline is restarted so
// the change applies immediately.
func (m *Manager) SetVMMode(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	changed := m.vmMode != enabled
	m.vmMode = enabled
	source := m.source
	m.mu.Unlock()

	m.logger.Info("VM mode changed", "enabled", enabled)
	if !changed || !m.Running() || source == "" || source == FallbackSource {
		return nil
	}
	return m.Restart(ctx, source)
}

// VMMode reports whether reduced output settings are active.
func (m *Manager) VMMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vmMode
}

// Mode returns the output resolution and frame rate in effect.
func (m *Manager) Mode() config.VideoMode {
	return m.settings.Mode(m.VMMode())
}

// Source returns the source currently streaming, or "".
func (m *Manager) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Download fetches a file source without starting playback. Generated and
// already downloaded sources return immediately.
func (m *Manager) Download(ctx context.Context, source string) error {
	v, ok := library.FindVideo(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if v.Kind != library.VideoDownload {
		m.logger.Info("Source does not need downloading", "source", v.Name)
		return nil
	}
	return m.ensureDownloaded(ctx, v)
}

// Status returns the pipeline status.
func (m *Manager) Status() Status {
	ps := m.registry.Get(ProcessName).Status()
	vm := m.VMMode()
	return Status{
		Running: ps.State == process.StateRunning,
		Source:  m.Source(),
		VMMode:  vm,
		Mode:    m.settings.Mode(vm),
		Device:  m.settings.VideoDevice,
		Process: ps,
	}
}

func (m *Manager) ensureDownloaded(ctx context.Context, v library.Video) error {
	path := v.Path(m.settings.VideoDir)
	if _, err := os.Stat(path); err == nil {
		m.logger.Debug("Video already downloaded", "path", path)
		return nil
	}

	m.logger.Info("Video file not found, downloading", "source", v.Name, "url", v.URL)
	lastPct := int64(-1)
	err := m.downloader.Download(ctx, v.URL, path, func(downloaded, total int64) {
		if total > 0 {
			pct := downloaded * 100 / total
			if pct == lastPct {
				return
			}
			lastPct = pct
		}
		m.publish(events.DownloadProgressEvent{Source: v.Name, Downloaded: downloaded, Total: total})
	})

	done := events.DownloadProgressEvent{Source: v.Name, Done: err == nil}
	if err != nil {
		done.Error = err.Error()
	}
	m.publish(done)
	return err
}

func (m *Manager) params() ffmpeg.VideoParams {
	m.mu.Lock()
	vm, progress := m.vmMode, m.progress
	m.mu.Unlock()
	mode := m.settings.Mode(vm)
	return ffmpeg.VideoParams{
		Binary:      m.settings.FFmpegPath,
		Device:      m.settings.VideoDevice,
		Width:       mode.Width,
		Height:      mode.Height,
		FPS:         mode.FPS,
		PixelFormat: m.settings.PixelFormat,
		LowLatency:  vm,
		Progress:    progress,
	}
}

func (m *Manager) setSource(source string) {
	m.mu.Lock()
	m.source = source
	m.mu.Unlock()
}

func (m *Manager) publish(ev events.Event) {
	if m.publisher != nil {
		m.publisher.Publish(ev)
	}
}
