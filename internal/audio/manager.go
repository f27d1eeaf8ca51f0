// Package audio plays library clips into the virtual microphone sink and
// generates the clips on first use.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/ffmpeg"
	"github.com/smazurov/fakecam/internal/library"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/smazurov/fakecam/internal/process"
	"github.com/smazurov/fakecam/internal/tts"
)

// ProcessName is the registry key of the audio pipeline.
const ProcessName = "audio"

var (
	ErrUnknownSource    = errors.New("unknown audio source")
	ErrAlreadyRunning   = errors.New("audio is already running")
	ErrGenerationFailed = errors.New("audio generation failed")
	ErrStartFailed      = errors.New("audio pipeline failed to start")
	ErrNoSource         = errors.New("no audio source selected")
)

// Publisher receives generation events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

// Status describes the audio pipeline.
type Status struct {
	Running bool           `json:"running"`
	Source  string         `json:"source,omitempty"`
	Silence bool           `json:"silence_mode"`
	Sink    string         `json:"sink"`
	Process process.Status `json:"-"`
}

// Manager owns the "audio" registry entry. Silence is a mode without a
// process: the sink simply receives nothing.
type Manager struct {
	registry  *process.Registry
	runner    command.Runner
	tts       *tts.Manager
	publisher Publisher
	settings  config.Settings
	logger    *slog.Logger

	opMu sync.Mutex // serializes Start, Stop and Restart

	mu       sync.Mutex
	source   string
	silence  bool
	progress string

	genMu sync.Mutex // one generation at a time
}

// NewManager creates an audio manager. publisher may be nil.
func NewManager(registry *process.Registry, runner command.Runner, ttsManager *tts.Manager, publisher Publisher, settings config.Settings) *Manager {
	return &Manager{
		registry:  registry,
		runner:    runner,
		tts:       ttsManager,
		publisher: publisher,
		settings:  settings,
		logger:    logging.GetLogger("audio"),
	}
}

// SetProgressSocket makes later pipelines report progress to path. An
// empty path disables it.
func (m *Manager) SetProgressSocket(path string) {
	m.mu.Lock()
	m.progress = path
	m.mu.Unlock()
}

// Running reports whether audio is playing or silence mode is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	silence := m.silence
	m.mu.Unlock()
	return silence || m.registry.Get(ProcessName).Poll() == process.StateRunning
}

// Start plays source into the sink, generating the clip first when it is
// not cached.
func (m *Manager) Start(ctx context.Context, source string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.start(ctx, source)
}

func (m *Manager) start(ctx context.Context, source string) error {
	if m.Running() {
		return ErrAlreadyRunning
	}

	a, ok := library.FindAudio(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	m.logger.Info("Starting audio", "source", a.Name)

	if a.Kind == library.AudioSilence {
		m.mu.Lock()
		m.silence = true
		m.source = a.Name
		m.mu.Unlock()
		m.logger.Info("Silence mode activated")
		return nil
	}

	if err := m.generate(ctx, a); err != nil {
		return err
	}

	m.mu.Lock()
	progress := m.progress
	m.mu.Unlock()
	args := ffmpeg.AudioStreamArgs(ffmpeg.AudioParams{
		Binary:   m.settings.FFmpegPath,
		Sink:     m.settings.SinkName,
		Volume:   m.settings.Volume,
		Progress: progress,
	}, a.Path(m.settings.AudioDir))

	if !m.registry.Start(ProcessName, args, m.settings.StartGrace) {
		p := m.registry.Get(ProcessName)
		if p.Poll() == process.StateRunning {
			return ErrAlreadyRunning
		}
		err := p.LastError()
		m.logger.Error("Failed to start audio", "source", a.Name, "error", err)
		if err == nil {
			return ErrStartFailed
		}
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	m.setSource(a.Name)
	m.logger.Info("Audio started", "source", a.Name)
	return nil
}

// Stop ends playback or silence mode. It returns false only when the kill
// could not be confirmed.
func (m *Manager) Stop() bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.stop()
}

func (m *Manager) stop() bool {
	m.mu.Lock()
	if m.silence {
		m.silence = false
		m.source = ""
		m.mu.Unlock()
		m.logger.Info("Silence mode deactivated")
		return true
	}
	m.mu.Unlock()

	if m.registry.Get(ProcessName).Poll() != process.StateRunning {
		m.setSource("")
		return true
	}

	m.logger.Info("Stopping audio")
	ok := m.registry.Stop(ProcessName, m.settings.StopTimeout)
	if ok {
		m.setSource("")
		m.logger.Info("Audio stopped")
	}
	return ok
}

// Restart stops and starts again. An empty source reuses the current one.
func (m *Manager) Restart(ctx context.Context, source string) error {
	if source == "" {
		source = m.Source()
	}
	if source == "" {
		return ErrNoSource
	}
	m.logger.Info("Restarting audio", "source", source)
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stop()
	return m.start(ctx, source)
}

// Generate makes sure the clip for source exists in the cache directory.
func (m *Manager) Generate(ctx context.Context, source string) error {
	a, ok := library.FindAudio(source)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return m.generate(ctx, a)
}

func (m *Manager) generate(ctx context.Context, a library.Audio) error {
	if a.Kind == library.AudioSilence {
		return nil
	}

	m.genMu.Lock()
	defer m.genMu.Unlock()

	out := a.Path(m.settings.AudioDir)
	if _, err := os.Stat(out); err == nil {
		m.logger.Debug("Audio already generated", "path", out)
		return nil
	}
	if err := os.MkdirAll(m.settings.AudioDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	m.logger.Info("Generating audio", "source", a.Name, "path", out)
	var engine string
	var err error
	switch a.Kind {
	case library.AudioTone:
		err = m.generateTone(ctx, out)
	case library.AudioVoice:
		engine, err = m.tts.Generate(ctx, a.Text, out, tts.Voice{Flite: a.FliteVoice, ESpeak: a.ESpeakVoice})
	default:
		err = fmt.Errorf("unsupported kind %q", a.Kind)
	}

	ev := events.MediaGeneratedEvent{Source: a.Name, Path: out, Engine: engine, Timestamp: events.Timestamp()}
	if err != nil {
		_ = os.Remove(out)
		ev.Error = err.Error()
		m.publish(ev)
		m.logger.Error("Audio generation failed", "source", a.Name, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrGenerationFailed, a.Name, err)
	}
	m.publish(ev)
	m.logger.Info("Audio generated", "source", a.Name, "engine", engine)
	return nil
}

func (m *Manager) generateTone(ctx context.Context, out string) error {
	args := ffmpeg.ToneArgs(m.settings.FFmpegPath, ffmpeg.ToneParams{
		Frequency: m.settings.ToneFrequency,
		Duration:  m.settings.ToneDuration,
		Amplitude: m.settings.ToneAmplitude,
	}, out)
	if _, err := m.runner.Run(ctx, command.Cmd{Name: args[0], Args: args[1:], Timeout: m.settings.CommandTimeout}); err != nil {
		return err
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("tone not written: %w", err)
	}
	return nil
}

// ClearCache removes every generated clip and returns how many were deleted.
// Files that cannot be removed are logged and skipped.
func (m *Manager) ClearCache() (int, error) {
	m.genMu.Lock()
	defer m.genMu.Unlock()

	files, err := filepath.Glob(filepath.Join(m.settings.AudioDir, "*.wav"))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			m.logger.Warn("Failed to delete cached audio", "path", f, "error", err)
			continue
		}
		count++
	}
	m.logger.Info("Audio cache cleared", "deleted", count)
	return count, nil
}

// Engines lists the installed TTS engines in priority order.
func (m *Manager) Engines() []string {
	return m.tts.AvailableEngines()
}

// Source returns the active source, or "".
func (m *Manager) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Status returns the pipeline status.
func (m *Manager) Status() Status {
	ps := m.registry.Get(ProcessName).Status()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running: m.silence || ps.State == process.StateRunning,
		Source:  m.source,
		Silence: m.silence,
		Sink:    m.settings.SinkName,
		Process: ps,
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
