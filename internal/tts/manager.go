package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/smazurov/fakecam/internal/command"
	"github.com/smazurov/fakecam/internal/ffmpeg"
	"github.com/smazurov/fakecam/internal/logging"
)

// Manager picks the highest-priority installed engine. Availability is
// probed once and cached until Refresh.
type Manager struct {
	runner  command.Runner
	engines []Engine // priority order
	ffmpeg  string
	logger  *slog.Logger

	mu        sync.Mutex
	probed    bool
	available []Engine
}

// NewManager builds engines for the names in priority, skipping unknown names.
func NewManager(r command.Runner, priority []string, p Params, ffmpegBin string) *Manager {
	m := &Manager{
		runner: r,
		ffmpeg: ffmpegBin,
		logger: logging.GetLogger("tts"),
	}
	for _, name := range priority {
		e, err := New(name, r, p)
		if err != nil {
			m.logger.Warn("Ignoring tts engine", "error", err)
			continue
		}
		m.engines = append(m.engines, e)
	}
	return m
}

// Refresh drops the cached availability probe.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probed = false
	m.available = nil
}

func (m *Manager) probe() []Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.probed {
		for _, e := range m.engines {
			if e.Available() {
				m.available = append(m.available, e)
			}
		}
		m.probed = true
		m.logger.Info("TTS engines detected", "available", names(m.available))
	}
	return m.available
}

// AvailableEngines returns installed engine names in priority order.
func (m *Manager) AvailableEngines() []string {
	return names(m.probe())
}

// Best returns the highest-priority installed engine.
func (m *Manager) Best() (Engine, bool) {
	available := m.probe()
	if len(available) == 0 {
		return nil, false
	}
	return available[0], true
}

// Synthesize renders text to out with the best engine and returns its name.
func (m *Manager) Synthesize(ctx context.Context, text, out string, voice Voice) (string, error) {
	e, ok := m.Best()
	if !ok {
		return "", ErrNoEngine
	}
	m.logger.Info("Synthesizing speech", "engine", e.Name(), "text", preview(text))
	if err := e.Synthesize(ctx, text, out, voice); err != nil {
		return e.Name(), fmt.Errorf("synthesize with %s: %w", e.Name(), err)
	}
	return e.Name(), nil
}

// Enhance runs the speech post-processing filter from in to out. When ffmpeg
// fails the raw file is copied to out so the clip stays usable; the ffmpeg
// error is still returned.
func (m *Manager) Enhance(ctx context.Context, in, out string) error {
	args := ffmpeg.EnhanceArgs(m.ffmpeg, in, out)
	_, err := m.runner.Run(ctx, command.Cmd{Name: args[0], Args: args[1:], Timeout: synthTime})
	if err == nil {
		return nil
	}

	m.logger.Warn("Audio enhancement failed, using raw speech", "error", err)
	if cpErr := copyFile(in, out); cpErr != nil {
		return fmt.Errorf("enhance: %w (copy raw: %v)", err, cpErr)
	}
	return fmt.Errorf("enhance: %w", err)
}

// Generate synthesizes text and enhances it into out. The raw intermediate
// file is removed afterwards.
func (m *Manager) Generate(ctx context.Context, text, out string, voice Voice) (string, error) {
	raw := fmt.Sprintf("%s.raw-%d.wav", out, time.Now().UnixNano())
	defer os.Remove(raw)

	engine, err := m.Synthesize(ctx, text, raw, voice)
	if err != nil {
		return engine, err
	}
	if err := m.Enhance(ctx, raw, out); err != nil {
		if _, statErr := os.Stat(out); statErr != nil {
			return engine, err
		}
	}
	return engine, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func names(engines []Engine) []string {
	out := make([]string, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Name())
	}
	return out
}

func preview(text string) string {
	const limit = 50
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
