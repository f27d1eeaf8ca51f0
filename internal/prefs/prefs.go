// Package prefs persists the user's source selections and VM mode between
// runs and applies external edits of the file while fakecam is running.
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/fakecam/internal/config"
	"github.com/smazurov/fakecam/internal/events"
	"github.com/smazurov/fakecam/internal/library"
	"github.com/smazurov/fakecam/internal/logging"
)

// ErrUnknownSelection is returned when a selection names no library entry.
var ErrUnknownSelection = errors.New("unknown selection")

// Preferences is the content of prefs.toml.
type Preferences struct {
	VideoSelection string `toml:"video_selection" json:"video_selection"`
	AudioSelection string `toml:"audio_selection" json:"audio_selection"`
	VMMode         bool   `toml:"vm_mode" json:"vm_mode"`
}

// Defaults returns the preferences used when the file is missing. vm is
// the result of VM detection.
func Defaults(vm bool) Preferences {
	return Preferences{
		VideoSelection: library.DefaultVideo,
		AudioSelection: library.DefaultAudio,
		VMMode:         vm,
	}
}

// Publisher receives PreferencesChangedEvent. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

// Read loads path over defaults. Keys missing from the file keep their
// default, and selections that name no library entry are replaced by the
// default with a warning. A missing file is not an error.
func Read(path string, defaults Preferences) (Preferences, error) {
	p := defaults
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return defaults, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return defaults, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return validate(p, defaults), nil
}

func validate(p, defaults Preferences) Preferences {
	logger := logging.GetLogger("prefs")
	if v, ok := library.FindVideo(p.VideoSelection); ok {
		p.VideoSelection = v.Name
	} else {
		logger.Warn("Unknown video selection, using default", "selection", p.VideoSelection, "default", defaults.VideoSelection)
		p.VideoSelection = defaults.VideoSelection
	}
	if a, ok := library.FindAudio(p.AudioSelection); ok {
		p.AudioSelection = a.Name
	} else {
		logger.Warn("Unknown audio selection, using default", "selection", p.AudioSelection, "default", defaults.AudioSelection)
		p.AudioSelection = defaults.AudioSelection
	}
	return p
}

// Store holds the current preferences in memory and persists them.
type Store struct {
	path      string
	defaults  Preferences
	publisher Publisher
	logger    *slog.Logger

	mu      sync.RWMutex
	prefs   Preferences
	watcher *config.Watcher[Preferences]
}

// NewStore returns a Store for path holding defaults until Load is called.
// publisher may be nil.
func NewStore(path string, defaults Preferences, publisher Publisher) *Store {
	return &Store{
		path:      path,
		defaults:  defaults,
		publisher: publisher,
		logger:    logging.GetLogger("prefs"),
		prefs:     defaults,
	}
}

// Path returns the preferences file.
func (s *Store) Path() string { return s.path }

// Load reads the file. On error the defaults are kept and the error is
// returned.
func (s *Store) Load() error {
	p, err := Read(s.path, s.defaults)
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Failed to load preferences, using defaults", "path", s.path, "error", err)
		return err
	}
	s.logger.Info("Preferences loaded", "path", s.path, "video", p.VideoSelection, "audio", p.AudioSelection, "vm_mode", p.VMMode)
	return nil
}

// Save writes the preferences atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	p := s.prefs
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	s.logger.Debug("Preferences saved", "path", s.path)
	return nil
}

// Get returns a copy of the current preferences.
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// VideoSelection returns the selected video source.
func (s *Store) VideoSelection() string { return s.Get().VideoSelection }

// AudioSelection returns the selected audio source.
func (s *Store) AudioSelection() string { return s.Get().AudioSelection }

// VMMode reports whether reduced output settings are selected.
func (s *Store) VMMode() bool { return s.Get().VMMode }

// SetVideoSelection selects a library video by name and saves.
func (s *Store) SetVideoSelection(name string) error {
	v, ok := library.FindVideo(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSelection, name)
	}
	return s.update(func(p *Preferences) { p.VideoSelection = v.Name })
}

// SetAudioSelection selects a library audio source by name and saves.
func (s *Store) SetAudioSelection(name string) error {
	a, ok := library.FindAudio(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSelection, name)
	}
	return s.update(func(p *Preferences) { p.AudioSelection = a.Name })
}

// SetVMMode stores the VM mode and saves.
func (s *Store) SetVMMode(enabled bool) error {
	return s.update(func(p *Preferences) { p.VMMode = enabled })
}

// Reset restores the defaults and saves.
func (s *Store) Reset() error {
	return s.update(func(p *Preferences) { *p = s.defaults })
}

func (s *Store) update(fn func(*Preferences)) error {
	s.mu.Lock()
	fn(&s.prefs)
	p := s.prefs
	s.mu.Unlock()

	s.publish(p)
	return s.Save()
}

// Watch reloads the file when it changes on disk and calls onChange with
// the new preferences. Reloads that change nothing, such as our own saves,
// are ignored.
func (s *Store) Watch(onChange func(Preferences)) error {
	reload := func(p Preferences) {
		s.mu.Lock()
		changed := p != s.prefs
		s.prefs = p
		s.mu.Unlock()
		if !changed {
			return
		}
		s.logger.Info("Preferences changed on disk", "video", p.VideoSelection, "audio", p.AudioSelection, "vm_mode", p.VMMode)
		s.publish(p)
		if onChange != nil {
			onChange(p)
		}
	}
	w := config.NewWatcher(s.path,
		func(path string) (Preferences, error) { return Read(path, s.defaults) },
		reload,
		s.logger,
	)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to watch preferences: %w", err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	return nil
}

// Close stops watching.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}

func (s *Store) publish(p Preferences) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.PreferencesChangedEvent{
		VideoSelection: p.VideoSelection,
		AudioSelection: p.AudioSelection,
		VMMode:         p.VMMode,
	})
}
