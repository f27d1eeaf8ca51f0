// Package tts turns library text into speech with whichever command-line
// engine the host has installed.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/smazurov/fakecam/internal/command"
)

var (
	// ErrUnknownEngine is returned by New for names outside the supported set.
	ErrUnknownEngine = errors.New("unknown tts engine")
	// ErrNoEngine is returned when no engine is installed.
	ErrNoEngine = errors.New("no tts engine available")
	// ErrNoOutput is returned when an engine exits cleanly without writing audio.
	ErrNoOutput = errors.New("tts engine produced no output")
)

// Engine names.
const (
	Flite    = "flite"
	Pico     = "pico2wave"
	ESpeakNG = "espeak-ng"
	Festival = "festival"
	ESpeak   = "espeak"
)

const synthTime = 30 * time.Second

// Voice carries per-family voice hints for one clip. Empty fields fall back
// to the engine default.
type Voice struct {
	Flite  string
	ESpeak string
}

// Params tunes the espeak family.
type Params struct {
	Speed     int
	Pitch     int
	Amplitude int
}

// DefaultParams matches a natural speaking rate.
var DefaultParams = Params{Speed: 160, Pitch: 50, Amplitude: 200}

// Engine synthesizes text into a WAV file.
type Engine interface {
	Name() string
	Available() bool
	Synthesize(ctx context.Context, text, out string, voice Voice) error
}

// New returns the engine called name.
func New(name string, r command.Runner, p Params) (Engine, error) {
	switch name {
	case Flite:
		return &flite{r: r}, nil
	case Pico:
		return &pico{r: r}, nil
	case ESpeakNG:
		return &espeak{r: r, bin: "espeak-ng", defaultVoice: "en+m3", p: p}, nil
	case ESpeak:
		return &espeak{r: r, bin: "espeak", defaultVoice: "en+f3", p: p}, nil
	case Festival:
		return &festival{r: r}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
}

type flite struct{ r command.Runner }

func (e *flite) Name() string    { return Flite }
func (e *flite) Available() bool { return command.Available(e.r, "flite") }

func (e *flite) Synthesize(ctx context.Context, text, out string, v Voice) error {
	voice := v.Flite
	if voice == "" {
		voice = "slt"
	}
	return run(ctx, e.r, out, command.Cmd{
		Name:    "flite",
		Args:    []string{"-voice", voice, "-t", text, "-o", out},
		Timeout: synthTime,
	})
}

type pico struct{ r command.Runner }

func (e *pico) Name() string    { return Pico }
func (e *pico) Available() bool { return command.Available(e.r, "pico2wave") }

func (e *pico) Synthesize(ctx context.Context, text, out string, _ Voice) error {
	return run(ctx, e.r, out, command.Cmd{
		Name:    "pico2wave",
		Args:    []string{"-l", "en-US", "-w", out, text},
		Timeout: synthTime,
	})
}

// espeak covers both espeak-ng and classic espeak; their flags are identical.
type espeak struct {
	r            command.Runner
	bin          string
	defaultVoice string
	p            Params
}

func (e *espeak) Name() string    { return e.bin }
func (e *espeak) Available() bool { return command.Available(e.r, e.bin) }

func (e *espeak) Synthesize(ctx context.Context, text, out string, v Voice) error {
	voice := v.ESpeak
	if voice == "" {
		voice = e.defaultVoice
	}
	return run(ctx, e.r, out, command.Cmd{
		Name: e.bin,
		Args: []string{
			"-v", voice,
			"-s", strconv.Itoa(e.p.Speed),
			"-p", strconv.Itoa(e.p.Pitch),
			"-a", strconv.Itoa(e.p.Amplitude),
			"-w", out,
			text,
		},
		Timeout: synthTime,
	})
}

// festival reads the text on stdin so it never reaches a Scheme string.
type festival struct{ r command.Runner }

func (e *festival) Name() string    { return Festival }
func (e *festival) Available() bool { return command.Available(e.r, "text2wave") }

func (e *festival) Synthesize(ctx context.Context, text, out string, _ Voice) error {
	return run(ctx, e.r, out, command.Cmd{
		Name:    "text2wave",
		Args:    []string{"-eval", "(voice_cmu_us_slt_arctic_hts)", "-o", out},
		Stdin:   text,
		Timeout: synthTime,
	})
}

func run(ctx context.Context, r command.Runner, out string, cmd command.Cmd) error {
	if _, err := r.Run(ctx, cmd); err != nil {
		return err
	}
	if fi, err := os.Stat(out); err != nil || fi.Size() == 0 {
		return fmt.Errorf("%s: %w", cmd.Name, ErrNoOutput)
	}
	return nil
}
