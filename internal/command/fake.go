package command

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Fake is a scripted Runner for tests. Handlers are keyed by program name;
// programs without a handler succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	handlers  map[string]func(Cmd) (Result, error)
	available map[string]bool
	calls     []Cmd
}

// NewFake returns a Fake where every name in available resolves in PATH.
func NewFake(available ...string) *Fake {
	f := &Fake{
		handlers:  make(map[string]func(Cmd) (Result, error)),
		available: make(map[string]bool),
	}
	for _, name := range available {
		f.available[name] = true
	}
	return f
}

// Handle scripts the response for program name.
func (f *Fake) Handle(name string, h func(Cmd) (Result, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
}

// Output scripts a fixed stdout for program name.
func (f *Fake) Output(name, stdout string) {
	f.Handle(name, func(Cmd) (Result, error) {
		return Result{Stdout: stdout}, nil
	})
}

// Fail scripts a non-zero exit for program name.
func (f *Fake) Fail(name string, code int, stderr string) {
	f.Handle(name, func(Cmd) (Result, error) {
		return Result{Stderr: stderr, ExitCode: code},
			fmt.Errorf("%s: %w %d: %s", name, ErrExitStatus, code, stderr)
	})
}

// SetAvailable changes whether name resolves in PATH.
func (f *Fake) SetAvailable(name string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available[name] = ok
}

// Run records cmd and dispatches to its handler.
func (f *Fake) Run(ctx context.Context, cmd Cmd) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h := f.handlers[cmd.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if h == nil {
		return Result{}, nil
	}
	return h(cmd)
}

// LookPath succeeds for names marked available.
func (f *Fake) LookPath(file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.available[file] {
		return "/usr/bin/" + file, nil
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

// Calls returns every recorded invocation.
func (f *Fake) Calls() []Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Cmd(nil), f.calls...)
}

// CallLines returns the recorded invocations rendered with Cmd.String.
func (f *Fake) CallLines() []string {
	var lines []string
	for _, c := range f.Calls() {
		lines = append(lines, c.String())
	}
	return lines
}

// Called reports whether any recorded invocation starts with prefix.
func (f *Fake) Called(prefix string) bool {
	for _, line := range f.CallLines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
