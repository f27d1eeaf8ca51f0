package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"
	"syscall"
	"time"
)

// ManagedProcess supervises one named OS subprocess slot.
//
// Start and Stop are serialized per instance. Poll and Status only take a
// short state lock and never wait on an in-flight Start or Stop.
type ManagedProcess struct {
	name string
	opts Options

	opMu sync.Mutex // serializes Start and Stop

	mu              sync.Mutex // guards the fields below
	state           State
	run             *run
	pid             int
	command         []string
	startedAt       time.Time
	lastErr         error
	exitCode        *int
	killUnconfirmed bool
}

// run is one spawned OS process. err is written before done is closed.
type run struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (r *run) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// NewManagedProcess creates a process slot in the stopped state.
func NewManagedProcess(name string, opts Options) *ManagedProcess {
	return &ManagedProcess{
		name:  name,
		opts:  opts.withDefaults(),
		state: StateStopped,
	}
}

// Name returns the logical name.
func (p *ManagedProcess) Name() string {
	return p.name
}

// Start spawns args and waits up to grace to confirm the process stays up.
// Returns false if already running, if the spawn fails, or if the process
// exits inside the grace period. The cause of a failure is recorded and
// readable through LastError and Status.
func (p *ManagedProcess) Start(args []string, grace time.Duration) bool {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.Poll()

	p.mu.Lock()
	if p.state == StateRunning {
		pid := p.pid
		p.mu.Unlock()
		p.opts.Logger.Warn("Process already running", "name", p.name, "pid", pid)
		return false
	}
	if len(args) == 0 {
		p.mu.Unlock()
		p.fail(NewError(ErrCodeEmptyCommand, "empty command", nil), nil)
		return false
	}
	old := p.state
	p.state = StateStarting
	p.command = slices.Clone(args)
	p.lastErr = nil
	p.exitCode = nil
	p.killUnconfirmed = false
	p.mu.Unlock()
	p.notify(old, StateStarting, nil)

	r, err := p.spawn(args)
	if err != nil {
		p.opts.Logger.Error("Failed to start process", "name", p.name, "error", err, "command", args)
		p.fail(NewError(ErrCodeSpawnFailure, fmt.Sprintf("failed to start %s", args[0]), err), nil)
		return false
	}

	p.mu.Lock()
	p.run = r
	p.pid = r.cmd.Process.Pid
	p.startedAt = time.Now()
	p.mu.Unlock()

	p.opts.Logger.Info("Process started", "name", p.name, "pid", r.cmd.Process.Pid, "command", args)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-r.done:
		code := exitCodeFromError(r.err)
		p.opts.Logger.Error("Process exited during startup", "name", p.name, "exit_code", code)
		p.fail(NewError(ErrCodeStartupExit, fmt.Sprintf("exited with code %d during startup", code), r.err), &code)
		return false
	case <-timer.C:
	}

	p.mu.Lock()
	p.state = StateRunning
	p.mu.Unlock()
	p.notify(StateStarting, StateRunning, nil)
	return true
}

// Stop requests graceful termination with SIGTERM and waits up to timeout.
// After the timeout it sends SIGKILL and waits the configured kill timeout.
// The state is stopped afterwards in every case; Stop returns false only
// when the exit after SIGKILL could not be confirmed.
func (p *ManagedProcess) Stop(timeout time.Duration) bool {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return true
	}

	r := p.run
	if r == nil || r.exited() {
		old := p.state
		var err error
		if r != nil {
			code := exitCodeFromError(r.err)
			p.exitCode = &code
			if code != 0 && old == StateRunning {
				err = NewError(ErrCodeUnexpectedExit, fmt.Sprintf("exited with code %d", code), r.err)
				p.lastErr = err
			}
		}
		p.run = nil
		p.state = StateStopped
		p.mu.Unlock()
		if err != nil {
			p.opts.Logger.Error("Process had already exited", "name", p.name, "error", err)
		}
		p.notify(old, StateStopped, err)
		return true
	}

	old := p.state
	p.state = StateStopping
	pid := p.pid
	p.mu.Unlock()
	p.notify(old, StateStopping, nil)

	p.opts.Logger.Info("Stopping process", "name", p.name, "pid", pid)
	p.signal(pid, syscall.SIGTERM)

	if waitDone(r.done, timeout) {
		p.finishStop(r)
		return true
	}

	p.opts.Logger.Warn("Graceful stop timed out, forcing kill", "name", p.name, "pid", pid, "timeout", timeout)
	p.signal(pid, syscall.SIGKILL)

	if waitDone(r.done, p.opts.KillTimeout) {
		p.finishStop(r)
		return true
	}

	p.opts.Logger.Error("Process did not exit after kill signal", "name", p.name, "pid", pid)
	err := NewError(ErrCodeKillUnconfirmed, fmt.Sprintf("pid %d may still be running", pid), nil)

	p.mu.Lock()
	p.run = nil
	p.state = StateStopped
	p.lastErr = err
	p.killUnconfirmed = true
	p.mu.Unlock()
	p.notify(StateStopping, StateStopped, err)
	return false
}

// Poll returns the current state without blocking. A running process that
// has exited since the last check moves to stopped on exit code 0 and to
// error otherwise.
func (p *ManagedProcess) Poll() State {
	p.mu.Lock()
	if p.state != StateRunning || p.run == nil || !p.run.exited() {
		state := p.state
		p.mu.Unlock()
		return state
	}

	code := exitCodeFromError(p.run.err)
	p.exitCode = &code
	next := StateStopped
	var err error
	if code != 0 {
		next = StateError
		err = NewError(ErrCodeUnexpectedExit, fmt.Sprintf("exited with code %d", code), p.run.err)
		p.lastErr = err
	}
	p.run = nil
	p.state = next
	p.mu.Unlock()

	if err != nil {
		p.opts.Logger.Error("Process exited unexpectedly", "name", p.name, "exit_code", code)
	} else {
		p.opts.Logger.Info("Process exited", "name", p.name, "exit_code", code)
	}
	p.notify(StateRunning, next, err)
	return next
}

// State returns the recorded state without checking the OS process.
func (p *ManagedProcess) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PID returns the most recent process id, retained after exit.
func (p *ManagedProcess) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// LastError returns the last recorded failure, or nil.
func (p *ManagedProcess) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Command returns a copy of the last command started.
func (p *ManagedProcess) Command() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.command)
}

// Status polls and returns a snapshot of the process.
func (p *ManagedProcess) Status() Status {
	p.Poll()

	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		Name:            p.name,
		State:           p.state,
		PID:             p.pid,
		Command:         slices.Clone(p.command),
		StartedAt:       p.startedAt,
		KillUnconfirmed: p.killUnconfirmed,
	}
	if p.lastErr != nil {
		st.Error = p.lastErr.Error()
	}
	if p.exitCode != nil {
		code := *p.exitCode
		st.ExitCode = &code
	}
	return st
}

// fail records err and moves to the error state. Caller holds opMu.
func (p *ManagedProcess) fail(err error, exitCode *int) {
	p.mu.Lock()
	old := p.state
	p.run = nil
	p.state = StateError
	p.lastErr = err
	p.exitCode = exitCode
	p.mu.Unlock()
	p.notify(old, StateError, err)
}

func (p *ManagedProcess) finishStop(r *run) {
	code := exitCodeFromError(r.err)

	p.mu.Lock()
	p.run = nil
	p.state = StateStopped
	p.exitCode = &code
	pid := p.pid
	p.mu.Unlock()

	p.opts.Logger.Info("Process stopped", "name", p.name, "pid", pid, "exit_code", code)
	p.notify(StateStopping, StateStopped, nil)
}

func (p *ManagedProcess) notify(oldState, newState State, err error) {
	if p.opts.OnStateChange != nil && oldState != newState {
		p.opts.OnStateChange(p.name, oldState, newState, err)
	}
}

// spawn starts args in its own process group with stdout and stderr merged
// into one pipe that is streamed to the output logger.
func (p *ManagedProcess) spawn(args []string) (*run, error) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	go p.streamOutput(pr)

	r := &run{cmd: cmd, done: make(chan struct{})}
	go func() {
		r.err = cmd.Wait()
		close(r.done)
	}()
	return r, nil
}

// signal delivers sig to the whole process group so children spawned by the
// command go down with it. A group that is already gone is not an error.
func (p *ManagedProcess) signal(pid int, sig syscall.Signal) {
	err := syscall.Kill(-pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return
	}
	p.opts.Logger.Warn("Failed to signal process group", "name", p.name, "pid", pid, "signal", sig.String(), "error", err)
	if err := syscall.Kill(pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.opts.Logger.Error("Failed to signal process", "name", p.name, "pid", pid, "signal", sig.String(), "error", err)
	}
}

// streamOutput logs each output line through the configured parser.
func (p *ManagedProcess) streamOutput(reader io.ReadCloser) {
	defer reader.Close()

	logger := p.opts.OutputLogger
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		level, msg := "info", line
		if p.opts.LogParser != nil {
			level, msg = p.opts.LogParser(line)
		}

		switch level {
		case "fatal", "panic", "error":
			logger.Error(msg, "process", p.name)
		case "warning":
			logger.Warn(msg, "process", p.name)
		case "debug", "trace", "verbose":
			logger.Debug(msg, "process", p.name)
		default:
			logger.Info(msg, "process", p.name)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.opts.Logger.Warn("Error reading output", "name", p.name, "error", err)
	}
}

func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// exitCodeFromError extracts the exit code from a Wait error.
// A process killed by a signal reports 128 plus the signal number.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
