// Package command runs short-lived helper programs (modprobe, pactl,
// v4l2-ctl, TTS engines) with a timeout. Long-running pipelines are
// supervised by package process instead.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/smazurov/fakecam/internal/logging"
)

var (
	// ErrExitStatus is wrapped when the program exits non-zero.
	ErrExitStatus = errors.New("non-zero exit status")
	// ErrTimeout is wrapped when the program outlives its timeout.
	ErrTimeout = errors.New("command timed out")
)

// DefaultTimeout applies when Cmd.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Cmd is one invocation. Args are passed verbatim, never through a shell.
type Cmd struct {
	Name    string
	Args    []string
	Stdin   string
	Timeout time.Duration
}

// String renders the command for logs.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result holds captured output. ExitCode is -1 when the program never ran.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands and resolves executables.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
	LookPath(file string) (string, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct {
	// Sudo prefixes Privileged commands with "sudo -n".
	Sudo bool
}

// Run executes cmd and waits for it.
func (e Exec) Run(ctx context.Context, cmd Cmd) (Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	c.WaitDelay = time.Second

	logging.GetLogger("command").Debug("Running command", "cmd", cmd.String())

	err := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return res, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%s: %w after %v", cmd.Name, ErrTimeout, timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, fmt.Errorf("%s: %w %d: %s", cmd.Name, ErrExitStatus, res.ExitCode, firstLine(res.Stderr))
	}
	return res, fmt.Errorf("%s: %w", cmd.Name, err)
}

// LookPath resolves file in PATH.
func (e Exec) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Privileged returns cmd wrapped in "sudo -n" when the runner is configured
// for it. Callers pass the result to Run.
func Privileged(r Runner, cmd Cmd) Cmd {
	if e, ok := r.(Exec); ok && e.Sudo {
		return Cmd{
			Name:    "sudo",
			Args:    append([]string{"-n", cmd.Name}, cmd.Args...),
			Stdin:   cmd.Stdin,
			Timeout: cmd.Timeout,
		}
	}
	return cmd
}

// Available reports whether file resolves in PATH.
func Available(r Runner, file string) bool {
	_, err := r.LookPath(file)
	return err == nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
