// Package instance keeps a single fakecam daemon per user.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("fakecam already running")

// Lock is an exclusive advisory lock on a file.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes the lock at path without blocking and records the current
// PID in it. A second caller gets ErrAlreadyRunning.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		if pid := HolderPID(path); pid > 0 {
			return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyRunning, pid, path)
		}
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}

	// flock.New opened the file without truncating it; a stale PID from a
	// previous run may be longer than ours.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing pid: %w", err)
	}

	return &Lock{fl: fl, path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || !l.fl.Locked() {
		return nil
	}
	_ = os.Remove(l.path)
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// HolderPID returns the PID recorded in the lock file, or 0.
func HolderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
