package process

import (
	"strings"
	"time"
)

// State represents the current state of a managed process.
type State string

// Process states.
const (
	StateStopped  State = "stopped"  // No live process
	StateStarting State = "starting" // Spawned, inside the grace period
	StateRunning  State = "running"  // Confirmed alive
	StateStopping State = "stopping" // Termination in progress
	StateError    State = "error"    // Failed to start or exited unexpectedly
)

// AllStates lists every state in display order.
var AllStates = []State{StateStopped, StateStarting, StateRunning, StateStopping, StateError}

// IsTerminal reports whether no operation is in flight in this state.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateRunning || s == StateError
}

func (s State) String() string {
	return string(s)
}

// Status is a point-in-time view of one registry entry.
type Status struct {
	Name  string
	State State
	// PID of the most recent OS process, retained after it exits. Zero if never spawned.
	PID       int
	Command   []string
	StartedAt time.Time
	// Error is the last recorded failure message, empty when none.
	Error string
	// ExitCode is nil until an exit has been observed.
	ExitCode *int
	// KillUnconfirmed is set when SIGKILL was sent but the exit was never
	// observed. The OS process may still be alive.
	KillUnconfirmed bool
}

// CommandLine joins the command for display. Arguments are not quoted.
func (s Status) CommandLine() string {
	return strings.Join(s.Command, " ")
}
