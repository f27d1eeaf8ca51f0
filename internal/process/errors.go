package process

import (
	"errors"
	"fmt"
)

// Error codes recorded as a process's last error.
const (
	ErrCodeEmptyCommand    = "EMPTY_COMMAND"
	ErrCodeSpawnFailure    = "SPAWN_FAILURE"
	ErrCodeStartupExit     = "STARTUP_EXIT"
	ErrCodeUnexpectedExit  = "UNEXPECTED_EXIT"
	ErrCodeKillUnconfirmed = "KILL_UNCONFIRMED"
)

// Sentinels for errors.Is against a recorded *Error.
var (
	ErrEmptyCommand    = &Error{Code: ErrCodeEmptyCommand}
	ErrSpawnFailure    = &Error{Code: ErrCodeSpawnFailure}
	ErrStartupExit     = &Error{Code: ErrCodeStartupExit}
	ErrUnexpectedExit  = &Error{Code: ErrCodeUnexpectedExit}
	ErrKillUnconfirmed = &Error{Code: ErrCodeKillUnconfirmed}
)

// Error describes why a process ended up in the error state, or why a stop
// could not be confirmed.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so sentinels compare equal to recorded errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new process error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
