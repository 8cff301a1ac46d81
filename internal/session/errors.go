package session

import (
	"errors"
	"fmt"
)

// ValidationError rejects an intent locally: the guard failed and no
// transition occurred.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ExternalError wraps a collaborator failure. The session remains in its
// pre-call state and the user may retry.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// InvariantViolation reports a state the machine cannot continue from. The
// session has already been reset to PlanningToday when it is returned.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "session invariant violated: " + e.Reason
}

var (
	// ErrSkipLimitReached rejects a skip once two skips were spent this week.
	ErrSkipLimitReached = errors.New("skip limit reached for this week")
	// ErrInvalidTransition rejects an intent not valid in the current state.
	ErrInvalidTransition = errors.New("intent not valid in current state")
)
