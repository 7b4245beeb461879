package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTurn is returned by Run for turns that cannot start.
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrTaskTimeout is wrapped in a TaskError when a participant does not
	// finish within Options.TaskTimeout.
	ErrTaskTimeout = errors.New("participant task timed out")

	// ErrTurnCancelled reports external cancellation of a turn. It wraps the
	// context error.
	ErrTurnCancelled = errors.New("turn cancelled")
)

// TaskError is the failure of a single participant's generation. It never
// aborts sibling tasks.
type TaskError struct {
	Participant string // Participant token
	Err         error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("participant %s: %v", e.Participant, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error { return e.Err }

// Cause returns the message reported to consumers in model_error events.
func (e *TaskError) Cause() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

type cancelledError struct{ cause error }

func (e *cancelledError) Error() string { return fmt.Sprintf("%s: %v", ErrTurnCancelled, e.cause) }

func (e *cancelledError) Unwrap() []error { return []error{ErrTurnCancelled, e.cause} }

func turnCancelled(cause error) error {
	return &cancelledError{cause: cause}
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrTurnCancelled)
}
