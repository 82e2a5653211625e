package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a bounded wait elapses.
	ErrTimeout = errors.New("timed out")
	// ErrUnknownDriver is returned by Open for unregistered names.
	ErrUnknownDriver = errors.New("unknown browser driver")
)

// ActionError records which driver operation failed and on what.
type ActionError struct {
	Op     string
	Target string
	Err    error
}

func (e *ActionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Target, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// wrap attributes err to op/target. A deadline on the per-action context
// becomes ErrTimeout; cancellation of the caller's context is kept as is.
func wrap(parent context.Context, op, target string, err error) error {
	if err == nil {
		return nil
	}
	if perr := parent.Err(); perr != nil {
		return &ActionError{Op: op, Target: target, Err: perr}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &ActionError{Op: op, Target: target, Err: err}
}
