// Package core implements the verification run lifecycle state machine.
package core

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/flowverify/internal/db"
)

// TransitionError represents an invalid state transition.
type TransitionError struct {
	From    db.RunStatus
	To      db.RunStatus
	Message string
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "(new)"
	}
	return fmt.Sprintf("invalid transition from %s to %s: %s", from, e.To, e.Message)
}

// Unwrap lets callers match db.ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return db.ErrInvalidTransition }

// CanTransition returns true if the transition from one state to another is valid.
func CanTransition(from, to db.RunStatus) bool {
	return from.CanTransitionTo(to)
}

// ValidateTransition validates a state transition and returns an error if invalid.
func ValidateTransition(from, to db.RunStatus) error {
	if from.IsTerminal() {
		return &TransitionError{
			From:    from,
			To:      to,
			Message: fmt.Sprintf("%s is a terminal state", from),
		}
	}

	if !CanTransition(from, to) {
		return &TransitionError{
			From:    from,
			To:      to,
			Message: "transition not allowed (allowed: " + joinStatuses(GetValidTransitions(from)) + ")",
		}
	}

	return nil
}

// GetValidTransitions returns all valid target states from the given state.
func GetValidTransitions(from db.RunStatus) []db.RunStatus {
	return from.NextStatuses()
}

func joinStatuses(statuses []db.RunStatus) string {
	if len(statuses) == 0 {
		return "none"
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Outcome maps a finished run's status to a process exit code:
// 0 passed, 1 failed, 130 cancelled (SIGINT convention), 2 otherwise.
func Outcome(status db.RunStatus) int {
	switch status {
	case db.RunPassed:
		return 0
	case db.RunFailed:
		return 1
	case db.RunCancelled:
		return 130
	default:
		return 2
	}
}
