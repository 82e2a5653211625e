// Package db provides database types and operations for flowverify run history.
package db

import (
	"errors"
	"slices"
)

// RunStatus represents the lifecycle state of a verification run.
type RunStatus string

const (
	// RunPending means the run was recorded but the browser has not started.
	RunPending RunStatus = "pending"
	// RunRunning means steps are executing.
	RunRunning RunStatus = "running"
	// RunPassed means every step succeeded.
	RunPassed RunStatus = "passed"
	// RunFailed means a step failed and the run aborted.
	RunFailed RunStatus = "failed"
	// RunCancelled means the run was interrupted.
	RunCancelled RunStatus = "cancelled"
)

// Valid returns true if the status is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunPassed, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status is a terminal state.
func (s RunStatus) IsTerminal() bool {
	return s == RunPassed || s == RunFailed || s == RunCancelled
}

// runTransitions lists the statuses reachable from each status. The empty
// status is a run that has not been recorded yet.
var runTransitions = map[RunStatus][]RunStatus{
	"":         {RunPending},
	RunPending: {RunRunning, RunCancelled},
	RunRunning: {RunPassed, RunFailed, RunCancelled},
}

// NextStatuses returns the statuses a run in s may move to. Terminal
// statuses have none.
func (s RunStatus) NextStatuses() []RunStatus {
	return slices.Clone(runTransitions[s])
}

// CanTransitionTo reports whether a run in s may move to to.
func (s RunStatus) CanTransitionTo(to RunStatus) bool {
	return slices.Contains(runTransitions[s], to)
}

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Valid returns true if the step status is known.
func (s StepStatus) Valid() bool {
	return s == StepPassed || s == StepFailed || s == StepSkipped
}

// FailureKind classifies why a run failed.
type FailureKind string

const (
	// FailureAssertion means an expected indicator did not appear in time.
	FailureAssertion FailureKind = "assertion"
	// FailureAction means a navigation, fill or click could not be performed.
	FailureAction FailureKind = "action"
	// FailureSetup means the run never reached its first step.
	FailureSetup FailureKind = "setup"
)

var (
	// ErrRunNotFound is returned when a run is not found.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRunID is returned when an id prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")
	// ErrInvalidTransition is returned when a state transition is invalid.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrEmailInUse is returned when a run reuses a recorded student email.
	ErrEmailInUse = errors.New("student email already recorded")
)
