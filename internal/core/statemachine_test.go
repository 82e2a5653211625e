package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/flowverify/internal/db"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from db.RunStatus
		to   db.RunStatus
		want bool
	}{
		{"new->pending", "", db.RunPending, true},
		{"new->running (invalid)", "", db.RunRunning, false},

		{"pending->running", db.RunPending, db.RunRunning, true},
		{"pending->cancelled", db.RunPending, db.RunCancelled, true},
		{"pending->passed (invalid)", db.RunPending, db.RunPassed, false},
		{"pending->failed (invalid)", db.RunPending, db.RunFailed, false},

		{"running->passed", db.RunRunning, db.RunPassed, true},
		{"running->failed", db.RunRunning, db.RunFailed, true},
		{"running->cancelled", db.RunRunning, db.RunCancelled, true},
		{"running->pending (invalid)", db.RunRunning, db.RunPending, false},

		{"passed->running (invalid)", db.RunPassed, db.RunRunning, false},
		{"failed->passed (invalid)", db.RunFailed, db.RunPassed, false},
		{"cancelled->running (invalid)", db.RunCancelled, db.RunRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidateTransitionErrors(t *testing.T) {
	err := ValidateTransition(db.RunPassed, db.RunRunning)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %T", err)
	}
	if te.Message != "passed is a terminal state" {
		t.Fatalf("message = %q", te.Message)
	}
	if !errors.Is(err, db.ErrInvalidTransition) {
		t.Fatalf("TransitionError should match db.ErrInvalidTransition")
	}

	err = ValidateTransition("", db.RunFailed)
	if err == nil || err.Error() != "invalid transition from (new) to failed: transition not allowed (allowed: pending)" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetValidTransitions(t *testing.T) {
	if got := GetValidTransitions(""); len(got) != 1 || got[0] != db.RunPending {
		t.Fatalf("from new = %v", got)
	}
	if got := GetValidTransitions(db.RunRunning); len(got) != 3 {
		t.Fatalf("from running = %v", got)
	}
	if got := GetValidTransitions(db.RunCancelled); len(got) != 0 {
		t.Fatalf("from terminal = %v", got)
	}
}

func TestValidateTransitionListsAllowed(t *testing.T) {
	err := ValidateTransition(db.RunPending, db.RunPassed)
	if err == nil || !strings.Contains(err.Error(), "allowed: running, cancelled") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[db.RunStatus]int{db.RunPassed: 0, db.RunFailed: 1, db.RunCancelled: 130, db.RunRunning: 2}
	for status, want := range cases {
		if got := Outcome(status); got != want {
			t.Errorf("Outcome(%s) = %d, want %d", status, got, want)
		}
	}
}
