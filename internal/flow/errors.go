package flow

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/flowverify/internal/db"
)

// ErrUnknownScenario is returned by Lookup for unregistered names.
var ErrUnknownScenario = errors.New("unknown scenario")

// setupStep names the pseudo-step used for failures before the first step.
const setupStep = "setup"

// StepError reports the action that aborted a run.
type StepError struct {
	Step   string
	Action string
	Kind   db.FailureKind
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failure in step %q (%s): %v", e.Kind, e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FailureKindOf returns the kind carried by a StepError in err's chain.
func FailureKindOf(err error) (db.FailureKind, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func kindFor(k ActionKind) db.FailureKind {
	if k == KindAssert {
		return db.FailureAssertion
	}
	return db.FailureAction
}
