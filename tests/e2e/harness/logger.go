package harness

import (
	"fmt"
	"testing"
	"time"
)

// StepLogger writes numbered test steps to the test log.
type StepLogger struct {
	t     *testing.T
	start time.Time
}

// NewStepLogger returns a logger bound to t.
func NewStepLogger(t *testing.T) *StepLogger {
	return &StepLogger{t: t, start: time.Now()}
}

// Step logs "STEP n: ...".
func (l *StepLogger) Step(n int, format string, args ...any) {
	l.t.Helper()
	l.t.Logf("STEP %d: %s", n, fmt.Sprintf(format, args...))
}

// Result logs an indented outcome line.
func (l *StepLogger) Result(format string, args ...any) {
	l.t.Helper()
	l.t.Logf("  ✓ %s", fmt.Sprintf(format, args...))
}

// Info logs a plain line.
func (l *StepLogger) Info(format string, args ...any) {
	l.t.Helper()
	l.t.Logf("ENV: %s", fmt.Sprintf(format, args...))
}

// DBState logs history and fixture counts.
func (l *StepLogger) DBState(runs, steps, pending int) {
	l.t.Helper()
	l.t.Logf("DB: runs=%d steps=%d pending_accounts=%d", runs, steps, pending)
}

// Elapsed logs the time since the logger was created.
func (l *StepLogger) Elapsed() {
	l.t.Helper()
	l.t.Logf("ELAPSED: %s", time.Since(l.start).Round(time.Millisecond))
}
