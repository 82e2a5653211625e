package db

import "time"

// Run is one execution of a scenario.
type Run struct {
	// ID is the unique run identifier (UUID).
	ID string `json:"id" yaml:"id"`
	// Scenario is the scenario name (e.g., "approval").
	Scenario string `json:"scenario" yaml:"scenario"`
	// Driver is the browser backend used.
	Driver string `json:"driver" yaml:"driver"`
	// BaseURL is the application under test.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// StudentEmail is the identity registered by the run. Unique across runs.
	StudentEmail string `json:"student_email" yaml:"student_email"`
	// Status is the current lifecycle state.
	Status RunStatus `json:"status" yaml:"status"`
	// FailedStep names the step that aborted the run.
	FailedStep string `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
	// FailureKind classifies the failure.
	FailureKind FailureKind `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
	// Error is the failure message.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// ScreenshotPath is the final (or failure) screenshot.
	ScreenshotPath string `json:"screenshot_path,omitempty" yaml:"screenshot_path,omitempty"`
	// LogPath is the per-run debug log.
	LogPath string `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	// StartedAt is when the run was created.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	// FinishedAt is set once the run reaches a terminal state.
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	// DurationMs is the wall time between start and finish.
	DurationMs int64 `json:"duration_ms" yaml:"duration_ms"`
}

// StepRecord is the persisted outcome of one step of a run.
type StepRecord struct {
	RunID      string     `json:"run_id" yaml:"run_id"`
	Index      int        `json:"index" yaml:"index"`
	Name       string     `json:"name" yaml:"name"`
	Status     StepStatus `json:"status" yaml:"status"`
	DurationMs int64      `json:"duration_ms" yaml:"duration_ms"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
