// Package flow runs acceptance scenarios against a browser driver.
//
// A scenario is an ordered list of steps; each step is an ordered list of
// actions. The first failing action aborts the run and the remaining steps
// are reported as skipped.
package flow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/Dicklesworthstone/flowverify/internal/core"
	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// captureTimeout bounds failure artifact capture.
const captureTimeout = 10 * time.Second

// OpenFunc launches the browser for a run.
type OpenFunc func(ctx context.Context) (browser.Driver, error)

// Meta describes a run for results and history.
type Meta struct {
	// RunID is generated when empty.
	RunID        string
	Driver       string
	BaseURL      string
	StudentEmail string
	LogPath      string
	// SetupErr fails the run before the browser is launched, for
	// preparation that went wrong (no free student identity, say).
	SetupErr error
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int           `json:"index" yaml:"index"`
	Name     string        `json:"name" yaml:"name"`
	Status   db.StepStatus `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Err      error         `json:"-" yaml:"-"`
}

// Result is the outcome of a run.
type Result struct {
	RunID             string         `json:"run_id" yaml:"run_id"`
	Scenario          string         `json:"scenario" yaml:"scenario"`
	Driver            string         `json:"driver" yaml:"driver"`
	BaseURL           string         `json:"base_url" yaml:"base_url"`
	StudentEmail      string         `json:"student_email" yaml:"student_email"`
	Status            db.RunStatus   `json:"status" yaml:"status"`
	Steps             []StepResult   `json:"steps" yaml:"steps"`
	FailedStep        string         `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
	FailureKind       db.FailureKind `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
	Error             string         `json:"error,omitempty" yaml:"error,omitempty"`
	Screenshot        string         `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	FailureScreenshot string         `json:"failure_screenshot,omitempty" yaml:"failure_screenshot,omitempty"`
	FailureHTML       string         `json:"failure_html,omitempty" yaml:"failure_html,omitempty"`
	LogPath           string         `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	StartedAt         time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time      `json:"finished_at" yaml:"finished_at"`
	Duration          time.Duration  `json:"duration_ns" yaml:"duration_ns"`
	Err               error          `json:"-" yaml:"-"`
}

// Passed reports whether every step succeeded.
func (r *Result) Passed() bool { return r.Status == db.RunPassed }

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s, %s)", r.Scenario, strings.ToUpper(string(r.Status)), r.StudentEmail, r.Duration.Round(time.Millisecond))
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n  %-8s %s", s.Status, s.Name)
		if s.Error != "" {
			fmt.Fprintf(&b, ": %s", s.Error)
		}
	}
	if r.Screenshot != "" {
		fmt.Fprintf(&b, "\n  screenshot: %s", r.Screenshot)
	}
	if r.FailureScreenshot != "" {
		fmt.Fprintf(&b, "\n  failure screenshot: %s", r.FailureScreenshot)
	}
	return b.String()
}

// transition validates and applies a run status change.
func (r *Result) transition(to db.RunStatus) error {
	if err := core.ValidateTransition(r.Status, to); err != nil {
		return err
	}
	r.Status = to
	return nil
}

// Observer receives progress callbacks. Calls happen on the runner's goroutine.
type Observer interface {
	StepStarted(index int, step Step)
	StepFinished(res StepResult)
	RunFinished(res *Result)
}

// Recorder persists run progress. Errors are logged and never fail the run.
type Recorder interface {
	// Begin records the new run as pending.
	Begin(ctx context.Context, res *Result) error
	// Started records the move to running.
	Started(ctx context.Context, res *Result) error
	// Step records one step outcome.
	Step(ctx context.Context, runID string, res StepResult) error
	// Finish records the terminal outcome.
	Finish(ctx context.Context, res *Result) error
}

// Runner executes scenarios.
type Runner struct {
	open             OpenFunc
	logger           *log.Logger
	observer         Observer
	recorder         Recorder
	failureDir       string
	captureOnFailure bool
	now              func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger (default: discard-level default logger).
func WithLogger(l *log.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithObserver attaches a progress observer.
func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

// WithRecorder attaches run persistence.
func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// WithFailureArtifacts captures a screenshot and page HTML into dir when a step fails.
func WithFailureArtifacts(dir string) Option {
	return func(r *Runner) {
		r.failureDir = dir
		r.captureOnFailure = dir != ""
	}
}

// NewRunner returns a Runner that launches its browser with open.
func NewRunner(open OpenFunc, opts ...Option) *Runner {
	r := &Runner{open: open, logger: log.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes sc. The returned Result is always non-nil; the error is the
// failure that ended the run (a *StepError or a context error) or nil when
// every step passed.
func (r *Runner) Run(ctx context.Context, sc Scenario, meta Meta) (*Result, error) {
	res := &Result{
		RunID:        meta.RunID,
		Scenario:     sc.Name,
		Driver:       meta.Driver,
		BaseURL:      meta.BaseURL,
		StudentEmail: meta.StudentEmail,
		LogPath:      meta.LogPath,
		StartedAt:    r.now().UTC(),
	}
	if res.RunID == "" {
		res.RunID = uuid.New().String()
	}
	logger := r.logger.With("run", shortID(res.RunID), "scenario", sc.Name)

	if err := res.transition(db.RunPending); err != nil {
		return res, err
	}
	r.record(logger, "begin", func() error { return r.recorder.Begin(ctx, res) })

	if err := ctx.Err(); err != nil {
		r.finish(ctx, logger, res, sc, 0, err)
		return res, res.Err
	}

	_ = res.transition(db.RunRunning)
	r.record(logger, "start", func() error { return r.recorder.Started(ctx, res) })
	logger.Info("run started", "steps", len(sc.Steps), "email", res.StudentEmail, "driver", res.Driver)

	if meta.SetupErr != nil {
		err := meta.SetupErr
		if _, ok := FailureKindOf(err); !ok {
			err = &StepError{Step: setupStep, Action: "prepare run", Kind: db.FailureSetup, Err: err}
		}
		r.finish(ctx, logger, res, sc, 0, err)
		return res, res.Err
	}

	driver, err := r.open(ctx)
	if err != nil {
		if ctx.Err() == nil {
			err = &StepError{Step: setupStep, Action: "launch browser", Kind: db.FailureSetup, Err: err}
		}
		r.finish(ctx, logger, res, sc, 0, err)
		return res, res.Err
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			logger.Warn("closing browser", "error", cerr)
		}
	}()

	session := &Session{Driver: driver, Logger: logger}
	for i, step := range sc.Steps {
		sr, err := r.runStep(ctx, logger, session, i, step)
		res.Steps = append(res.Steps, sr)
		r.record(logger, "step", func() error { return r.recorder.Step(context.WithoutCancel(ctx), res.RunID, sr) })
		if r.observer != nil {
			r.observer.StepFinished(sr)
		}
		if err != nil {
			if ctx.Err() == nil {
				r.captureFailure(logger, session, res, i, step.Name)
			}
			r.finish(ctx, logger, res, sc, i+1, err)
			return res, res.Err
		}
	}

	if n := len(session.Screenshots); n > 0 {
		res.Screenshot = session.Screenshots[n-1]
	}
	r.finish(ctx, logger, res, sc, len(sc.Steps), nil)
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, logger *log.Logger, s *Session, index int, step Step) (StepResult, error) {
	if r.observer != nil {
		r.observer.StepStarted(index, step)
	}
	sr := StepResult{Index: index, Name: step.Name}
	start := r.now()
	logger.Debug("step started", "step", step.Name, "actions", len(step.Actions))

	for _, a := range step.Actions {
		if err := ctx.Err(); err != nil {
			return r.failStep(logger, sr, start, err), err
		}
		logger.Debug("action", "step", step.Name, "kind", a.Kind, "do", a.Desc)
		if err := a.Do(ctx, s); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = &StepError{Step: step.Name, Action: a.Desc, Kind: kindFor(a.Kind), Err: err}
			}
			return r.failStep(logger, sr, start, err), err
		}
	}

	sr.Status = db.StepPassed
	sr.Duration = r.now().Sub(start)
	logger.Info("step passed", "step", step.Name, "elapsed", sr.Duration.Round(time.Millisecond))
	return sr, nil
}

func (r *Runner) failStep(logger *log.Logger, sr StepResult, start time.Time, err error) StepResult {
	sr.Status = db.StepFailed
	sr.Duration = r.now().Sub(start)
	sr.Err = err
	sr.Error = err.Error()
	logger.Error("step failed", "step", sr.Name, "elapsed", sr.Duration.Round(time.Millisecond), "error", err)
	return sr
}

// finish marks steps from next onward skipped and moves the run to its terminal state.
func (r *Runner) finish(ctx context.Context, logger *log.Logger, res *Result, sc Scenario, next int, err error) {
	for i := next; i < len(sc.Steps); i++ {
		sr := StepResult{Index: i, Name: sc.Steps[i].Name, Status: db.StepSkipped}
		res.Steps = append(res.Steps, sr)
		r.record(logger, "step", func() error { return r.recorder.Step(context.WithoutCancel(ctx), res.RunID, sr) })
		if r.observer != nil {
			r.observer.StepFinished(sr)
		}
	}

	to := db.RunPassed
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		to = db.RunCancelled
		res.Error = err.Error()
	default:
		to = db.RunFailed
		res.Error = err.Error()
		var se *StepError
		if errors.As(err, &se) {
			res.FailedStep = se.Step
			res.FailureKind = se.Kind
		}
	}
	res.Err = err
	if terr := res.transition(to); terr != nil {
		logger.Error("invalid run transition", "error", terr)
	}

	res.FinishedAt = r.now().UTC()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	r.record(logger, "finish", func() error { return r.recorder.Finish(context.WithoutCancel(ctx), res) })

	switch to {
	case db.RunPassed:
		logger.Info("run passed", "elapsed", res.Duration.Round(time.Millisecond), "screenshot", res.Screenshot)
	case db.RunCancelled:
		logger.Warn("run cancelled", "elapsed", res.Duration.Round(time.Millisecond))
	default:
		logger.Error("run failed", "step", res.FailedStep, "kind", res.FailureKind, "error", err)
	}
	if r.observer != nil {
		r.observer.RunFinished(res)
	}
}

// captureFailure saves a screenshot and the page HTML. Errors are logged only.
func (r *Runner) captureFailure(logger *log.Logger, s *Session, res *Result, index int, step string) {
	if !r.captureOnFailure {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	base := filepath.Join(r.failureDir, fmt.Sprintf("%s-%02d-%s", shortID(res.RunID), index, slug(step)))
	if buf, err := s.Driver.Screenshot(ctx); err != nil {
		logger.Warn("failure screenshot", "error", err)
	} else if err := writeArtifact(base+".png", buf); err != nil {
		logger.Warn("failure screenshot", "error", err)
	} else {
		res.FailureScreenshot = base + ".png"
	}
	if html, err := s.Driver.HTML(ctx); err != nil {
		logger.Warn("failure html", "error", err)
	} else if err := writeArtifact(base+".html", []byte(html)); err != nil {
		logger.Warn("failure html", "error", err)
	} else {
		res.FailureHTML = base + ".html"
	}
	logger.Info("failure artifacts captured", "screenshot", res.FailureScreenshot, "html", res.FailureHTML)
}

func (r *Runner) record(logger *log.Logger, what string, fn func() error) {
	if r.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("recording run history", "event", what, "error", err)
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
