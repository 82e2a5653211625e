package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const runColumns = `id, scenario, driver, base_url, student_email, status,
	failed_step, failure_kind, error, screenshot_path, log_path,
	started_at, finished_at, duration_ms`

// CreateRun inserts a new run. Generates a UUID and defaults the status to pending.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RunPending
	}
	if !RunStatus("").CanTransitionTo(r.Status) {
		return fmt.Errorf("%w: new run cannot start as %s", ErrInvalidTransition, r.Status)
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, scenario, driver, base_url, student_email, status, log_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Scenario, r.Driver, r.BaseURL, r.StudentEmail, string(r.Status),
		nullString(r.LogPath), r.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrEmailInUse, r.StudentEmail)
		}
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// FindRun resolves a full ID or a unique ID prefix.
func (db *DB) FindRun(idOrPrefix string) (*Run, error) {
	r, err := db.GetRun(idOrPrefix)
	if err == nil || !errors.Is(err, ErrRunNotFound) {
		return r, err
	}

	rows, err := db.Query(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("querying runs by prefix: %w", err)
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, ErrRunNotFound
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, idOrPrefix)
	}
}

// ListRunsOptions filters ListRuns.
type ListRunsOptions struct {
	Scenario string
	Status   RunStatus
	// Limit caps the result; zero means no limit.
	Limit int
}

// ListRuns returns runs newest first.
func (db *DB) ListRuns(opts ListRunsOptions) ([]*Run, error) {
	var (
		where []string
		args  []any
	)
	if opts.Scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, opts.Scenario)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}

	q := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// UpdateRunStatus moves a run to status using the state machine.
func (db *DB) UpdateRunStatus(id string, status RunStatus) error {
	r, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if !r.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, r.Status, status)
	}

	var finishedAt *string
	var durationMs int64
	if status.IsTerminal() {
		now := time.Now().UTC()
		finishedAt = formatTimePtr(&now)
		durationMs = now.Sub(r.StartedAt).Milliseconds()
	}

	// Optimistic locking: ensure status hasn't changed since we read it
	result, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = COALESCE(?, finished_at), duration_ms = ?
		WHERE id = ? AND status = ?
	`, string(status), finishedAt, durationMs, id, string(r.Status))
	if err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}
	return checkOptimistic(result, r.Status)
}

// FinishRun records the terminal outcome of r. r.Status must be terminal and
// reachable from the stored status.
func (db *DB) FinishRun(r *Run) error {
	if !r.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is not a terminal status", ErrInvalidTransition, r.Status)
	}
	current, err := db.GetRun(r.ID)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(r.Status) {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, current.Status, r.Status)
	}

	if r.FinishedAt == nil {
		now := time.Now().UTC()
		r.FinishedAt = &now
	}
	if r.DurationMs == 0 {
		r.DurationMs = r.FinishedAt.Sub(current.StartedAt).Milliseconds()
	}

	result, err := db.Exec(`
		UPDATE runs SET status = ?, failed_step = ?, failure_kind = ?, error = ?,
			screenshot_path = ?, log_path = COALESCE(?, log_path), finished_at = ?, duration_ms = ?
		WHERE id = ? AND status = ?
	`,
		string(r.Status), nullString(r.FailedStep), nullString(string(r.FailureKind)), nullString(r.Error),
		nullString(r.ScreenshotPath), nullString(r.LogPath), formatTimePtr(r.FinishedAt), r.DurationMs,
		r.ID, string(current.Status),
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return checkOptimistic(result, current.Status)
}

// AddStep records one step outcome.
func (db *DB) AddStep(s *StepRecord) error {
	if !s.Status.Valid() {
		return fmt.Errorf("invalid step status %q", s.Status)
	}
	_, err := db.Exec(`
		INSERT INTO run_steps (run_id, idx, name, status, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.RunID, s.Index, s.Name, string(s.Status), s.DurationMs, nullString(s.Error))
	if err != nil {
		return fmt.Errorf("adding step %d to run %s: %w", s.Index, s.RunID, err)
	}
	return nil
}

// ListSteps returns the steps of a run in order.
func (db *DB) ListSteps(runID string) ([]*StepRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, idx, name, status, duration_ms, error
		FROM run_steps WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	var steps []*StepRecord
	for rows.Next() {
		s := &StepRecord{}
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&s.RunID, &s.Index, &s.Name, &status, &s.DurationMs, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		s.Status = StepStatus(status)
		s.Error = errMsg.String
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// EmailUsed reports whether any recorded run registered email.
func (db *DB) EmailUsed(ctx context.Context, email string) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE student_email = ?`, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking student email: %w", err)
	}
	return n > 0, nil
}

func checkOptimistic(result sql.Result, expected RunStatus) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: concurrent update detected (expected %s)", ErrInvalidTransition, expected)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	r := &Run{}
	var (
		status, startedAt                   string
		failedStep, failureKind, errMsg     sql.NullString
		screenshotPath, logPath, finishedAt sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Scenario, &r.Driver, &r.BaseURL, &r.StudentEmail, &status,
		&failedStep, &failureKind, &errMsg, &screenshotPath, &logPath,
		&startedAt, &finishedAt, &r.DurationMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	r.Status = RunStatus(status)
	r.FailedStep = failedStep.String
	r.FailureKind = FailureKind(failureKind.String)
	r.Error = errMsg.String
	r.ScreenshotPath = screenshotPath.String
	r.LogPath = logPath.String
	r.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		r.FinishedAt = &t
	}
	return r, nil
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
