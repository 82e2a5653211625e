package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newRun(email string) *Run {
	return &Run{
		Scenario:     "approval",
		Driver:       "chromedp",
		BaseURL:      "http://localhost:5173",
		StudentEmail: email,
	}
}

func TestCreateAndGetRun(t *testing.T) {
	db := setupTestDB(t)

	r := newRun("student_1700000000@example.com")
	r.LogPath = "/tmp/run.log"
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if r.ID == "" || r.Status != RunPending || r.StartedAt.IsZero() {
		t.Fatalf("CreateRun did not fill defaults: %+v", r)
	}

	got, err := db.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.StudentEmail != r.StudentEmail || got.Status != RunPending || got.LogPath != "/tmp/run.log" {
		t.Fatalf("GetRun = %+v", got)
	}
	if !got.StartedAt.Equal(r.StartedAt.UTC()) {
		t.Fatalf("StartedAt = %v, want %v", got.StartedAt, r.StartedAt)
	}
	if got.FinishedAt != nil {
		t.Fatalf("pending run should not be finished")
	}

	if _, err := db.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestCreateRunDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateRun(newRun("dup@example.com")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	err := db.CreateRun(newRun("dup@example.com"))
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestCreateRunAllowsSeveralWithoutEmail(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 2; i++ {
		if err := db.CreateRun(newRun("")); err != nil {
			t.Fatalf("CreateRun #%d without email: %v", i+1, err)
		}
	}
}

func TestCreateRunRejectsTerminalStart(t *testing.T) {
	db := setupTestDB(t)
	r := newRun("x@example.com")
	r.Status = RunPassed
	if err := db.CreateRun(r); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateRunStatus(t *testing.T) {
	db := setupTestDB(t)
	r := newRun("s@example.com")
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := db.UpdateRunStatus(r.ID, RunPassed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->passed should be rejected, got %v", err)
	}
	if err := db.UpdateRunStatus(r.ID, RunRunning); err != nil {
		t.Fatalf("pending->running: %v", err)
	}
	if err := db.UpdateRunStatus(r.ID, RunCancelled); err != nil {
		t.Fatalf("running->cancelled: %v", err)
	}

	got, err := db.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunCancelled || got.FinishedAt == nil {
		t.Fatalf("expected cancelled with finished_at, got %+v", got)
	}
	if err := db.UpdateRunStatus(r.ID, RunRunning); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal state should not transition, got %v", err)
	}
}

func TestFinishRun(t *testing.T) {
	db := setupTestDB(t)
	r := newRun("f@example.com")
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	r.Status = RunFailed
	if err := db.FinishRun(r); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->failed should be rejected, got %v", err)
	}

	if err := db.UpdateRunStatus(r.ID, RunRunning); err != nil {
		t.Fatalf("UpdateRunStatus: %v", err)
	}
	finished := r.StartedAt.Add(1500 * time.Millisecond)
	r.Status = RunFailed
	r.FailedStep = "approve"
	r.FailureKind = FailureAssertion
	r.Error = `wait for text "Student Approval": timed out`
	r.ScreenshotPath = "/tmp/fail.png"
	r.FinishedAt = &finished
	if err := db.FinishRun(r); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := db.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunFailed || got.FailedStep != "approve" || got.FailureKind != FailureAssertion {
		t.Fatalf("GetRun = %+v", got)
	}
	if got.DurationMs != 1500 {
		t.Fatalf("DurationMs = %d, want 1500", got.DurationMs)
	}
	if got.ScreenshotPath != "/tmp/fail.png" || got.Error == "" {
		t.Fatalf("artifacts not stored: %+v", got)
	}

	r.Status = RunRunning
	if err := db.FinishRun(r); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("non-terminal finish should fail, got %v", err)
	}
}

func TestStepsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	r := newRun("steps@example.com")
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	steps := []StepRecord{
		{RunID: r.ID, Index: 1, Name: "admin sign-in", Status: StepFailed, DurationMs: 5000, Error: "timed out"},
		{RunID: r.ID, Index: 0, Name: "register", Status: StepPassed, DurationMs: 120},
		{RunID: r.ID, Index: 2, Name: "approve", Status: StepSkipped},
	}
	for i := range steps {
		if err := db.AddStep(&steps[i]); err != nil {
			t.Fatalf("AddStep: %v", err)
		}
	}
	if err := db.AddStep(&StepRecord{RunID: r.ID, Index: 3, Name: "x", Status: "maybe"}); err == nil {
		t.Fatal("expected invalid step status error")
	}

	got, err := db.ListSteps(r.ID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d steps", len(got))
	}
	for i, s := range got {
		if s.Index != i {
			t.Fatalf("steps not ordered: %+v", got)
		}
	}
	if got[1].Error != "timed out" || got[1].Status != StepFailed {
		t.Fatalf("step 1 = %+v", got[1])
	}
}

func TestListRunsAndFindRun(t *testing.T) {
	db := setupTestDB(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i, sc := range []string{"approval", "pending", "approval"} {
		r := newRun("l" + string(rune('a'+i)) + "@example.com")
		r.Scenario = sc
		r.StartedAt = base.Add(time.Duration(i) * time.Second)
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		ids = append(ids, r.ID)
	}

	all, err := db.ListRuns(ListRunsOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %v", runIDs(all))
	}

	approvals, err := db.ListRuns(ListRunsOptions{Scenario: "approval", Limit: 1})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(approvals) != 1 || approvals[0].ID != ids[2] {
		t.Fatalf("filtered = %v", runIDs(approvals))
	}

	found, err := db.FindRun(ids[1][:8])
	if err != nil {
		t.Fatalf("FindRun prefix: %v", err)
	}
	if found.ID != ids[1] {
		t.Fatalf("FindRun = %s, want %s", found.ID, ids[1])
	}
	if _, err := db.FindRun(""); !errors.Is(err, ErrAmbiguousRunID) {
		t.Fatalf("empty prefix should be ambiguous, got %v", err)
	}
	if _, err := db.FindRun("zzzz"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestEmailUsed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	used, err := db.EmailUsed(ctx, "e@example.com")
	if err != nil || used {
		t.Fatalf("EmailUsed before insert = %v, %v", used, err)
	}
	if err := db.CreateRun(newRun("e@example.com")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	used, err = db.EmailUsed(ctx, "e@example.com")
	if err != nil || !used {
		t.Fatalf("EmailUsed after insert = %v, %v", used, err)
	}
}

func TestGetStatsCounts(t *testing.T) {
	db := setupTestDB(t)
	for i, final := range []RunStatus{RunPassed, RunFailed, RunPassed} {
		r := newRun("st" + string(rune('a'+i)) + "@example.com")
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		if err := db.UpdateRunStatus(r.ID, RunRunning); err != nil {
			t.Fatalf("UpdateRunStatus: %v", err)
		}
		if err := db.UpdateRunStatus(r.ID, final); err != nil {
			t.Fatalf("UpdateRunStatus: %v", err)
		}
	}
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.RunCount != 3 || stats.PassedCount != 2 || stats.FailedCount != 1 || stats.CancelledCount != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func runIDs(runs []*Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
