package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/testutil"
)

// seedRun records a finished run with one step per name.
func seedRun(t *testing.T, database *db.DB, scenario string, status db.RunStatus, started time.Time, steps ...string) *db.Run {
	t.Helper()
	r := &db.Run{
		Scenario:     scenario,
		Driver:       "chromedp",
		BaseURL:      "http://localhost:5173",
		StudentEmail: "student_" + started.Format("150405.000000000") + "@example.com",
		StartedAt:    started,
	}
	testutil.RequireNoError(t, database.CreateRun(r), "create run")
	testutil.RequireNoError(t, database.UpdateRunStatus(r.ID, db.RunRunning), "start run")
	for i, name := range steps {
		testutil.RequireNoError(t, database.AddStep(&db.StepRecord{
			RunID: r.ID, Index: i, Name: name, Status: db.StepPassed, DurationMs: 10,
		}), "add step")
	}
	finished := started.Add(time.Second)
	done := &db.Run{ID: r.ID, Status: status, FinishedAt: &finished}
	if status == db.RunFailed {
		done.FailedStep = "student sign-in"
		done.FailureKind = db.FailureAssertion
		done.Error = "text not visible"
	}
	testutil.RequireNoError(t, database.FinishRun(done), "finish run")
	return r
}

func TestHistoryCommand_ListsRuns(t *testing.T) {
	h := testutil.NewHarness(t)
	base := time.Now().UTC().Add(-time.Hour)
	seedRun(t, h.DB, "approval", db.RunPassed, base, "register")
	newest := seedRun(t, h.DB, "rejection", db.RunFailed, base.Add(time.Minute), "register")

	root := newTestRoot(t, historyCmd)
	stdout, _, err := executeCommand(root, "history", "-C", h.ProjectDir, "-j")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var runs []db.Run
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("failed to parse JSON: %v\nstdout: %s", err, stdout)
	}
	testutil.RequireLen(t, runs, 2, "runs")
	if runs[0].ID != newest.ID {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
}

func TestHistoryCommand_EmptyList(t *testing.T) {
	h := testutil.NewHarness(t)
	root := newTestRoot(t, historyCmd)

	stdout, _, err := executeCommand(root, "history", "-C", h.ProjectDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "No runs recorded.") {
		t.Errorf("stdout = %q", stdout)
	}

	root = newTestRoot(t, historyCmd)
	stdout, _, err = executeCommand(root, "history", "-C", h.ProjectDir, "-j")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Errorf("expected empty JSON array, got %q", stdout)
	}
}

func TestHistoryCommand_Filters(t *testing.T) {
	h := testutil.NewHarness(t)
	base := time.Now().UTC().Add(-time.Hour)
	seedRun(t, h.DB, "approval", db.RunPassed, base)
	seedRun(t, h.DB, "approval", db.RunFailed, base.Add(time.Minute))
	seedRun(t, h.DB, "pending", db.RunPassed, base.Add(2*time.Minute))

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"status", []string{"--status", "failed"}, 1},
		{"status uppercase", []string{"--status", "PASSED"}, 2},
		{"scenario", []string{"-s", "approval"}, 2},
		{"both", []string{"-s", "pending", "--status", "passed"}, 1},
		{"limit", []string{"-n", "1"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := newTestRoot(t, historyCmd)
			args := append([]string{"history", "-C", h.ProjectDir, "-j"}, tc.args...)
			stdout, _, err := executeCommand(root, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var runs []db.Run
			if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
				t.Fatalf("failed to parse JSON: %v", err)
			}
			testutil.RequireLen(t, runs, tc.want, "runs")
		})
	}
}

func TestHistoryCommand_InvalidStatus(t *testing.T) {
	h := testutil.NewHarness(t)
	root := newTestRoot(t, historyCmd)

	_, _, err := executeCommand(root, "history", "-C", h.ProjectDir, "--status", "approved")
	if err == nil || !strings.Contains(err.Error(), "invalid status") {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestHistoryCommand_MissingDatabase(t *testing.T) {
	dir := t.TempDir()
	root := newTestRoot(t, historyCmd)

	_, _, err := executeCommand(root, "history", "-C", dir)
	if err == nil || !strings.Contains(err.Error(), "no run history") {
		t.Fatalf("expected missing history error, got %v", err)
	}
}

func TestHistoryShowCommand_ByPrefix(t *testing.T) {
	h := testutil.NewHarness(t)
	r := seedRun(t, h.DB, "approval", db.RunFailed, time.Now().UTC(), "register", "admin sign-in")

	root := newTestRoot(t, historyCmd)
	stdout, _, err := executeCommand(root, "history", "show", r.ID[:8], "-C", h.ProjectDir, "-j")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var detail struct {
		Run   db.Run          `json:"run"`
		Steps []db.StepRecord `json:"steps"`
	}
	if err := json.Unmarshal([]byte(stdout), &detail); err != nil {
		t.Fatalf("failed to parse JSON: %v\nstdout: %s", err, stdout)
	}
	if detail.Run.ID != r.ID {
		t.Errorf("run id = %s, want %s", detail.Run.ID, r.ID)
	}
	testutil.RequireLen(t, detail.Steps, 2, "steps")
	if detail.Steps[1].Name != "admin sign-in" {
		t.Errorf("second step = %q", detail.Steps[1].Name)
	}

	root = newTestRoot(t, historyCmd)
	stdout, _, err = executeCommand(root, "history", "show", r.ID, "-C", h.ProjectDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{r.ID, "student sign-in (assertion)", "text not visible", "admin sign-in"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestHistoryShowCommand_NotFound(t *testing.T) {
	h := testutil.NewHarness(t)
	root := newTestRoot(t, historyCmd)

	_, _, err := executeCommand(root, "history", "show", "deadbeef", "-C", h.ProjectDir)
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestHistoryStatsCommand(t *testing.T) {
	h := testutil.NewHarness(t)
	base := time.Now().UTC().Add(-time.Hour)
	seedRun(t, h.DB, "approval", db.RunPassed, base, "a", "b")
	seedRun(t, h.DB, "approval", db.RunFailed, base.Add(time.Minute), "a")

	root := newTestRoot(t, historyCmd)
	stdout, _, err := executeCommand(root, "history", "stats", "-C", h.ProjectDir, "-j")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var stats db.Stats
	if err := json.Unmarshal([]byte(stdout), &stats); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if stats.RunCount != 2 || stats.PassedCount != 1 || stats.FailedCount != 1 || stats.StepCount != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFormatMillis(t *testing.T) {
	cases := map[int64]string{0: "-", -5: "-", 1500: "1.5s", 250: "250ms"}
	for in, want := range cases {
		if got := formatMillis(in); got != want {
			t.Errorf("formatMillis(%d) = %q, want %q", in, got, want)
		}
	}
}
