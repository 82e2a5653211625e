package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/Dicklesworthstone/flowverify/internal/testutil"
)

func TestScenariosCommand_JSON(t *testing.T) {
	root := newTestRoot(t, scenariosCmd)

	stdout, _, err := executeCommand(root, "scenarios", "-j")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var list []ScenarioInfo
	if err := json.Unmarshal([]byte(stdout), &list); err != nil {
		t.Fatalf("failed to parse JSON: %v\nstdout: %s", err, stdout)
	}
	testutil.RequireLen(t, list, len(flow.Definitions()), "scenarios")
	if list[0].Name != flow.ScenarioApproval {
		t.Errorf("first scenario = %q, want approval", list[0].Name)
	}
	for _, s := range list {
		if len(s.Steps) == 0 || s.Description == "" {
			t.Errorf("scenario %q missing steps or description", s.Name)
		}
	}
}

func TestScenariosCommand_Table(t *testing.T) {
	root := newTestRoot(t, scenariosCmd)

	stdout, _, err := executeCommand(root, "ls")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if !strings.HasPrefix(lines[0], "SCENARIO") {
		t.Errorf("header = %q", lines[0])
	}
	testutil.RequireLen(t, lines, len(flow.Definitions())+1, "table lines")
}

func TestVersionCommand(t *testing.T) {
	root := newTestRoot(t, versionCmd)

	stdout, _, err := executeCommand(root, "version", "-j")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v VersionInfo
	if err := json.Unmarshal([]byte(stdout), &v); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	testutil.RequireEqual(t, v.Version, Version, "version")
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errString("boom"), 2},
		{"failed", &ExitError{Code: 1}, 1},
		{"cancelled", &ExitError{Code: 130, Err: errString("interrupted")}, 130},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("%s: ExitCode = %d, want %d", tc.name, got, tc.want)
		}
	}
	if (&ExitError{Code: 1}).Error() != "exit status 1" {
		t.Error("unexpected message for ExitError without cause")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
