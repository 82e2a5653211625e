package flow

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dicklesworthstone/flowverify/internal/config"
)

func TestLookup(t *testing.T) {
	for _, d := range Definitions() {
		got, err := Lookup(d.Name)
		if err != nil || got.Name != d.Name {
			t.Fatalf("Lookup(%q) = %v, %v", d.Name, got.Name, err)
		}
	}
	_, err := Lookup("enrolment")
	if !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("Lookup(unknown) err = %v", err)
	}
	if !strings.Contains(err.Error(), "approval, pending, rejection") {
		t.Fatalf("error does not list scenarios: %v", err)
	}
}

func TestDefinitionsApprovalFirst(t *testing.T) {
	defs := Definitions()
	if len(defs) != 3 || defs[0].Name != ScenarioApproval {
		t.Fatalf("Definitions() = %v", defs)
	}
	defs[0].Name = "mutated"
	if Definitions()[0].Name != ScenarioApproval {
		t.Fatal("Definitions returned shared backing array")
	}
}

func TestScreenshotPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Artifacts.ScreenshotPath = filepath.Join("out", "verification.png")

	tests := map[string]string{
		ScenarioApproval:  filepath.Join("out", "verification.png"),
		ScenarioPending:   filepath.Join("out", "verification-pending.png"),
		ScenarioRejection: filepath.Join("out", "verification-rejection.png"),
	}
	for sc, want := range tests {
		if got := ScreenshotPath(cfg, sc); got != want {
			t.Errorf("ScreenshotPath(%s) = %s, want %s", sc, got, want)
		}
	}
}

func TestApprovalStepsUseConfiguredStrings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Target.BaseURL = "http://portal.test/"
	cfg.UI.ApproveButton = "Accept"
	cfg.Admin.Password = "hunter2"
	def, _ := Lookup(ScenarioApproval)
	sc := def.Scenario(cfg, testIdentity("42"))

	if sc.Name != ScenarioApproval || sc.Description == "" {
		t.Fatalf("scenario header = %q, %q", sc.Name, sc.Description)
	}
	var names []string
	var descs []string
	for _, st := range sc.Steps {
		names = append(names, st.Name)
		for _, a := range st.Actions {
			descs = append(descs, a.Desc)
		}
	}
	if strings.Join(names, ",") != "register student,admin sign-in,approve student,sign out,student sign-in,screenshot" {
		t.Fatalf("steps = %v", names)
	}
	all := strings.Join(descs, "\n")
	for _, want := range []string{
		"navigate to http://portal.test/signup",
		`click "Accept" in row[Test Student | student_42@example.com]`,
		`expect "Application Approved!" visible`,
	} {
		if !strings.Contains(all, want) {
			t.Errorf("actions missing %q:\n%s", want, all)
		}
	}
	if strings.Contains(all, "hunter2") || strings.Contains(all, "password123") {
		t.Fatalf("passwords leaked into action descriptions:\n%s", all)
	}
}

func TestStepErrorMessage(t *testing.T) {
	err := &StepError{Step: "sign out", Action: `click "Sign Out"`, Kind: "action", Err: errors.New("boom")}
	want := `action failure in step "sign out" (click "Sign Out"): boom`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if _, ok := FailureKindOf(errors.New("plain")); ok {
		t.Fatal("FailureKindOf(plain) reported a kind")
	}
}
