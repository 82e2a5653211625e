package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	tea "github.com/charmbracelet/bubbletea"
)

func testSteps() []flow.Step {
	return []flow.Step{{Name: "register student"}, {Name: "admin sign-in"}, {Name: "screenshot"}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	um, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return um, cmd
}

func TestNew(t *testing.T) {
	m := New(Options{Scenario: "approval"}, testSteps())
	if len(m.steps) != 3 || m.steps[0].name != "register student" {
		t.Fatalf("steps = %+v", m.steps)
	}
	if m.Init() == nil {
		t.Fatal("Init should start the spinner")
	}
}

func TestStepProgressRendering(t *testing.T) {
	m := New(Options{Scenario: "approval", Email: "s@example.com", Driver: "chromedp"}, testSteps())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, StepStartedMsg{Index: 0})
	m, _ = update(t, m, StepFinishedMsg{Result: flow.StepResult{Index: 0, Name: "register student", Status: db.StepPassed, Duration: 1200 * time.Millisecond}})
	m, _ = update(t, m, StepStartedMsg{Index: 1})
	m, _ = update(t, m, StepFinishedMsg{Result: flow.StepResult{Index: 1, Name: "admin sign-in", Status: db.StepFailed, Error: "timed out"}})
	m, _ = update(t, m, StepFinishedMsg{Result: flow.StepResult{Index: 2, Name: "screenshot", Status: db.StepSkipped}})

	view := m.View()
	for _, want := range []string{"flowverify approval", "s@example.com via chromedp", "✓", "register student", "1.2s", "✗", "timed out", "screenshot (skipped)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRunFinishedQuits(t *testing.T) {
	m := New(Options{Scenario: "pending"}, testSteps())
	res := &flow.Result{Status: db.RunPassed, Duration: 3 * time.Second}
	m, cmd := update(t, m, RunFinishedMsg{Result: res})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("command is not tea.Quit")
	}
	if m.Result() != res || !strings.Contains(m.View(), "PASSED in 3s") {
		t.Fatalf("final view:\n%s", m.View())
	}
}

func TestInterruptCallsOnce(t *testing.T) {
	calls := 0
	m := New(Options{OnInterrupt: func() { calls++ }}, testSteps())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if calls != 1 {
		t.Fatalf("OnInterrupt called %d times", calls)
	}
	if !strings.Contains(m.View(), "cancelling") {
		t.Fatalf("view after interrupt:\n%s", m.View())
	}
}

func TestOutOfRangeIndexesIgnored(t *testing.T) {
	m := New(Options{}, testSteps())
	m, _ = update(t, m, StepStartedMsg{Index: 7})
	m, _ = update(t, m, StepFinishedMsg{Result: flow.StepResult{Index: -1}})
	for _, s := range m.steps {
		if s.running || s.status != "" {
			t.Fatalf("step changed: %+v", s)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 0); got != "short" {
		t.Fatalf("truncate zero width = %q", got)
	}
	if got := truncate("délai dépassé", 8); got != "délai..." || !utf8.ValidString(got) {
		t.Fatalf("truncate multibyte = %q", got)
	}
	if got := truncate("ééééé", 5); got != "ééééé" {
		t.Fatalf("truncate fitting multibyte = %q", got)
	}
}

func TestProgressObserver(t *testing.T) {
	var out bytes.Buffer
	p := Start(Options{Scenario: "approval"}, testSteps(), &out, nil)
	var _ flow.Observer = p

	p.StepStarted(0, flow.Step{Name: "register student"})
	p.StepFinished(flow.StepResult{Index: 0, Name: "register student", Status: db.StepPassed})
	p.RunFinished(&flow.Result{Status: db.RunFailed, Err: errors.New("x")})

	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("progress view did not exit after RunFinished")
	}
	if !strings.Contains(out.String(), "FAILED") {
		t.Fatalf("output missing final status:\n%s", out.String())
	}
}
