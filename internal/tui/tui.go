// Package tui implements the Bubble Tea progress view shown while a
// scenario runs in an interactive terminal.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/Dicklesworthstone/flowverify/internal/tui/components"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Messages delivered to the model by Progress.
type (
	StepStartedMsg  struct{ Index int }
	StepFinishedMsg struct{ Result flow.StepResult }
	RunFinishedMsg  struct{ Result *flow.Result }
)

type stepRow struct {
	name     string
	status   db.StepStatus
	running  bool
	duration time.Duration
	err      string
}

// Options configures the progress view.
type Options struct {
	Scenario string
	Email    string
	Driver   string
	// OnInterrupt is called once when the user presses ctrl+c or q.
	OnInterrupt func()
}

// Model renders one line per step.
type Model struct {
	opts        Options
	steps       []stepRow
	spinner     spinner.Model
	started     time.Time
	result      *flow.Result
	interrupted bool
	width       int
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(components.ColorAccent)
	mutedStyle = lipgloss.NewStyle().Foreground(components.ColorMuted)
	passStyle  = lipgloss.NewStyle().Foreground(components.ColorPass)
	failStyle  = lipgloss.NewStyle().Foreground(components.ColorFail)
)

// New returns a model for the given steps.
func New(opts Options, steps []flow.Step) Model {
	rows := make([]stepRow, len(steps))
	for i, s := range steps {
		rows[i] = stepRow{name: s.Name}
	}
	return Model{
		opts:    opts,
		steps:   rows,
		spinner: components.StepSpinner(),
		started: time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.interrupted && m.opts.OnInterrupt != nil {
				m.opts.OnInterrupt()
			}
			m.interrupted = true
		}
		return m, nil

	case StepStartedMsg:
		if msg.Index >= 0 && msg.Index < len(m.steps) {
			m.steps[msg.Index].running = true
		}
		return m, nil

	case StepFinishedMsg:
		r := msg.Result
		if r.Index >= 0 && r.Index < len(m.steps) {
			m.steps[r.Index] = stepRow{name: r.Name, status: r.Status, duration: r.Duration, err: r.Error}
		}
		return m, nil

	case RunFinishedMsg:
		m.result = msg.Result
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("flowverify "+m.opts.Scenario) + " " +
		mutedStyle.Render(fmt.Sprintf("%s via %s", m.opts.Email, m.opts.Driver)) + "\n\n")

	for _, s := range m.steps {
		b.WriteString("  " + m.renderStep(s) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.result != nil:
		line := fmt.Sprintf("%s in %s", strings.ToUpper(string(m.result.Status)), m.result.Duration.Round(time.Millisecond))
		if m.result.Passed() {
			b.WriteString(passStyle.Bold(true).Render(line))
		} else {
			b.WriteString(failStyle.Bold(true).Render(line))
		}
		b.WriteString("\n")
	case m.interrupted:
		b.WriteString(mutedStyle.Render("cancelling...") + "\n")
	default:
		b.WriteString(mutedStyle.Render(fmt.Sprintf("elapsed %s  (q to cancel)", time.Since(m.started).Round(time.Second))) + "\n")
	}
	return b.String()
}

func (m Model) renderStep(s stepRow) string {
	switch {
	case s.status == db.StepPassed:
		return passStyle.Render("✓") + " " + s.name + " " + mutedStyle.Render(s.duration.Round(time.Millisecond).String())
	case s.status == db.StepFailed:
		line := failStyle.Render("✗") + " " + s.name
		if s.err != "" {
			line += "\n    " + failStyle.Render(truncate(s.err, m.width-4))
		}
		return line
	case s.status == db.StepSkipped:
		return mutedStyle.Render("- " + s.name + " (skipped)")
	case s.running:
		return components.SpinnerWithLabel(m.spinner, s.name)
	default:
		return mutedStyle.Render("· " + s.name)
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// Result returns the final result once the run finished.
func (m Model) Result() *flow.Result { return m.result }

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Progress drives a Model from flow.Runner callbacks. It implements flow.Observer.
type Progress struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// Start runs the view in its own goroutine, rendering to out. A nil in
// disables keyboard input.
func Start(opts Options, steps []flow.Step, out io.Writer, in io.Reader) *Progress {
	p := &Progress{
		program: tea.NewProgram(New(opts, steps), tea.WithOutput(out), tea.WithInput(in)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, p.err = p.program.Run()
	}()
	return p
}

// StepStarted implements flow.Observer.
func (p *Progress) StepStarted(index int, _ flow.Step) {
	p.program.Send(StepStartedMsg{Index: index})
}

// StepFinished implements flow.Observer.
func (p *Progress) StepFinished(res flow.StepResult) {
	p.program.Send(StepFinishedMsg{Result: res})
}

// RunFinished implements flow.Observer.
func (p *Progress) RunFinished(res *flow.Result) {
	p.program.Send(RunFinishedMsg{Result: res})
}

// Wait blocks until the view exits.
func (p *Progress) Wait() error {
	<-p.done
	return p.err
}

// Stop quits the view without a final result.
func (p *Progress) Stop() error {
	p.program.Quit()
	return p.Wait()
}
