// Package components provides shared Bubble Tea widgets.
package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerStyle selects a spinner animation.
type SpinnerStyle int

const (
	SpinnerStyleDots SpinnerStyle = iota
	SpinnerStyleLine
	SpinnerStyleMiniDot
	SpinnerStylePulse
	SpinnerStylePoints
)

// Palette used by the progress view.
var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#8839ef", Dark: "#cba6f7"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#8c8fa1", Dark: "#6c7086"}
	ColorText   = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"}
)

// NewSpinner creates a spinner with the given style.
func NewSpinner(style SpinnerStyle) spinner.Model {
	s := spinner.New()
	switch style {
	case SpinnerStyleLine:
		s.Spinner = spinner.Line
	case SpinnerStyleMiniDot:
		s.Spinner = spinner.MiniDot
	case SpinnerStylePulse:
		s.Spinner = spinner.Pulse
	case SpinnerStylePoints:
		s.Spinner = spinner.Points
	default:
		s.Spinner = spinner.Dot
	}
	s.Style = lipgloss.NewStyle().Foreground(ColorAccent)
	return s
}

// StepSpinner is the spinner shown next to the running step.
func StepSpinner() spinner.Model {
	return NewSpinner(SpinnerStyleDots)
}

// SpinnerWithLabel renders a spinner followed by label.
func SpinnerWithLabel(s spinner.Model, label string) string {
	return s.View() + " " + lipgloss.NewStyle().Foreground(ColorText).Render(label)
}
