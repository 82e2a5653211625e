package output

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// Badge renders a status word with its color.
func Badge(status string) string {
	label := strings.ToUpper(status)
	switch strings.ToLower(status) {
	case "passed", "pass", "ok", "approved":
		return passStyle.Render(label)
	case "failed", "fail", "error", "rejected":
		return failStyle.Render(label)
	case "cancelled", "running", "pending":
		return warnStyle.Render(label)
	default:
		return skipStyle.Render(label)
	}
}
