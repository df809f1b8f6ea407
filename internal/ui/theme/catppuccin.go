package theme

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha.
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(0, 1)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)

	Header = lipgloss.NewStyle().Foreground(Lavender).Bold(true).Padding(0, 1)
	Cell   = lipgloss.NewStyle().Foreground(Text).Padding(0, 1)
	Good   = lipgloss.NewStyle().Foreground(Green)
	Warn   = lipgloss.NewStyle().Foreground(Yellow)
	Bad    = lipgloss.NewStyle().Foreground(Red).Bold(true)
)

// Status colours a task or course status word.
func Status(status string) string {
	switch status {
	case "done", "ok":
		return Good.Render(status)
	case "skipped", "partial":
		return Warn.Render(status)
	case "failed", "error":
		return Bad.Render(status)
	default:
		return Muted.Render(status)
	}
}
