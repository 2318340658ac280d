package commands

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#00FF99")
	colorYellow = lipgloss.Color("#F59E0B")
	colorOrange = lipgloss.Color("#FB923C")
	colorDanger = lipgloss.Color("#FF0055")
	colorSub    = lipgloss.Color("#64748B")
	colorAccent = lipgloss.Color("#874BFD")

	titleStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	subtleStyle = lipgloss.NewStyle().Foreground(colorSub)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	dangerStyle = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
)

// levelStyle picks the render style for a pressure level string.
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "green":
		return okStyle
	case "yellow":
		return warnStyle
	case "orange":
		return lipgloss.NewStyle().Foreground(colorOrange)
	default:
		return dangerStyle
	}
}
