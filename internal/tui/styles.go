package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	runningColor  = lipgloss.Color("10") // Green
	stoppedColor  = lipgloss.Color("8")  // Gray
	errorColor    = lipgloss.Color("9")  // Red
	startingColor = lipgloss.Color("11") // Yellow

	headerBg = lipgloss.Color("235")
	statusBg = lipgloss.Color("236")
	dimColor = lipgloss.Color("8")
)

// Styles
var (
	runningStyle = lipgloss.NewStyle().
			Foreground(runningColor).
			Bold(true)

	stoppedStyle = lipgloss.NewStyle().
			Foreground(stoppedColor)

	errorStateStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	startingStyle = lipgloss.NewStyle().
			Foreground(startingColor)

	defaultStateStyle = lipgloss.NewStyle()

	headerStyle = lipgloss.NewStyle().
			Background(headerBg).
			Padding(0, 1).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Background(statusBg).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(errorColor).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)
)

// stateStyle returns the style for a server status string
func stateStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return runningStyle
	case "stopped":
		return stoppedStyle
	case "error":
		return errorStateStyle
	case "starting":
		return startingStyle
	default:
		return defaultStateStyle
	}
}
