package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	secondaryColor = lipgloss.AdaptiveColor{Light: "#0E7C86", Dark: "#4FD6BE"}
	errorColor     = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F87"}
	warningColor   = lipgloss.AdaptiveColor{Light: "#B35C00", Dark: "#FFAF00"}
	mutedColor     = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C7086"}
	textPrimary    = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#CDD6F4"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Padding(0, 1)

	editorStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor)

	focusedEditorStyle = editorStyle.
				BorderForeground(primaryColor)

	setStyle = lipgloss.NewStyle().
			Foreground(textPrimary).
			Padding(0, 1)

	activeSetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Bold(true).
			Padding(0, 1)

	failedSetStyle = setStyle.
			Foreground(errorColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)
