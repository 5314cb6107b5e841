package ui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	badge       lipgloss.Style
	helpText    lipgloss.Style
	self        lipgloss.Style
	other       lipgloss.Style
	timestamp   lipgloss.Style
}

func newTheme() theme {
	accent := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	alert := lipgloss.Color("#ff4d6d")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		panelTitle:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		footer:      lipgloss.NewStyle().Foreground(muted),
		status:      lipgloss.NewStyle().Foreground(accent).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(alert).Bold(true),
		badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(alert).
			Bold(true).
			Padding(0, 1),
		helpText:  lipgloss.NewStyle().Foreground(muted),
		self:      lipgloss.NewStyle().Foreground(mint).Bold(true),
		other:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		timestamp: lipgloss.NewStyle().Foreground(muted),
	}
}
