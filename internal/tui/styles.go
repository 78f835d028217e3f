package tui

import "github.com/charmbracelet/lipgloss"

// Minimum terminal size the layout is drawn for.
const (
	MinWidth  = 80
	MinHeight = 24
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241"))

	activeInputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D8DEE9")).
			Bold(true)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#81A1C1")).
			Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D8DEE9"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	helpKeyStyle = lipgloss.NewStyle().Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	menuItemStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Width(30).
			Align(lipgloss.Center)

	menuSelectedStyle = menuItemStyle.
				BorderForeground(lipgloss.Color("214")).
				Foreground(lipgloss.Color("214"))

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1).
			Width(40)

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	sizeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)
