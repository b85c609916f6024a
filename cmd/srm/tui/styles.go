// Package tui is the interactive restore picker behind "srm restore -i".
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#7D56F4")
	successColor   = lipgloss.Color("#28A745")
	warningColor   = lipgloss.Color("#FFC107")
	mutedColor     = lipgloss.Color("#666666")
	borderColor    = lipgloss.Color("#333333")
	highlightColor = lipgloss.Color("#1A1A2E")
)

var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	dividerStyle   = lipgloss.NewStyle().Foreground(borderColor)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	mutedTextStyle = lipgloss.NewStyle().Foreground(mutedColor)
	dueStyle       = lipgloss.NewStyle().Foreground(warningColor)

	selectedItemStyle = lipgloss.NewStyle().
				Background(highlightColor).
				Foreground(lipgloss.Color("#FFFFFF")).
				Bold(true)
	normalItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	checkedStyle    = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	uncheckedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	cursorStyle     = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	sizeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D9FF"))
	keyStyle        = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	keyDescStyle    = lipgloss.NewStyle().Foreground(mutedColor)
)

func renderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return dividerStyle.Render(repeat("─", width))
}
