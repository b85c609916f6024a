package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256-color palette shared by the table formatter and the TUI.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	LabelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	SizeStyle  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	DueStyle   = lipgloss.NewStyle().Foreground(ColorDanger)
	SoonStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	OKStyle    = lipgloss.NewStyle().Foreground(ColorSuccess)

	// FooterBox surrounds the summary under the table.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted).
				PaddingRight(2)
)
