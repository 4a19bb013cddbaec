package tui

import "github.com/charmbracelet/lipgloss"

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	GameLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	MultiplierStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			Padding(1, 4)

	CrashedStyle = MultiplierStyle.
			Foreground(lipgloss.Color("#FF6B6B"))

	CashedOutStyle = MultiplierStyle.
			Foreground(lipgloss.Color("#96CEB4"))

	BalanceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// Crash point badges in the recent bar, by bucket
var (
	lowCrashStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	midCrashStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	highCrashStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
)

func crashPointStyle(cp float64) lipgloss.Style {
	switch {
	case cp < 2:
		return lowCrashStyle
	case cp < 10:
		return midCrashStyle
	default:
		return highCrashStyle
	}
}
