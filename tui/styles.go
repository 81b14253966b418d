// ABOUTME: Defines lipgloss style constants for the viewer's panels, statuses, and log lines.
// ABOUTME: Provides StyleForCategory and StyleForStatus to map engine values to display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/runwatch/watch"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Run status colors
	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	CancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Log line colors by category
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogAgentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogLifecycleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LogToolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	LogThinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogInputStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	LogInfoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Input gate dialog
	InputGateStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2)

	// Previous-output excerpt inside the input gate
	ExcerptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// StyleForCategory returns the log-line style for an event category.
func StyleForCategory(cat watch.Category) lipgloss.Style {
	switch cat {
	case watch.CategoryLifecycle:
		return LogLifecycleStyle
	case watch.CategoryAgent:
		return LogAgentStyle
	case watch.CategoryTool:
		return LogToolStyle
	case watch.CategoryThinking:
		return LogThinkingStyle
	case watch.CategoryError:
		return LogErrorStyle
	case watch.CategoryInput:
		return LogInputStyle
	default:
		return LogInfoStyle
	}
}

// StyleForStatus returns the style for a run status.
func StyleForStatus(status watch.Status) lipgloss.Style {
	switch status {
	case watch.StatusRunning:
		return RunningStyle
	case watch.StatusCompleted:
		return CompletedStyle
	case watch.StatusFailed:
		return FailedStyle
	case watch.StatusCancelled:
		return CancelledStyle
	default:
		return PendingStyle
	}
}
