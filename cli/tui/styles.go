// Package tui provides Bubble Tea TUI components for the modality-dlt CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI is read-only (inspect only)
//   - TUI shows the same rows as non-TUI rendering
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for attribute keys.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// ValueStyle for attribute values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// BoxStyle for the attribute pane.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// KindStyle returns the style for a client call kind.
func KindStyle(kind string) lipgloss.Style {
	switch kind {
	case "event":
		return ValueStyle
	case "timeline_attrs":
		return lipgloss.NewStyle().Foreground(successColor)
	case "switch_timeline":
		return lipgloss.NewStyle().Foreground(warningColor)
	default:
		return lipgloss.NewStyle().Foreground(highlightColor)
	}
}
