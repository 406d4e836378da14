package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// styles are bound to the output writer so the color profile follows the
// destination, not the process stdout.
type styles struct {
	header  lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(out io.Writer) styles {
	re := lipgloss.NewRenderer(out)
	return styles{
		header:  re.NewStyle().Bold(true).Foreground(primaryColor),
		label:   re.NewStyle().Foreground(mutedColor),
		success: re.NewStyle().Foreground(successColor),
		warning: re.NewStyle().Foreground(warningColor),
		failure: re.NewStyle().Foreground(errorColor),
	}
}

// value styles a table value; outcome values are colored by status.
// Leading alignment padding is kept outside the styled text.
func (s styles) value(key, value string) string {
	if key != "outcome" {
		return value
	}
	trimmed := strings.TrimLeft(value, " ")
	pad := value[:len(value)-len(trimmed)]
	return pad + outcomeStyle(s, trimmed).Render(trimmed)
}

func outcomeStyle(s styles, status string) lipgloss.Style {
	switch status {
	case "success":
		return s.success
	case "stopped":
		return s.warning
	case "framing_error", "storage_header_error", "sink_error":
		return s.failure
	default:
		return s.label
	}
}
