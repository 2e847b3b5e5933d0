package tui

import (
	"github.com/charmbracelet/lipgloss"

	"monthgrid/internal/model"
	"monthgrid/internal/style"
)

// Styles are the lipgloss renderings of a style.Palette.
type Styles struct {
	Default  lipgloss.Style
	Past     lipgloss.Style
	Today    lipgloss.Style
	Selected lipgloss.Style
	Padding  lipgloss.Style
	Cursor   lipgloss.Style
	Header   lipgloss.Style
	Weekday  lipgloss.Style
	Help     lipgloss.Style
	Status   lipgloss.Style
	Marker   lipgloss.Style
}

const cellWidth = 5

// termColor maps c to a terminal color. Mostly transparent colors have no
// terminal equivalent and render as the terminal default.
func termColor(c model.Color) lipgloss.TerminalColor {
	if c.A < 0x40 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(c.Hex()[:7])
}

// NewStyles derives cell styles from p.
func NewStyles(p style.Palette) Styles {
	cell := lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Right)
	return Styles{
		Default: cell.
			Foreground(termColor(p.TextDefault)).
			Background(termColor(p.CellDefault)),
		Past: cell.
			Foreground(termColor(p.TextPast)).
			Background(termColor(p.CellDefault)),
		Today: cell.
			Foreground(termColor(p.TextToday)).
			Background(termColor(p.CellToday)).
			Bold(true),
		Selected: cell.
			Foreground(termColor(p.SelectedBorder)).
			Background(termColor(p.CellSelected)).
			Bold(true).
			Underline(true),
		Padding: cell,
		Cursor:  lipgloss.NewStyle().Reverse(true),
		Header: lipgloss.NewStyle().
			Foreground(termColor(p.Header)).
			Bold(true).
			Padding(0, 1),
		Weekday: cell.Foreground(lipgloss.Color("241")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Status: lipgloss.NewStyle().
			Foreground(termColor(p.Header)).
			Padding(0, 1),
		Marker: lipgloss.NewStyle().Foreground(termColor(p.EventMarker)),
	}
}
