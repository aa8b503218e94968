package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Box drawing characters
const (
	topLeft     = "╭"
	topRight    = "╮"
	bottomLeft  = "╰"
	bottomRight = "╯"
	horizontal  = "─"
	vertical    = "│"
	leftT       = "├"
	rightT      = "┤"
	topT        = "┬"
	bottomT     = "┴"
	cross       = "┼"
)

// Color palette
const (
	ColorBorder     = "240"
	ColorHeader     = "252"
	ColorKey        = "81"
	ColorPath       = "252"
	ColorRestored   = "214"
	ColorDownloaded = "82"
	ColorSkipped    = "245"
	ColorFailed     = "196"
	ColorMuted      = "240"
)

// Styles is the set of styles used for one output stream
type Styles struct {
	Border     lipgloss.Style
	Header     lipgloss.Style
	Key        lipgloss.Style
	Path       lipgloss.Style
	Restored   lipgloss.Style
	Downloaded lipgloss.Style
	Skipped    lipgloss.Style
	Failed     lipgloss.Style
	Muted      lipgloss.Style
}

// NewStyles builds styles for w. Color detection follows w, so output
// redirected to a file is never colored. With color false every style is
// plain.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		plain := r.NewStyle()
		return Styles{
			Border: plain, Header: plain, Key: plain, Path: plain,
			Restored: plain, Downloaded: plain, Skipped: plain, Failed: plain, Muted: plain,
		}
	}

	return Styles{
		Border:     r.NewStyle().Foreground(lipgloss.Color(ColorBorder)),
		Header:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorHeader)),
		Key:        r.NewStyle().Foreground(lipgloss.Color(ColorKey)),
		Path:       r.NewStyle().Foreground(lipgloss.Color(ColorPath)),
		Restored:   r.NewStyle().Foreground(lipgloss.Color(ColorRestored)),
		Downloaded: r.NewStyle().Foreground(lipgloss.Color(ColorDownloaded)),
		Skipped:    r.NewStyle().Foreground(lipgloss.Color(ColorSkipped)),
		Failed:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorFailed)),
		Muted:      r.NewStyle().Foreground(lipgloss.Color(ColorMuted)),
	}
}

// padRight pads a string to the specified display width using runewidth
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw > width {
		return runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-sw)
}
