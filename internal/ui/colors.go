package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#C06C2B", "#2E8B57", "#C0392B", "#D4A017", "#7A7A7A")

// Palette is the stylesheet of the TUI, one [lipgloss.Style] per role.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
	box   lipgloss.Style
}

// NewPalette builds a palette from title, success, error, warning and muted colors.
func NewPalette(title, ok, errc, warn, muted string) *Palette {
	return &Palette{
		title: bold(title).MarginBottom(1),
		ok:    bold(ok),
		err:   bold(errc),
		warn:  fg(warn),
		help:  fg(muted).Italic(true),
		label: fg(muted).Width(14),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(title)).
			Padding(1, 2),
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
