// Package tui holds the styling helpers shared by the terminal browser.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Panel padding constants
const (
	PanelPaddingV = 0
	PanelPaddingH = 1
)

// Palette is the set of colors a theme draws with.
type Palette struct {
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Highlight lipgloss.Color
	Text      lipgloss.Color
	Subtle    lipgloss.Color
	Up        lipgloss.Color
	Down      lipgloss.Color
	Star      lipgloss.Color
}

// DarkPalette is used on dark terminals.
var DarkPalette = Palette{
	Accent:    lipgloss.Color("62"),
	Muted:     lipgloss.Color("240"),
	Highlight: lipgloss.Color("229"),
	Text:      lipgloss.Color("252"),
	Subtle:    lipgloss.Color("238"),
	Up:        lipgloss.Color("42"),
	Down:      lipgloss.Color("196"),
	Star:      lipgloss.Color("220"),
}

// LightPalette is used on light terminals.
var LightPalette = Palette{
	Accent:    lipgloss.Color("25"),
	Muted:     lipgloss.Color("245"),
	Highlight: lipgloss.Color("231"),
	Text:      lipgloss.Color("235"),
	Subtle:    lipgloss.Color("252"),
	Up:        lipgloss.Color("28"),
	Down:      lipgloss.Color("160"),
	Star:      lipgloss.Color("172"),
}

// Styles groups the lipgloss styles of the browser.
type Styles struct {
	Palette   Palette
	Title     lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Row       lipgloss.Style
	Selected  lipgloss.Style
	Dim       lipgloss.Style
	Up        lipgloss.Style
	Down      lipgloss.Style
	Star      lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Border    lipgloss.Style
}

// DefaultStyles returns the dark theme styles.
func DefaultStyles() Styles {
	return NewStyles(DarkPalette)
}

// StylesForTheme maps a theme preference to styles. Anything other than
// "light" renders dark.
func StylesForTheme(theme string) Styles {
	if theme == "light" {
		return NewStyles(LightPalette)
	}
	return DefaultStyles()
}

// NewStyles builds styles from a palette.
func NewStyles(p Palette) Styles {
	return Styles{
		Palette: p,
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Highlight).
			Background(p.Accent).
			Padding(0, PanelPaddingH),
		Tab: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Subtle).
			Padding(0, PanelPaddingH),
		ActiveTab: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Highlight).
			Background(p.Accent).
			Padding(0, PanelPaddingH),
		Row: lipgloss.NewStyle().
			Foreground(p.Text),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Highlight).
			Background(p.Accent),
		Dim: lipgloss.NewStyle().
			Foreground(p.Muted),
		Up: lipgloss.NewStyle().
			Foreground(p.Up),
		Down: lipgloss.NewStyle().
			Foreground(p.Down),
		Star: lipgloss.NewStyle().
			Foreground(p.Star),
		Status: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Subtle),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Down),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.Muted).
			Padding(PanelPaddingV, PanelPaddingH),
	}
}

// RenderTitle renders a full-width title bar.
func (s Styles) RenderTitle(title string, width int) string {
	return s.Title.Width(width).Render(Truncate(title, width-2*PanelPaddingH))
}

// RenderBorder renders content inside a rounded border.
func (s Styles) RenderBorder(content string, width int) string {
	if width > 2 {
		return s.Border.Width(width - 2).Render(content)
	}
	return s.Border.Render(content)
}

// Truncate shortens s to at most width display cells, marking the cut with "...".
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}

// PadRight pads or truncates s to exactly width display cells.
func PadRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := ansi.StringWidth(s)
	if w >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-w)
}

// PadLeft right-aligns s within width display cells.
func PadLeft(s string, width int) string {
	w := ansi.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}
