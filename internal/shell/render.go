package shell

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/shelf/internal/vfs"
)

// Theme holds the terminal colors used for listings and diagnostics.
type Theme struct {
	Dir   lipgloss.Color
	Link  lipgloss.Color
	File  lipgloss.Color
	Error lipgloss.Color
}

// DefaultTheme uses ANSI 256 colors that read on dark and light terminals.
var DefaultTheme = Theme{
	Dir:   lipgloss.Color("33"),
	Link:  lipgloss.Color("170"),
	File:  lipgloss.Color("252"),
	Error: lipgloss.Color("203"),
}

// Renderer turns command results into terminal text. With color disabled
// it returns Output.Text unchanged.
type Renderer struct {
	lr    *lipgloss.Renderer
	theme Theme
	color bool
}

// NewRenderer returns a renderer for w. Styling is dropped automatically
// when w is not a terminal.
func NewRenderer(w io.Writer, color bool) *Renderer {
	return &Renderer{lr: lipgloss.NewRenderer(w), theme: DefaultTheme, color: color}
}

// Output renders a command result. Listings whose lines are exactly the
// entry names are styled per entry; anything else is printed as is.
func (r *Renderer) Output(out *Output) string {
	if !r.color || len(out.Entries) == 0 {
		return out.Text
	}
	lines := strings.Split(out.Text, "\n")
	if len(lines) != len(out.Entries) {
		return out.Text
	}
	for i, e := range out.Entries {
		if lines[i] != e.Name {
			return out.Text
		}
	}
	styled := make([]string, len(out.Entries))
	for i, e := range out.Entries {
		styled[i] = r.entryStyle(e).Render(e.Name)
	}
	return strings.Join(styled, "\n")
}

func (r *Renderer) entryStyle(e Entry) lipgloss.Style {
	style := r.lr.NewStyle()
	switch e.Kind {
	case vfs.KindDir, vfs.KindVirtual:
		style = style.Foreground(r.theme.Dir).Bold(true)
	case vfs.KindSymlink:
		style = style.Foreground(r.theme.Link)
	case vfs.KindFile:
		style = style.Foreground(r.theme.File)
	}
	if e.Color != "" {
		style = style.Foreground(lipgloss.Color(e.Color))
	}
	return style
}

// Error renders a diagnostic line.
func (r *Renderer) Error(err error) string {
	if !r.color {
		return err.Error()
	}
	return r.lr.NewStyle().Foreground(r.theme.Error).Render(err.Error())
}
