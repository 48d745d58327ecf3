package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	Blue   = lipgloss.Color("#5FAFFF")
	Green  = lipgloss.Color("#00C832")
	Red    = lipgloss.Color("#FF5F5F")
	Yellow = lipgloss.Color("#FFD700")
	Gray   = lipgloss.Color("#8A8A8A")
)

// theme holds the styles bound to one output. Writers that are not a
// terminal get plain text.
type theme struct {
	renderer *lipgloss.Renderer
	title    lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	warning  lipgloss.Style
	muted    lipgloss.Style
	bar      lipgloss.Style
}

func newTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	return theme{
		renderer: r,
		title:    r.NewStyle().Foreground(Blue).Bold(true),
		success:  r.NewStyle().Foreground(Green),
		failure:  r.NewStyle().Foreground(Red),
		warning:  r.NewStyle().Foreground(Yellow).Bold(true),
		muted:    r.NewStyle().Foreground(Gray),
		bar:      r.NewStyle().Foreground(Green),
	}
}
