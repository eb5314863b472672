package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type styles struct {
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	good   lipgloss.Style
	bad    lipgloss.Style
	dim    lipgloss.Style
}

// newStyles returns colored styles when w is a terminal and plain ones
// otherwise.
func newStyles(w io.Writer) styles {
	if !isTerminal(w) {
		plain := lipgloss.NewStyle()
		return styles{
			header: plain,
			label:  plain,
			value:  plain,
			good:   plain,
			bad:    plain,
			dim:    plain,
		}
	}
	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(6)),
		label:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(4)),
		value:  lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(7)),
		good:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(2)),
		bad:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(1)),
		dim:    lipgloss.NewStyle().Faint(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// field renders "label: value" for status lines.
func (s styles) field(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		s.label.Render(label+":"), " ", s.value.Render(fmt.Sprint(value)))
}
