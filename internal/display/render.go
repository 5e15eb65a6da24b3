package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/roach88/qms/internal/model"
)

const (
	textWidth  = 10
	stateWidth = 9
)

type styles struct {
	title    lipgloss.Style
	queue    lipgloss.Style
	text     lipgloss.Style
	priority lipgloss.Style
	serving  lipgloss.Style
	waiting  lipgloss.Style
	faint    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("24")),
		queue:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		text:     r.NewStyle().Width(textWidth),
		priority: r.NewStyle().Width(textWidth).Bold(true).Foreground(lipgloss.Color("203")),
		serving:  r.NewStyle().Foreground(lipgloss.Color("42")),
		waiting:  r.NewStyle().Foreground(lipgloss.Color("250")),
		faint:    r.NewStyle().Faint(true),
	}
}

// Render writes b as a text board. Styling follows profile; termenv.Ascii
// produces plain text.
func Render(w io.Writer, b Board, profile termenv.Profile) error {
	r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	r.SetColorProfile(profile)
	st := newStyles(r)

	var sb strings.Builder
	sb.WriteString(st.title.Render(fmt.Sprintf("%s | %s", b.Screen.Name, b.Day)))
	sb.WriteString("\n")
	for _, q := range b.Queues {
		sb.WriteString("\n")
		sb.WriteString(st.queue.Render(q.Name))
		sb.WriteString("\n")
		if len(q.Entries) == 0 {
			sb.WriteString(st.faint.Render("  no tickets"))
			sb.WriteString("\n")
		}
		for _, e := range q.Entries {
			sb.WriteString("  ")
			sb.WriteString(st.row(e))
			sb.WriteString("\n")
		}
		sb.WriteString(st.faint.Render(fmt.Sprintf("  %d waiting", q.Waiting)))
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (st styles) row(e Entry) string {
	text := st.text
	if e.Priority {
		text = st.priority
	}
	state := st.waiting
	if e.State == model.StateServing {
		state = st.serving
	}
	if e.CounterName == "" {
		return text.Render(e.DisplayText) + state.Render(e.State.String())
	}
	return text.Render(e.DisplayText) + state.Width(stateWidth).Render(e.State.String()) + e.CounterName
}
