package ui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"anonchat/render"
)

type Styles struct {
	Title     lipgloss.Style
	Status    lipgloss.Style
	Timestamp lipgloss.Style
	Nickname  lipgloss.Style
	Text      lipgloss.Style
	System    lipgloss.Style
	Label     lipgloss.Style
	Alert     lipgloss.Style
	Help      lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Nickname:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Text:      lipgloss.NewStyle(),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("178")),
		Label:     lipgloss.NewStyle().Bold(true),
		Alert: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("160")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Line renders a row for the terminal. Span text is stripped of escape
// sequences and control characters before styling.
func (s Styles) Line(row render.Row) string {
	var sb strings.Builder
	for _, span := range row.Spans {
		text := sanitize(span.Text)
		style := s.Text
		switch span.Class {
		case render.ClassTimestamp:
			style = s.Timestamp
		case render.ClassNickname:
			style = s.Nickname
		case render.ClassSystemText:
			style = s.System
		}
		if span.Strong {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(text))
	}
	return sb.String()
}

func sanitize(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, ansi.Strip(text))
}
