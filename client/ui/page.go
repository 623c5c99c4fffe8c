package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"anonchat/render"
)

const (
	nicknameLimit = 32
	messageLimit  = 500
	chromeHeight  = 6
)

// Page holds the visible state of the chat screen: the join form, the
// message form, the message list and the alert line. It is the session's
// View and Notifier.
type Page struct {
	styles Styles

	joinVisible bool
	nickname    textinput.Model
	message     textinput.Model
	list        viewport.Model
	rows        []render.Row
	alert       string
	width       int
}

func NewPage(styles Styles) *Page {
	nick := textinput.New()
	nick.Prompt = ""
	nick.Placeholder = "your nickname"
	nick.CharLimit = nicknameLimit
	nick.Focus()

	msg := textinput.New()
	msg.Prompt = ""
	msg.Placeholder = "say something"
	msg.CharLimit = messageLimit

	return &Page{
		styles:      styles,
		joinVisible: true,
		nickname:    nick,
		message:     msg,
		list:        viewport.New(80, 20),
		width:       80,
	}
}

func (p *Page) ShowJoinForm() {
	p.joinVisible = true
	p.message.Blur()
	p.nickname.Focus()
}

func (p *Page) ShowMessageForm() {
	p.joinVisible = false
	p.nickname.Blur()
	p.message.Focus()
}

func (p *Page) ClearMessageInput() {
	p.message.SetValue("")
}

func (p *Page) AppendRow(row render.Row) {
	p.rows = append(p.rows, row)
	p.refresh()
}

func (p *Page) Notify(text string) {
	p.alert = text
}

// JoinVisible reports whether the join form is the active panel.
func (p *Page) JoinVisible() bool { return p.joinVisible }

// Alert returns the pending alert, if any.
func (p *Page) Alert() string { return p.alert }

// DismissAlert clears the pending alert.
func (p *Page) DismissAlert() { p.alert = "" }

// Lines returns the message list as plain text, one entry per row.
func (p *Page) Lines() []string {
	out := make([]string, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, r.String())
	}
	return out
}

func (p *Page) SetNickname(v string) { p.nickname.SetValue(v) }

func (p *Page) SetSize(width, height int) {
	p.width = width
	p.list.Width = width
	p.list.Height = max(height-chromeHeight, 1)
	p.nickname.Width = max(width-12, 10)
	p.message.Width = max(width-12, 10)
	p.refresh()
}

func (p *Page) refresh() {
	wrap := lipgloss.NewStyle().Width(p.width)
	lines := make([]string, 0, len(p.rows))
	for _, r := range p.rows {
		lines = append(lines, wrap.Render(p.styles.Line(r)))
	}
	p.list.SetContent(strings.Join(lines, "\n"))
	p.list.GotoBottom()
}

func (p *Page) view(status string) string {
	var sb strings.Builder
	sb.WriteString(p.styles.Title.Render("Anonymous chat"))
	sb.WriteString("  ")
	sb.WriteString(p.styles.Status.Render(status))
	sb.WriteString("\n\n")
	sb.WriteString(p.list.View())
	sb.WriteString("\n\n")

	if p.joinVisible {
		sb.WriteString(p.styles.Label.Render("Nickname: "))
		sb.WriteString(p.nickname.View())
	} else {
		sb.WriteString(p.styles.Label.Render("Message: "))
		sb.WriteString(p.message.View())
	}
	sb.WriteString("\n")

	if p.alert != "" {
		sb.WriteString(p.styles.Alert.Render(p.alert))
		sb.WriteString(" ")
		sb.WriteString(p.styles.Help.Render("(press any key)"))
	} else if p.joinVisible {
		sb.WriteString(p.styles.Help.Render("enter: join • esc: quit"))
	} else {
		sb.WriteString(p.styles.Help.Render("enter: send • pgup/pgdn: scroll • esc: quit"))
	}
	return sb.String()
}
