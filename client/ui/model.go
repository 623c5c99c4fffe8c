// Package ui is the terminal front end of the chat client.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"anonchat/client/session"
)

type keyMap struct {
	Submit key.Binding
	Scroll key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "join / send")),
		Scroll: key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// socketEventMsg carries one event read from the connection's channel.
type socketEventMsg struct {
	ch <-chan session.Event
	ev session.Event
	ok bool
}

// Model is the bubbletea program model. Every session call happens inside
// Update, which bubbletea runs on a single goroutine.
type Model struct {
	ctx    context.Context
	page   *Page
	client *session.Client
	keys   keyMap
}

// New returns the program model. client must have been created with page as
// its View and Notifier.
func New(ctx context.Context, page *Page, client *session.Client) *Model {
	return &Model{
		ctx:    ctx,
		page:   page,
		client: client,
		keys:   defaultKeys(),
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.page.SetSize(msg.Width, msg.Height)
		return m, nil

	case socketEventMsg:
		if !msg.ok {
			return m, nil
		}
		m.client.Handle(msg.ev)
		return m, waitForEvent(msg.ch)

	case tea.KeyMsg:
		return m, m.bindInput(msg)
	}

	return m, m.updateInputs(msg)
}

func (m *Model) View() string {
	return m.page.view(m.client.State().String())
}

// bindInput maps keys to session actions: Enter joins from the nickname
// field and sends from the message field.
func (m *Model) bindInput(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		if err := m.client.Close(); err != nil {
			m.page.Notify(err.Error())
		}
		return tea.Quit
	}

	if m.page.Alert() != "" {
		m.page.DismissAlert()
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		if m.page.JoinVisible() {
			return m.connect()
		}
		m.client.Send(m.page.message.Value())
		return nil
	case key.Matches(msg, m.keys.Scroll):
		var cmd tea.Cmd
		m.page.list, cmd = m.page.list.Update(msg)
		return cmd
	}

	return m.updateInputs(msg)
}

func (m *Model) connect() tea.Cmd {
	if err := m.client.Connect(m.ctx, m.page.nickname.Value()); err != nil {
		return nil
	}
	return waitForEvent(m.client.Events())
}

func (m *Model) updateInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.page.joinVisible {
		m.page.nickname, cmd = m.page.nickname.Update(msg)
	} else {
		m.page.message, cmd = m.page.message.Update(msg)
	}
	return cmd
}

func waitForEvent(ch <-chan session.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		return socketEventMsg{ch: ch, ev: ev, ok: ok}
	}
}
