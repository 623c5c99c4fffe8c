package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/client/session"
	"anonchat/model"
	"anonchat/render"
)

type stubSocket struct {
	state  session.ReadyState
	sent   []string
	events chan session.Event
}

func (s *stubSocket) Send(data []byte) error {
	s.sent = append(s.sent, string(data))
	return nil
}

func (s *stubSocket) ReadyState() session.ReadyState { return s.state }

func (s *stubSocket) Events() <-chan session.Event { return s.events }

func (s *stubSocket) Close() error {
	s.state = session.Closed
	return nil
}

// push queues an event as the transport would.
func (s *stubSocket) push(kind session.EventKind, data string) {
	if kind == session.EventOpen {
		s.state = session.Open
	}
	s.events <- session.Event{Kind: kind, Source: s, Data: []byte(data)}
}

type stubDialer struct{ sockets []*stubSocket }

func (d *stubDialer) Dial(context.Context, string) (session.Socket, error) {
	s := &stubSocket{events: make(chan session.Event, 16)}
	d.sockets = append(d.sockets, s)
	return s, nil
}

func newTestModel(t *testing.T) (*Model, *Page, *stubDialer) {
	t.Helper()
	page := NewPage(DefaultStyles())
	dialer := &stubDialer{}
	client, err := session.New(session.Config{
		Origin:   "http://localhost:8080",
		Dialer:   dialer,
		View:     page,
		Notifier: page,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	m := New(context.Background(), page, client)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, page, dialer
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func enter(m *Model) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

// pump runs a pending wait command once and feeds the result back.
func pump(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	_, ok := msg.(socketEventMsg)
	require.True(t, ok, "expected socket event, got %T", msg)
	_, next := m.Update(msg)
	return next
}

func TestJoinAndChat(t *testing.T) {
	m, page, dialer := newTestModel(t)

	typeText(m, "Alice")
	wait := enter(m)
	require.Len(t, dialer.sockets, 1)
	sock := dialer.sockets[0]
	assert.True(t, page.JoinVisible())
	assert.Contains(t, m.View(), "connecting")

	sock.push(session.EventOpen, "")
	wait = pump(t, m, wait)
	assert.Equal(t, []string{`{"nickname":"Alice"}`}, sock.sent)
	assert.False(t, page.JoinVisible())
	assert.Contains(t, m.View(), "Message:")

	typeText(m, "hi")
	assert.Nil(t, enter(m))
	assert.Equal(t, `{"text":"hi"}`, sock.sent[1])
	assert.Empty(t, page.message.Value(), "input cleared after send")

	sock.push(session.EventMessage, `{"type":"message","nickname":"Alice","text":"hi"}`)
	wait = pump(t, m, wait)
	assert.Equal(t, []string{"Alice: hi"}, page.Lines())
	assert.Contains(t, m.View(), "Alice:")

	sock.push(session.EventMessage, "not-json")
	wait = pump(t, m, wait)
	assert.Len(t, page.Lines(), 1)
	assert.Empty(t, page.Alert())

	sock.push(session.EventClose, "")
	pump(t, m, wait)
	assert.True(t, page.JoinVisible())
	assert.Equal(t, session.AlertConnectionClosed, page.Alert())
	assert.Contains(t, m.View(), session.AlertConnectionClosed)

	// Any key dismisses the alert.
	enter(m)
	assert.Empty(t, page.Alert())
}

func TestEnterWithBlankNicknameAlerts(t *testing.T) {
	m, page, dialer := newTestModel(t)

	typeText(m, "   ")
	assert.Nil(t, enter(m))

	assert.Empty(t, dialer.sockets)
	assert.Equal(t, session.AlertNicknameRequired, page.Alert())
}

func TestEnterWithBlankMessageDoesNothing(t *testing.T) {
	m, _, dialer := newTestModel(t)
	typeText(m, "Alice")
	wait := enter(m)
	sock := dialer.sockets[0]
	sock.push(session.EventOpen, "")
	pump(t, m, wait)

	typeText(m, "   ")
	enter(m)
	assert.Len(t, sock.sent, 1)
}

func TestQuitClosesConnection(t *testing.T) {
	m, _, dialer := newTestModel(t)
	typeText(m, "Alice")
	enter(m)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, session.Closed, dialer.sockets[0].state)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "red text", sanitize("\x1b[31mred\x1b[0m text"))
	assert.Equal(t, "ab", sanitize("a\x07\rb"))
	assert.Equal(t, "title", sanitize("\x1b]0;evil\x07title"))
	assert.Equal(t, "a b", sanitize("a\tb"))

	line := DefaultStyles().Line(render.Row{Kind: "message", Spans: []render.Span{
		{Class: render.ClassNickname, Text: "\x1b[2JEve:", Strong: true},
		{Class: render.ClassText, Text: " <script>alert(1)</script>"},
	}})
	assert.NotContains(t, line, "\x1b[2J")
	assert.True(t, strings.Contains(sanitize(line), "Eve: <script>alert(1)</script>"))
}

func TestMessageListFollowsNewestRow(t *testing.T) {
	page := NewPage(DefaultStyles())
	page.SetSize(100, 10)

	for i := range 20 {
		page.AppendRow(render.Build(model.Inbound{
			Type:     model.TypeMessage,
			Nickname: "Alice",
			Text:     fmt.Sprintf("line %02d", i),
		}, time.UTC))
		require.True(t, page.list.AtBottom(), "after row %d", i)
	}

	view := page.list.View()
	assert.Contains(t, view, "line 19")
	assert.NotContains(t, view, "line 00")
}
