package transport_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonchat/client/session"
	"anonchat/client/transport"
	"anonchat/render"
	"anonchat/server/handler"
	"anonchat/server/room"
)

type page struct {
	joinVisible bool
	cleared     int
	rows        []render.Row
	alerts      []string
}

func (p *page) ShowJoinForm()            { p.joinVisible = true }
func (p *page) ShowMessageForm()         { p.joinVisible = false }
func (p *page) ClearMessageInput()       { p.cleared++ }
func (p *page) AppendRow(row render.Row) { p.rows = append(p.rows, row) }
func (p *page) Notify(text string)       { p.alerts = append(p.alerts, text) }

func chatServer(t *testing.T) (*httptest.Server, context.CancelFunc, *room.Room) {
	t.Helper()
	chat := room.NewRoom(room.Options{HistoryLimit: 100, ReplayLimit: 20, Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	go chat.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc(session.Path, handler.HandleWebSocket(chat, handler.ChatOptions{Logger: zerolog.Nop()}))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		<-chat.Done()
		srv.Close()
	})
	return srv, cancel, chat
}

// pump feeds socket events to c until done reports true.
func pump(t *testing.T, c *session.Client, done func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !done() {
		events := c.Events()
		require.NotNil(t, events, "no connection")
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event channel closed")
			c.Handle(ev)
		case <-deadline:
			t.Fatal("timed out pumping events")
		}
	}
}

func texts(rows []render.Row) []string {
	var out []string
	for _, row := range rows {
		out = append(out, row.Spans[len(row.Spans)-1].Text)
	}
	return out
}

func TestClientAgainstServer(t *testing.T) {
	srv, stop, _ := chatServer(t)

	p := &page{joinVisible: true}
	c, err := session.New(session.Config{
		Origin:   srv.URL,
		Dialer:   transport.NewDialer(zerolog.Nop()),
		View:     p,
		Notifier: p,
		Logger:   zerolog.Nop(),
		Location: time.UTC,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Endpoint(), "ws://"))

	require.NoError(t, c.Connect(context.Background(), " Alice "))
	pump(t, c, func() bool { return len(p.rows) == 1 })
	assert.Equal(t, session.StateConnected, c.State())
	assert.False(t, p.joinVisible)
	assert.Equal(t, []string{"Alice joined the chat"}, texts(p.rows))
	assert.False(t, p.rows[0].IsChat())

	require.True(t, c.Send("  hi  "))
	pump(t, c, func() bool { return len(p.rows) == 2 })
	chat := p.rows[1]
	require.True(t, chat.IsChat())
	assert.Equal(t, "Alice:", chat.Spans[1].Text)
	assert.Equal(t, "hi", chat.Spans[3].Text)
	assert.Equal(t, 1, p.cleared)

	// Markup comes back as literal text.
	require.True(t, c.Send("<b>bold</b>"))
	pump(t, c, func() bool { return len(p.rows) == 3 })
	assert.Equal(t, "<b>bold</b>", p.rows[2].Spans[3].Text)

	stop()
	pump(t, c, func() bool { return c.State() == session.StateDisconnected })
	assert.True(t, p.joinVisible)
	assert.Contains(t, p.alerts, session.AlertConnectionClosed)
	assert.Empty(t, c.Nickname())
}

func TestServerRejectsNickname(t *testing.T) {
	srv, _, chat := chatServer(t)

	p := &page{joinVisible: true}
	c, err := session.New(session.Config{
		Origin:   srv.URL,
		Dialer:   transport.NewDialer(zerolog.Nop()),
		View:     p,
		Notifier: p,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background(), strings.Repeat("n", 40)))
	pump(t, c, func() bool { return c.State() == session.StateDisconnected })

	assert.True(t, p.joinVisible)
	assert.Empty(t, p.rows)
	assert.Equal(t, session.AlertConnectionClosed, p.alerts[len(p.alerts)-1])
	assert.Zero(t, chat.Count())
}
