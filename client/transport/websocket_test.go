package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"anonchat/client/session"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// echoServer echoes text frames until it receives "bye", then closes with a
// policy violation.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "bye" {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bye")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + session.Path
}

func next(t *testing.T, sock session.Socket) session.Event {
	t.Helper()
	select {
	case ev, ok := <-sock.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return session.Event{}
	}
}

func drained(t *testing.T, sock session.Socket) {
	t.Helper()
	select {
	case _, ok := <-sock.Events():
		assert.False(t, ok, "expected closed event channel")
	case <-time.After(5 * time.Second):
		t.Fatal("event channel not closed")
	}
}

func TestSocketLifecycle(t *testing.T) {
	srv := echoServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sock, err := NewDialer(zerolog.Nop()).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	assert.Equal(t, session.Connecting, sock.ReadyState())
	assert.ErrorIs(t, sock.Send([]byte("early")), ErrNotOpen)

	ev := next(t, sock)
	require.Equal(t, session.EventOpen, ev.Kind)
	assert.Same(t, sock, ev.Source)
	assert.Equal(t, session.Open, sock.ReadyState())

	require.NoError(t, sock.Send([]byte(`{"nickname":"Alice"}`)))
	ev = next(t, sock)
	require.Equal(t, session.EventMessage, ev.Kind)
	assert.Equal(t, `{"nickname":"Alice"}`, string(ev.Data))

	require.NoError(t, sock.Send([]byte("bye")))
	ev = next(t, sock)
	require.Equal(t, session.EventClose, ev.Kind)
	var ce *websocket.CloseError
	require.ErrorAs(t, ev.Err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	drained(t, sock)

	assert.Equal(t, session.Closed, sock.ReadyState())
	assert.ErrorIs(t, sock.Send([]byte("late")), ErrNotOpen)
	assert.NoError(t, sock.Close())
}

func TestSocketDialFailure(t *testing.T) {
	srv := echoServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	endpoint := wsURL(srv)
	srv.Close()

	sock, err := NewDialer(zerolog.Nop()).Dial(context.Background(), endpoint)
	require.NoError(t, err)

	ev := next(t, sock)
	assert.Equal(t, session.EventError, ev.Kind)
	assert.Error(t, ev.Err)
	ev = next(t, sock)
	assert.Equal(t, session.EventClose, ev.Kind)
	drained(t, sock)
	assert.Equal(t, session.Closed, sock.ReadyState())
}

func TestSocketCloseByClient(t *testing.T) {
	srv := echoServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sock, err := NewDialer(zerolog.Nop()).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)
	require.Equal(t, session.EventOpen, next(t, sock).Kind)

	require.NoError(t, sock.Close())
	assert.NoError(t, sock.Close(), "close is idempotent")

	// Whatever is left, the channel must close.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sock.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after Close")
		}
	}
}

func TestDialRejectsBadEndpoint(t *testing.T) {
	d := NewDialer(zerolog.Nop())
	for _, endpoint := range []string{"http://localhost/ws", "::nope", ""} {
		_, err := d.Dial(context.Background(), endpoint)
		assert.Error(t, err, endpoint)
	}
}
