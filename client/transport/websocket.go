// Package transport connects the chat session to a server over
// gorilla/websocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"anonchat/client/session"
)

const (
	writeWait        = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	closeWait        = time.Second
	eventBuffer      = 64
)

var ErrNotOpen = errors.New("socket is not open")

type Dialer struct {
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

func NewDialer(logger zerolog.Logger) *Dialer {
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = handshakeTimeout
	return &Dialer{
		Dialer: &d,
		Logger: logger.With().Str("component", "transport").Logger(),
	}
}

// Dial validates endpoint and starts connecting in the background. The
// returned socket reports the outcome through its events.
func (d *Dialer) Dial(ctx context.Context, endpoint string) (session.Socket, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint %q: scheme must be ws or wss", endpoint)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Socket{
		endpoint: u.String(),
		events:   make(chan session.Event, eventBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
		log:      d.Logger.With().Str("endpoint", u.String()).Logger(),
	}
	go s.run(ctx, d.Dialer)
	return s, nil
}

// Socket is a session.Socket backed by a gorilla connection. One goroutine
// dials and then reads; writes are serialized by writeMu.
type Socket struct {
	endpoint string
	events   chan session.Event
	done     chan struct{}
	cancel   context.CancelFunc
	log      zerolog.Logger

	mu    sync.Mutex
	state session.ReadyState
	conn  *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *Socket) Events() <-chan session.Event { return s.events }

func (s *Socket) ReadyState() session.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) Send(data []byte) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if state != session.Open {
		return ErrNotOpen
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close cancels a pending dial, or performs a normal closure of an open
// connection. Events not yet consumed after Close may be discarded.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		if s.state != session.Closed {
			s.state = session.Closing
		}
		s.mu.Unlock()

		close(s.done)
		s.cancel()
		if conn == nil {
			return
		}

		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		s.writeMu.Unlock()
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}

func (s *Socket) run(ctx context.Context, dialer *websocket.Dialer) {
	defer close(s.events)

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		s.setState(session.Closed)
		s.log.Debug().Err(err).Msg("dial failed")
		s.emit(session.Event{Kind: session.EventError, Err: err})
		s.emit(session.Event{Kind: session.EventClose, Err: err})
		return
	}

	s.mu.Lock()
	if s.state == session.Closing {
		s.state = session.Closed
		s.mu.Unlock()
		conn.Close()
		s.emit(session.Event{Kind: session.EventClose})
		return
	}
	s.conn = conn
	s.state = session.Open
	s.mu.Unlock()

	s.emit(session.Event{Kind: session.EventOpen})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.state = session.Closed
			s.conn = nil
			s.mu.Unlock()
			conn.Close()

			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				s.log.Debug().Int("code", ce.Code).Str("reason", ce.Text).Msg("closed by peer")
				if ce.Code != websocket.CloseNormalClosure && ce.Code != websocket.CloseGoingAway {
					err = ce
				} else {
					err = nil
				}
			case s.closing():
				err = nil
			default:
				s.emit(session.Event{Kind: session.EventError, Err: err})
			}
			s.emit(session.Event{Kind: session.EventClose, Err: err})
			return
		}
		s.emit(session.Event{Kind: session.EventMessage, Data: data})
	}
}

func (s *Socket) emit(ev session.Event) {
	ev.Source = s
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Socket) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Socket) setState(st session.ReadyState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
