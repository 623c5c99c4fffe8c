// Package session implements the chat client: joining the room, sending
// text, and turning socket events into view updates.
//
// A Client is not safe for concurrent use. All of its methods, including
// Handle, must be called from the single event loop that owns the view.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"anonchat/model"
	"anonchat/render"
)

// User-facing alert texts.
const (
	AlertNicknameRequired = "Please enter a nickname"
	AlertConnectFailed    = "Could not connect to the chat"
	AlertConnectionClosed = "Connection closed"
	AlertConnectionError  = "Connection error"
)

var (
	ErrEmptyNickname    = errors.New("nickname is empty")
	ErrAlreadyConnected = errors.New("already connected")
)

// View is the part of the page the client drives.
type View interface {
	// ShowJoinForm shows the nickname form and hides the message form.
	ShowJoinForm()
	// ShowMessageForm shows the message form and hides the nickname form.
	ShowMessageForm()
	ClearMessageInput()
	// AppendRow adds a row to the message list and scrolls to it.
	AppendRow(row render.Row)
}

// Notifier raises an interactive alert.
type Notifier interface {
	Notify(text string)
}

// Recorder receives per-frame accounting. metrics.Collector implements it.
type Recorder interface {
	RecordConnection()
	RecordSent(bytes int)
	RecordReceived(bytes int)
	RecordDropped(bytes int)
	RecordClose()
}

// State is the visible connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Config wires a Client to its collaborators.
type Config struct {
	// Origin is the page origin, e.g. "https://chat.example.org".
	Origin   string
	Dialer   Dialer
	View     View
	Notifier Notifier
	Logger   zerolog.Logger
	// Recorder is optional.
	Recorder Recorder
	// Location for timestamps; nil means time.Local.
	Location *time.Location
}

// Client owns the single chat connection of a page.
type Client struct {
	endpoint string
	dialer   Dialer
	view     View
	notifier Notifier
	log      zerolog.Logger
	rec      Recorder
	loc      *time.Location

	nickname string
	conn     Socket
	state    State
}

func New(cfg Config) (*Client, error) {
	endpoint, err := Endpoint(cfg.Origin)
	if err != nil {
		return nil, err
	}
	if cfg.Dialer == nil || cfg.View == nil || cfg.Notifier == nil {
		return nil, errors.New("session: dialer, view and notifier are required")
	}

	rec := cfg.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Client{
		endpoint: endpoint,
		dialer:   cfg.Dialer,
		view:     cfg.View,
		notifier: cfg.Notifier,
		log:      cfg.Logger.With().Str("component", "session").Logger(),
		rec:      rec,
		loc:      cfg.Location,
	}, nil
}

func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) State() State { return c.state }

func (c *Client) Nickname() string { return c.nickname }

// Events returns the event channel of the current connection, or nil.
func (c *Client) Events() <-chan Event {
	if c.conn == nil {
		return nil
	}
	return c.conn.Events()
}

// Connect starts joining the room as nickname. The handshake is sent and the
// view switched once the socket reports EventOpen.
func (c *Client) Connect(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		c.notifier.Notify(AlertNicknameRequired)
		return ErrEmptyNickname
	}
	if c.conn != nil {
		return ErrAlreadyConnected
	}

	sock, err := c.dialer.Dial(ctx, c.endpoint)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", c.endpoint).Msg("connect failed")
		c.notifier.Notify(AlertConnectFailed)
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}

	c.nickname = nickname
	c.conn = sock
	c.state = StateConnecting
	c.rec.RecordConnection()
	c.log.Info().Str("endpoint", c.endpoint).Str("nickname", nickname).Msg("connecting")
	return nil
}

// Send transmits text as a chat frame. It reports whether anything was sent.
func (c *Client) Send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || c.conn == nil || c.conn.ReadyState() != Open {
		return false
	}

	data, err := json.Marshal(model.Chat{Text: text})
	if err != nil {
		c.log.Error().Err(err).Msg("encode chat frame")
		return false
	}
	if err := c.conn.Send(data); err != nil {
		c.log.Error().Err(err).Msg("send failed")
		return false
	}
	c.rec.RecordSent(len(data))
	c.view.ClearMessageInput()
	return true
}

// Handle applies one socket event. Events from sockets other than the
// current connection are ignored.
func (c *Client) Handle(ev Event) {
	if c.conn == nil || (ev.Source != nil && ev.Source != c.conn) {
		c.log.Debug().Stringer("event", ev.Kind).Msg("event from stale socket ignored")
		return
	}

	switch ev.Kind {
	case EventOpen:
		c.onOpen()
	case EventMessage:
		c.onMessage(ev.Data)
	case EventError:
		c.log.Error().Err(ev.Err).Msg("socket error")
		c.notifier.Notify(AlertConnectionError)
	case EventClose:
		c.onClose(ev.Err)
	}
}

// Render appends msg to the message list.
func (c *Client) Render(msg model.Inbound) {
	c.view.AppendRow(render.Build(msg, c.loc))
}

// Close drops the current connection, if any, without touching the view.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) onOpen() {
	data, err := json.Marshal(model.Handshake{Nickname: c.nickname})
	if err != nil {
		c.log.Error().Err(err).Msg("encode handshake")
		return
	}
	if err := c.conn.Send(data); err != nil {
		c.log.Error().Err(err).Msg("send handshake")
		c.notifier.Notify(AlertConnectionError)
		// The close event returns the view to the join form.
		if cerr := c.conn.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("close after failed handshake")
		}
		return
	}
	c.rec.RecordSent(len(data))

	c.state = StateConnected
	c.view.ShowMessageForm()
	c.log.Info().Str("nickname", c.nickname).Msg("joined")
}

func (c *Client) onMessage(data []byte) {
	var msg *model.Inbound
	err := json.Unmarshal(data, &msg)
	if err == nil && msg == nil {
		err = errors.New("null frame")
	}
	if err != nil {
		c.rec.RecordDropped(len(data))
		c.log.Warn().Err(err).Int("bytes", len(data)).Msg("bad message dropped")
		return
	}
	if msg.Timestamp.Malformed() {
		c.log.Warn().Int("bytes", len(data)).Msg("unreadable timestamp ignored")
	}
	c.rec.RecordReceived(len(data))
	c.Render(*msg)
}

func (c *Client) onClose(err error) {
	ev := c.log.Info()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Str("nickname", c.nickname).Msg("connection closed")

	c.conn = nil
	c.nickname = ""
	c.state = StateDisconnected
	c.rec.RecordClose()
	c.view.ShowJoinForm()
	c.notifier.Notify(AlertConnectionClosed)
}

type nopRecorder struct{}

func (nopRecorder) RecordConnection()  {}
func (nopRecorder) RecordSent(int)     {}
func (nopRecorder) RecordReceived(int) {}
func (nopRecorder) RecordDropped(int)  {}
func (nopRecorder) RecordClose()       {}
