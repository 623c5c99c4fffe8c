package session

import (
	"context"
	"fmt"
	"net/url"
)

// Path is the chat endpoint path on the server.
const Path = "/ws/anon-chat"

// EventKind identifies a socket lifecycle event.
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one notification from a Socket.
type Event struct {
	Kind EventKind
	// Source is the socket that emitted the event.
	Source Socket
	// Data holds the frame payload for EventMessage.
	Data []byte
	// Err is set for EventError, and for EventClose when the close was abnormal.
	Err error
}

// ReadyState mirrors the lifecycle of a message socket.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Socket is a message-oriented bidirectional connection.
//
// Events are delivered in order on the channel returned by Events: EventOpen,
// any number of EventMessage, optionally EventError, then exactly one
// EventClose, after which the channel is closed.
type Socket interface {
	Send(data []byte) error
	ReadyState() ReadyState
	Events() <-chan Event
	Close() error
}

// Dialer opens sockets. Dial must not wait for the connection to be
// established; the outcome is reported through the socket's events.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Socket, error)
}

// Endpoint derives the chat socket URL from the origin of the page the
// client was loaded from: wss for secure origins, ws otherwise, same host.
func Endpoint(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}

	scheme := "ws"
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
	default:
		return "", fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	endpoint := url.URL{Scheme: scheme, Host: u.Host, Path: Path}
	return endpoint.String(), nil
}
