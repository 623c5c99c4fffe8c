package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"anonchat/model"
)

const sendBuffer = 64

// Client is one joined participant. The room owns Send: it is closed when the
// client leaves, is dropped for falling behind, or the room stops.
type Client struct {
	ID       string
	Nickname string
	Send     chan []byte
}

func NewClient(id, nickname string) *Client {
	return &Client{ID: id, Nickname: nickname, Send: make(chan []byte, sendBuffer)}
}

type reply struct {
	to  *Client
	msg model.Inbound
}

type Options struct {
	// HistoryLimit is how many frames are kept in memory.
	HistoryLimit int
	// ReplayLimit is how many of them a newcomer receives.
	ReplayLimit int
	Logger      zerolog.Logger
}

// Room is the single chat room. Run owns membership and history; everything
// else talks to it over channels.
type Room struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan model.Inbound
	direct     chan reply
	done       chan struct{}

	clients      map[*Client]bool
	history      []model.Inbound
	historyLimit int
	replayLimit  int
	now          func() time.Time
	log          zerolog.Logger

	mu    sync.RWMutex
	count int
}

func NewRoom(opts Options) *Room {
	return &Room{
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan model.Inbound),
		direct:       make(chan reply),
		done:         make(chan struct{}),
		clients:      make(map[*Client]bool),
		historyLimit: max(opts.HistoryLimit, 0),
		replayLimit:  max(opts.ReplayLimit, 0),
		now:          time.Now,
		log:          opts.Logger.With().Str("component", "room").Logger(),
	}
}

// Join adds c to the room. It reports false if the room has stopped.
func (r *Room) Join(c *Client) bool {
	select {
	case r.register <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) Leave(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

// Publish sends a chat message from c to everyone.
func (r *Room) Publish(c *Client, text string) {
	msg := model.Inbound{Type: model.TypeMessage, Nickname: c.Nickname, Text: text}
	select {
	case r.broadcast <- msg:
	case <-r.done:
	}
}

// Reply sends a notice to c alone.
func (r *Room) Reply(c *Client, kind, text string) {
	select {
	case r.direct <- reply{to: c, msg: model.Inbound{Type: kind, Text: text}}:
	case <-r.done:
	}
}

// Count returns the number of joined clients.
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			for c := range r.clients {
				r.remove(c)
			}
			return

		case c := <-r.register:
			r.clients[c] = true
			r.setCount()
			for _, msg := range r.replay() {
				r.deliver(c, msg)
			}
			r.log.Info().Str("conn", c.ID).Str("nickname", c.Nickname).Int("active", len(r.clients)).Msg("user joined")
			r.publish(model.Inbound{Type: model.TypeSystem, Text: fmt.Sprintf("%s joined the chat", c.Nickname)})

		case c := <-r.unregister:
			if _, ok := r.clients[c]; !ok {
				continue
			}
			r.remove(c)
			r.log.Info().Str("conn", c.ID).Str("nickname", c.Nickname).Int("active", len(r.clients)).Msg("user left")
			r.publish(model.Inbound{Type: model.TypeSystem, Text: fmt.Sprintf("%s left the chat", c.Nickname)})

		case msg := <-r.broadcast:
			r.publish(msg)

		case rep := <-r.direct:
			if r.clients[rep.to] {
				rep.msg.Timestamp = model.At(r.now())
				r.deliver(rep.to, rep.msg)
			}
		}
	}
}

// publish stamps msg, records it and fans it out to every client.
func (r *Room) publish(msg model.Inbound) {
	msg.Timestamp = model.At(r.now())
	r.record(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("encode frame")
		return
	}
	for c := range r.clients {
		r.send(c, data)
	}
}

func (r *Room) deliver(c *Client, msg model.Inbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("encode frame")
		return
	}
	r.send(c, data)
}

// send queues data without blocking. A client whose buffer is full is
// dropped; its write pump sees Send closed and ends the connection.
func (r *Room) send(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		r.log.Warn().Str("conn", c.ID).Str("nickname", c.Nickname).Msg("client too slow, dropping")
		r.remove(c)
	}
}

func (r *Room) remove(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	close(c.Send)
	r.setCount()
}

func (r *Room) record(msg model.Inbound) {
	if r.historyLimit == 0 {
		return
	}
	r.history = append(r.history, msg)
	if len(r.history) > r.historyLimit {
		r.history = append(r.history[:0:0], r.history[len(r.history)-r.historyLimit:]...)
	}
}

func (r *Room) replay() []model.Inbound {
	n := min(r.replayLimit, len(r.history))
	return r.history[len(r.history)-n:]
}

func (r *Room) setCount() {
	r.mu.Lock()
	r.count = len(r.clients)
	r.mu.Unlock()
}
