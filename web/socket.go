//go:build js && wasm

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/rs/zerolog"

	"anonchat/client/session"
)

const eventBuffer = 64

var (
	errSocket  = errors.New("websocket error")
	errNotOpen = errors.New("socket is not open")
)

// browserDialer opens sockets with the page's WebSocket constructor.
type browserDialer struct {
	log zerolog.Logger
}

func (d browserDialer) Dial(_ context.Context, endpoint string) (sock session.Socket, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("new WebSocket: %v", r)
		}
	}()

	ws := js.Global().Get("WebSocket").New(endpoint)
	ws.Set("binaryType", "arraybuffer")

	s := &browserSocket{
		ws:     ws,
		events: make(chan session.Event, eventBuffer),
		log:    d.log.With().Str("endpoint", endpoint).Logger(),
	}
	s.on("open", func(js.Value) {
		s.emit(session.Event{Kind: session.EventOpen})
	})
	s.on("message", func(e js.Value) {
		s.emit(session.Event{Kind: session.EventMessage, Data: frameData(e.Get("data"))})
	})
	s.on("error", func(js.Value) {
		s.emit(session.Event{Kind: session.EventError, Err: errSocket})
	})
	s.on("close", func(e js.Value) {
		var err error
		code := e.Get("code").Int()
		if !e.Get("wasClean").Bool() || (code != 1000 && code != 1001) {
			err = fmt.Errorf("closed with code %d: %s", code, e.Get("reason").String())
		}
		s.finish(session.Event{Kind: session.EventClose, Err: err})
	})
	return s, nil
}

// browserSocket adapts a JS WebSocket to session.Socket. Its callbacks run on
// the JS event loop and only hand events to the Go side.
type browserSocket struct {
	ws     js.Value
	events chan session.Event
	log    zerolog.Logger

	mu    sync.Mutex
	funcs []js.Func
	done  bool
}

func (s *browserSocket) Events() <-chan session.Event { return s.events }

// ReadyState maps the WebSocket readyState constants, which share our order.
func (s *browserSocket) ReadyState() session.ReadyState {
	return session.ReadyState(s.ws.Get("readyState").Int())
}

func (s *browserSocket) Send(data []byte) (err error) {
	if s.ReadyState() != session.Open {
		return errNotOpen
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send: %v", r)
		}
	}()
	s.ws.Call("send", string(data))
	return nil
}

func (s *browserSocket) Close() error {
	switch s.ReadyState() {
	case session.Closing, session.Closed:
		return nil
	}
	s.ws.Call("close", 1000)
	return nil
}

func (s *browserSocket) on(event string, fn func(e js.Value)) {
	f := js.FuncOf(func(this js.Value, args []js.Value) any {
		var e js.Value
		if len(args) > 0 {
			e = args[0]
		}
		fn(e)
		return nil
	})
	s.mu.Lock()
	s.funcs = append(s.funcs, f)
	s.mu.Unlock()
	s.ws.Call("addEventListener", event, f)
}

func (s *browserSocket) emit(ev session.Event) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done {
		return
	}
	ev.Source = s
	select {
	case s.events <- ev:
	default:
		// The JS event loop must not block on a stalled reader.
		s.log.Warn().Stringer("event", ev.Kind).Msg("event queue full, dropping")
	}
}

// finish releases the callbacks and queues the final close event behind
// whatever the reader has not consumed yet.
func (s *browserSocket) finish(ev session.Event) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	for _, f := range s.funcs {
		f.Release()
	}
	s.funcs = nil
	s.mu.Unlock()

	ev.Source = s
	go func() {
		s.events <- ev
		close(s.events)
	}()
}

func frameData(v js.Value) []byte {
	if v.Type() == js.TypeString {
		return []byte(v.String())
	}
	buf := js.Global().Get("Uint8Array").New(v)
	data := make([]byte, buf.Length())
	js.CopyBytesToGo(data, buf)
	return data
}
