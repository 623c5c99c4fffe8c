//go:build js && wasm

// Command web is the browser build of the chat client. It is compiled to
// WebAssembly and loaded by the page the server serves at /chat.
package main

import (
	"context"
	"os"
	"syscall/js"
	"time"

	"github.com/rs/zerolog"

	"anonchat/client/session"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true, TimeFormat: time.TimeOnly}).
		With().Timestamp().Str("component", "web").Logger()

	doc := js.Global().Get("document")
	view, err := newDOMView(doc)
	if err != nil {
		log.Error().Err(err).Msg("chat page is missing elements")
		return
	}

	client, err := session.New(session.Config{
		Origin:   js.Global().Get("location").Get("origin").String(),
		Dialer:   browserDialer{log: log},
		View:     view,
		Notifier: alertNotifier{},
		Logger:   log,
	})
	if err != nil {
		log.Error().Err(err).Msg("create client")
		return
	}

	tasks := make(chan func(), 16)
	release := bindInput(doc, view, client, tasks)
	defer release()

	log.Info().Str("endpoint", client.Endpoint()).Msg("ready")
	for {
		select {
		case task := <-tasks:
			task()
		case ev, ok := <-client.Events():
			if ok {
				client.Handle(ev)
			}
		}
	}
}

// bindInput wires Enter in the inputs and the optional buttons. Handlers only
// queue work; the main loop runs it so the client stays single-threaded.
func bindInput(doc js.Value, view *domView, client *session.Client, tasks chan<- func()) (release func()) {
	var funcs []js.Func
	listen := func(el js.Value, event string, fn func(e js.Value)) {
		if el.IsNull() || el.IsUndefined() {
			return
		}
		f := js.FuncOf(func(this js.Value, args []js.Value) any {
			fn(args[0])
			return nil
		})
		funcs = append(funcs, f)
		el.Call("addEventListener", event, f)
	}
	queue := func(task func()) {
		select {
		case tasks <- task:
		default:
		}
	}

	join := func() {
		queue(func() { _ = client.Connect(context.Background(), view.Nickname()) })
	}
	send := func() {
		queue(func() { client.Send(view.Message()) })
	}
	onEnter := func(action func()) func(js.Value) {
		return func(e js.Value) {
			if e.Get("key").String() == "Enter" {
				action()
			}
		}
	}

	listen(view.nicknameInput, "keypress", onEnter(join))
	listen(view.messageInput, "keypress", onEnter(send))
	listen(doc.Call("getElementById", idJoinButton), "click", func(js.Value) { join() })
	listen(doc.Call("getElementById", idSendButton), "click", func(js.Value) { send() })

	return func() {
		for _, f := range funcs {
			f.Release()
		}
	}
}
