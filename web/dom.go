//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"golang.org/x/net/html"

	"anonchat/render"
)

// Element ids the chat page must provide.
const (
	idNicknameInput = "nickname-input"
	idMessageInput  = "message-input"
	idUsernameForm  = "username-form"
	idMessageForm   = "message-form"
	idChatMessages  = "chat-messages"
	idJoinButton    = "join-btn"
	idSendButton    = "send-btn"
)

// domView drives the chat page. Message rows are built with createElement
// and createTextNode only.
type domView struct {
	doc           js.Value
	nicknameInput js.Value
	messageInput  js.Value
	usernameForm  js.Value
	messageForm   js.Value
	messages      js.Value
}

func newDOMView(doc js.Value) (*domView, error) {
	v := &domView{doc: doc}
	for id, el := range map[string]*js.Value{
		idNicknameInput: &v.nicknameInput,
		idMessageInput:  &v.messageInput,
		idUsernameForm:  &v.usernameForm,
		idMessageForm:   &v.messageForm,
		idChatMessages:  &v.messages,
	} {
		*el = doc.Call("getElementById", id)
		if el.IsNull() {
			return nil, fmt.Errorf("element #%s not found", id)
		}
	}
	return v, nil
}

func (v *domView) ShowJoinForm() {
	v.usernameForm.Get("style").Set("display", "block")
	v.messageForm.Get("style").Set("display", "none")
}

func (v *domView) ShowMessageForm() {
	v.usernameForm.Get("style").Set("display", "none")
	v.messageForm.Get("style").Set("display", "block")
}

func (v *domView) ClearMessageInput() {
	v.messageInput.Set("value", "")
}

func (v *domView) AppendRow(row render.Row) {
	v.messages.Call("appendChild", v.mount(row.Node()))
	v.messages.Set("scrollTop", v.messages.Get("scrollHeight"))
}

func (v *domView) Nickname() string { return v.nicknameInput.Get("value").String() }

func (v *domView) Message() string { return v.messageInput.Get("value").String() }

// mount copies an element tree into the document.
func (v *domView) mount(n *html.Node) js.Value {
	if n.Type == html.TextNode {
		return v.doc.Call("createTextNode", n.Data)
	}
	el := v.doc.Call("createElement", n.Data)
	for _, a := range n.Attr {
		el.Call("setAttribute", a.Key, a.Val)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		el.Call("appendChild", v.mount(c))
	}
	return el
}

type alertNotifier struct{}

func (alertNotifier) Notify(text string) {
	js.Global().Call("alert", text)
}
