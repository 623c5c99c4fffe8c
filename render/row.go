// Package render turns inbound chat frames into rows of plain text spans.
//
// Span text is never interpreted as markup. Row.Node builds an HTML element
// tree whose only content is text nodes, so whatever the sender typed is
// escaped when rendered and shown literally when mounted into a DOM.
package render

import (
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"anonchat/model"
)

// DefaultNickname is shown for chat messages that arrive without a sender.
const DefaultNickname = "Guest"

// Span classes, matching the stylesheet served with the chat page.
const (
	ClassTimestamp  = "timestamp"
	ClassNickname   = "nickname"
	ClassText       = "text"
	ClassSystemText = "system-text"
)

// Span is one styled run of literal text.
type Span struct {
	Class  string
	Text   string
	Strong bool
}

// Row is one rendered line of the message list.
type Row struct {
	// Kind is the frame type, "message" for chat and anything else for notices.
	Kind  string
	Spans []Span
}

// Build renders msg. Timestamps are shown in loc; nil means time.Local.
func Build(msg model.Inbound, loc *time.Location) Row {
	if loc == nil {
		loc = time.Local
	}

	row := Row{Kind: msg.Type}
	if !msg.Timestamp.IsZero() {
		row.Spans = append(row.Spans, Span{
			Class: ClassTimestamp,
			Text:  "[" + msg.Timestamp.In(loc).Format(time.TimeOnly) + "] ",
		})
	}

	if msg.IsChat() {
		nick := msg.Nickname
		if nick == "" {
			nick = DefaultNickname
		}
		row.Spans = append(row.Spans,
			Span{Class: ClassNickname, Text: nick + ":", Strong: true},
			Span{Class: ClassNickname, Text: " "},
			Span{Class: ClassText, Text: msg.Text},
		)
		return row
	}

	row.Spans = append(row.Spans, Span{Class: ClassSystemText, Text: msg.Text})
	return row
}

// IsChat reports whether the row is a user message.
func (r Row) IsChat() bool {
	return r.Kind == model.TypeMessage
}

// Class is the CSS class list of the row container.
func (r Row) Class() string {
	if r.Kind == "" {
		return "message"
	}
	return "message " + r.Kind
}

// String returns the row as it reads on screen.
func (r Row) String() string {
	var sb strings.Builder
	for _, s := range r.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Node returns the row as a detached <div> tree. Nickname spans are grouped
// under one <span class="nickname"> with the name in <strong>.
func (r Row) Node() *html.Node {
	div := element(atom.Div, r.Class())

	var nick *html.Node
	for _, s := range r.Spans {
		if s.Class == ClassNickname {
			if nick == nil {
				nick = element(atom.Span, ClassNickname)
				div.AppendChild(nick)
			}
			appendText(nick, s)
			continue
		}
		nick = nil
		span := element(atom.Span, s.Class)
		appendText(span, s)
		div.AppendChild(span)
	}
	return div
}

func appendText(parent *html.Node, s Span) {
	text := &html.Node{Type: html.TextNode, Data: s.Text}
	if !s.Strong {
		parent.AppendChild(text)
		return
	}
	strong := element(atom.Strong, "")
	strong.AppendChild(text)
	parent.AppendChild(strong)
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return n
}
