package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed templates/chat.html
var templates embed.FS

var chatPage = template.Must(template.ParseFS(templates, "templates/chat.html"))

type pageData struct {
	Title         string
	StaticPrefix  string
	NicknameLimit int
	MessageLimit  int
}

// HandleChatPage serves the host page for the browser client. The page
// carries the element ids the client binds to.
func HandleChatPage(staticPrefix string, logger zerolog.Logger) http.HandlerFunc {
	data := pageData{
		Title:         "Anonymous chat",
		StaticPrefix:  staticPrefix,
		NicknameLimit: maxNicknameLen,
		MessageLimit:  maxMessageLen,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := chatPage.Execute(w, data); err != nil {
			logger.Error().Err(err).Msg("render chat page")
		}
	}
}
