package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"anonchat/model"
	"anonchat/server/room"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	maxFrameSize     = 8 << 10
	maxNicknameLen   = 32
	maxMessageLen    = 500
	defaultHandshake = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatOptions configures the chat socket endpoint.
type ChatOptions struct {
	// HandshakeTimeout bounds the wait for the nickname frame.
	HandshakeTimeout time.Duration
	Logger           zerolog.Logger
}

func validateNickname(nickname string) string {
	if nickname == "" {
		return "Nickname required"
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		return "Nickname too long"
	}
	return ""
}

func validateText(text string) string {
	if n := utf8.RuneCountInString(text); n < 1 || n > maxMessageLen {
		return "message must be 1-500 characters"
	}
	return ""
}

// HandleWebSocket serves the anonymous chat socket. The first frame must be
// {"nickname": ...}; every later frame is {"text": ...}.
func HandleWebSocket(chat *room.Room, opts ChatOptions) http.HandlerFunc {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshake
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			opts.Logger.Warn().Err(err).Msg("upgrade failed")
			return
		}
		connID := uuid.NewString()
		log := opts.Logger.With().Str("conn", connID).Str("remote", r.RemoteAddr).Logger()

		conn.SetReadLimit(maxFrameSize)
		conn.SetReadDeadline(time.Now().Add(timeout))
		_, p, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("no handshake")
			conn.Close()
			return
		}

		var hs model.Handshake
		if err := json.Unmarshal(p, &hs); err != nil {
			closeWith(conn, websocket.CloseUnsupportedData, "Invalid handshake")
			return
		}
		nickname := strings.TrimSpace(hs.Nickname)
		if reason := validateNickname(nickname); reason != "" {
			log.Info().Str("reason", reason).Msg("handshake rejected")
			closeWith(conn, websocket.ClosePolicyViolation, reason)
			return
		}

		client := room.NewClient(connID, nickname)
		if !chat.Join(client) {
			closeWith(conn, websocket.CloseGoingAway, "Server shutting down")
			return
		}

		go writePump(conn, client)
		readLoop(conn, chat, client, log)
		chat.Leave(client)
	}
}

func readLoop(conn *websocket.Conn, chat *room.Room, client *room.Client, log zerolog.Logger) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("read error")
			}
			return
		}

		var msg model.Chat
		if err := json.Unmarshal(p, &msg); err != nil {
			chat.Reply(client, model.TypeError, "invalid JSON format")
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		if reason := validateText(text); reason != "" {
			chat.Reply(client, model.TypeError, reason)
			continue
		}

		chat.Publish(client, text)
		log.Debug().Str("nickname", client.Nickname).Int("len", len(text)).Msg("message")
	}
}

// writePump is the only writer on conn once the client has joined.
func writePump(conn *websocket.Conn, client *room.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
}
