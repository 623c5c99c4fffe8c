package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Message type tags. Anything other than TypeMessage is a system notice.
const (
	TypeMessage = "message"
	TypeSystem  = "system"
	TypeError   = "error"
)

// Handshake is the first frame a client sends after the socket opens.
type Handshake struct {
	Nickname string `json:"nickname"`
}

// Chat carries one line of user text from client to server.
type Chat struct {
	Text string `json:"text"`
}

// Inbound is the frame the server pushes to every client.
type Inbound struct {
	Type      string    `json:"type"`
	Nickname  string    `json:"nickname,omitempty"`
	Text      string    `json:"text"`
	Timestamp Timestamp `json:"timestamp,omitzero"`
}

// IsChat reports whether the frame is a user message rather than a notice.
func (m Inbound) IsChat() bool {
	return m.Type == TypeMessage
}

// Timestamp is a point in time carried on the wire as epoch milliseconds.
// Decoding also accepts RFC 3339 strings and null. A value that cannot be
// read as a time decodes to the zero Timestamp with Malformed set, so the
// rest of the frame is still usable.
type Timestamp struct {
	time.Time
	malformed bool
}

// maxEpochMillis is the largest instant a browser Date can hold.
const maxEpochMillis = 8.64e15

// At wraps t, truncated to millisecond precision.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Millisecond)}
}

// Malformed reports whether a timestamp was present but unreadable.
func (t Timestamp) Malformed() bool { return t.malformed }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%d", t.UnixMilli())), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil || s == "" {
			t.malformed = err != nil
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			// Naive ISO timestamps without a zone are taken as UTC.
			parsed, err = time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
		}
		if err != nil {
			t.malformed = true
			return nil
		}
		t.Time = parsed
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil || ms < 0 || ms > maxEpochMillis {
		t.malformed = true
		return nil
	}
	// Zero is falsy on the page and means no timestamp.
	if ms == 0 {
		return nil
	}
	t.Time = time.UnixMilli(int64(ms))
	return nil
}
