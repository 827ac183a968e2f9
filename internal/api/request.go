package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

// honeypotRequest mirrors the evaluator's inbound payload. Parsing is
// deliberately tolerant: the tester sends several shapes and a strict decode
// would burn turns on formatting instead of engaging.
type honeypotRequest struct {
	SessionID string        `json:"sessionId"`
	Message   wireMessage   `json:"message"`
	History   []wireMessage `json:"conversationHistory"`
	Metadata  *struct {
		Channel  string `json:"channel"`
		Language string `json:"language"`
		Locale   string `json:"locale"`
	} `json:"metadata"`
}

type honeypotResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// wireMessage accepts either a full message object or a bare string (the
// simplified tester format, treated as scammer text).
type wireMessage struct {
	Sender    string   `json:"sender"`
	Text      string   `json:"text"`
	Timestamp flexTime `json:"timestamp"`
}

func (m *wireMessage) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		m.Sender = session.SenderScammer
		m.Text = text
		return nil
	}

	type alias wireMessage
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = wireMessage(a)
	m.Sender = strings.ToLower(strings.TrimSpace(m.Sender))
	return nil
}

// toMessage converts to the internal model, defaulting sender and timestamp.
func (m wireMessage) toMessage(now time.Time) session.Message {
	sender := m.Sender
	if sender != session.SenderUser {
		sender = session.SenderScammer
	}
	ts := m.Timestamp.Time
	if ts.IsZero() {
		ts = now
	}
	return session.Message{
		Sender:    sender,
		Text:      m.Text,
		Timestamp: ts.UTC(),
	}
}

// flexTime normalizes the two timestamp encodings the contract allows, an
// ISO-8601 string or a Unix-epoch-milliseconds number, to one instant.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", s)
	}

	var millis int64
	if err := json.Unmarshal(b, &millis); err != nil {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("unrecognized timestamp %s", string(b))
		}
		millis = int64(f)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}
