package events

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrEmptyFrame       = errors.New("empty frame")
	ErrMissingType      = errors.New("envelope has no type")
	ErrMissingMessageID = errors.New("message event has no message_id")
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses a `{type, data}` frame into its Event variant. Unknown types
// decode to *Unknown rather than failing; structurally broken frames and
// message events without an id return an error.
func Decode(frame []byte) (Event, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	name := strings.TrimSpace(env.Type)
	if name == "" {
		return nil, ErrMissingType
	}
	data := env.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}

	var ev Event
	switch Type(name) {
	case TypeAgentsReady:
		ev = &AgentsReady{}
	case TypeMessageStarted:
		ev = &MessageStarted{}
	case TypeMessageDelta:
		ev = &MessageDelta{}
	case TypeMessageCompleted:
		ev = &MessageCompleted{}
	case TypeMessageCancelled:
		ev = &MessageCancelled{}
	case TypeStatus:
		ev = &Status{}
	case TypeError:
		ev = &ServerError{}
	case TypeSessionEnded:
		ev = &SessionEnded{}
	default:
		return &Unknown{Name: name, Data: append([]byte(nil), data...)}, nil
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", name)
	}
	if id, ok := MessageID(ev); ok && strings.TrimSpace(id) == "" {
		return nil, errors.Wrap(ErrMissingMessageID, name)
	}
	return ev, nil
}

// MessageID returns the message id of a lifecycle event; ok is false for
// session-level events.
func MessageID(e Event) (string, bool) {
	switch ev := e.(type) {
	case *MessageStarted:
		return ev.MessageID, true
	case *MessageDelta:
		return ev.MessageID, true
	case *MessageCompleted:
		return ev.MessageID, true
	case *MessageCancelled:
		return ev.MessageID, true
	default:
		return "", false
	}
}
