// Package transcript holds the session transcript model and renders it as
// JSON, YAML, Markdown or HTML.
package transcript

import (
	"context"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/api"
	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/T-X-R/BrainstormAI/pkg/persistence/transcriptstore"
	"github.com/pkg/errors"
)

type Message struct {
	ID              string    `json:"id" yaml:"id"`
	AuthorType      string    `json:"author_type" yaml:"author_type"`
	AuthorName      string    `json:"author_name,omitempty" yaml:"author_name,omitempty"`
	TargetMessageID string    `json:"target_message_id,omitempty" yaml:"target_message_id,omitempty"`
	Content         string    `json:"content" yaml:"content"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
}

type Transcript struct {
	SessionID string         `json:"session_id" yaml:"session_id"`
	Topic     string         `json:"topic" yaml:"topic"`
	Title     string         `json:"title,omitempty" yaml:"title,omitempty"`
	Status    string         `json:"status" yaml:"status"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Agents    []events.Agent `json:"agents" yaml:"agents"`
	Messages  []Message      `json:"messages" yaml:"messages"`
}

// FromExport converts the server's export payload.
func FromExport(e api.SessionExport) Transcript {
	t := Transcript{
		SessionID: e.SessionID,
		Topic:     e.Topic,
		Title:     e.Title,
		Status:    e.Status,
		CreatedAt: e.CreatedAt.Time,
		Agents:    append([]events.Agent(nil), e.Agents...),
		Messages:  make([]Message, 0, len(e.Messages)),
	}
	if e.EndedAt != nil && !e.EndedAt.IsZero() {
		ended := e.EndedAt.Time
		t.EndedAt = &ended
	}
	for _, m := range e.Messages {
		t.Messages = append(t.Messages, Message{
			ID:              m.ID,
			AuthorType:      m.AuthorType,
			AuthorName:      m.AuthorName,
			TargetMessageID: m.TargetMessageID,
			Content:         m.Content,
			CreatedAt:       m.CreatedAt.Time,
		})
	}
	return t
}

// FromStore loads a locally recorded session.
func FromStore(ctx context.Context, store transcriptstore.Store, sessionID string) (Transcript, error) {
	rec, ok, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return Transcript{}, err
	}
	if !ok {
		return Transcript{}, errors.Errorf("session %s not found in local history", sessionID)
	}
	msgs, err := store.ListMessages(ctx, sessionID)
	if err != nil {
		return Transcript{}, err
	}
	t := Transcript{
		SessionID: rec.SessionID,
		Topic:     rec.Topic,
		Status:    rec.Status,
		CreatedAt: time.UnixMilli(rec.CreatedAtMs).UTC(),
		Agents:    rec.Agents,
		Messages:  make([]Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		t.Messages = append(t.Messages, Message{
			ID:         m.MessageID,
			AuthorType: m.AuthorType,
			AuthorName: m.AuthorName,
			Content:    m.Content,
			CreatedAt:  time.UnixMilli(m.CreatedAtMs).UTC(),
		})
	}
	return t, nil
}

// Speaker returns the display name of a message.
func (m Message) Speaker() string {
	if m.AuthorName != "" {
		return m.AuthorName
	}
	if m.AuthorType == "user" {
		return "User"
	}
	return "Agent"
}
