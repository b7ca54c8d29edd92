package api

import (
	"strings"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/pkg/errors"
)

const (
	MinAgents     = 1
	MaxAgents     = 5
	DefaultAgents = 3
	MaxTopicLen   = 1024
)

// AgentConfig is a per-agent override sent at session creation.
type AgentConfig struct {
	ModelName string `json:"model_name,omitempty"`
}

type CreateSessionRequest struct {
	Topic        string        `json:"topic"`
	AgentCount   int           `json:"agent_count"`
	AgentConfigs []AgentConfig `json:"agent_configs,omitempty"`
	Title        string        `json:"title,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string         `json:"session_id"`
	Topic     string         `json:"topic"`
	Agents    []events.Agent `json:"agents"`
}

type ModelsResponse struct {
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

type EndSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// ExportedMessage is one persisted message of a session export.
type ExportedMessage struct {
	ID              string    `json:"id" yaml:"id"`
	SessionID       string    `json:"session_id" yaml:"session_id"`
	AuthorType      string    `json:"author_type" yaml:"author_type"`
	AuthorID        string    `json:"author_id,omitempty" yaml:"author_id,omitempty"`
	AuthorName      string    `json:"author_name,omitempty" yaml:"author_name,omitempty"`
	TargetMessageID string    `json:"target_message_id,omitempty" yaml:"target_message_id,omitempty"`
	Content         string    `json:"content" yaml:"content"`
	CreatedAt       Timestamp `json:"created_at" yaml:"created_at"`
}

// SessionExport is the server's transcript artifact.
type SessionExport struct {
	SessionID string            `json:"session_id" yaml:"session_id"`
	Topic     string            `json:"topic" yaml:"topic"`
	Title     string            `json:"title,omitempty" yaml:"title,omitempty"`
	Status    string            `json:"status" yaml:"status"`
	CreatedAt Timestamp         `json:"created_at" yaml:"created_at"`
	EndedAt   *Timestamp        `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Agents    []events.Agent    `json:"agents" yaml:"agents"`
	Messages  []ExportedMessage `json:"messages" yaml:"messages"`
}

// Export is a downloaded transcript: the raw body as served plus its decoded form.
type Export struct {
	Filename string
	Raw      []byte
	Session  SessionExport
}

// Timestamp accepts the server's datetimes, which may or may not carry a zone.
// Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, errors.Errorf("unrecognized timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}
