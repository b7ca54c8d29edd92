// Package transcriptstore keeps a local history of brainstorm sessions and
// their finalized messages.
package transcriptstore

import (
	"context"
	"strings"

	"github.com/T-X-R/BrainstormAI/pkg/events"
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// SessionRecord is the persisted session-level metadata.
type SessionRecord struct {
	SessionID      string         `json:"session_id"`
	Topic          string         `json:"topic"`
	Status         string         `json:"status"`
	Agents         []events.Agent `json:"agents,omitempty"`
	CreatedAtMs    int64          `json:"created_at_ms"`
	LastActivityMs int64          `json:"last_activity_ms"`
	MessageCount   int            `json:"message_count"`
}

// MessageRecord is one finalized message. Seq is assigned by the store and
// orders messages within a session.
type MessageRecord struct {
	SessionID   string `json:"session_id"`
	MessageID   string `json:"message_id"`
	Seq         uint64 `json:"seq"`
	AuthorType  string `json:"author_type"`
	AuthorName  string `json:"author_name"`
	Content     string `json:"content"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

type Store interface {
	// UpsertSession merges record into the stored one; blank fields keep the stored value.
	UpsertSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (SessionRecord, bool, error)
	ListSessions(ctx context.Context, limit int, sinceMs int64) ([]SessionRecord, error)
	// AppendMessage stores a finalized message once; a repeated message id is ignored.
	AppendMessage(ctx context.Context, msg MessageRecord) error
	ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error)
	Close() error
}

func normalizeSessionRecord(r SessionRecord, nowMs int64) SessionRecord {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.Topic = strings.TrimSpace(r.Topic)
	r.Status = strings.TrimSpace(r.Status)
	if r.CreatedAtMs <= 0 {
		r.CreatedAtMs = nowMs
	}
	if r.LastActivityMs <= 0 {
		r.LastActivityMs = nowMs
	}
	return r
}

func mergeSessionRecord(existing, next SessionRecord) SessionRecord {
	if existing.SessionID == "" {
		if next.Status == "" {
			next.Status = StatusActive
		}
		return next
	}
	out := existing
	if next.Topic != "" {
		out.Topic = next.Topic
	}
	if next.Status != "" {
		out.Status = next.Status
	}
	if len(next.Agents) > 0 {
		out.Agents = next.Agents
	}
	if out.CreatedAtMs <= 0 || (next.CreatedAtMs > 0 && next.CreatedAtMs < out.CreatedAtMs) {
		out.CreatedAtMs = next.CreatedAtMs
	}
	if next.LastActivityMs > out.LastActivityMs {
		out.LastActivityMs = next.LastActivityMs
	}
	return out
}
