package transcriptstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	"github.com/pkg/errors"
)

// InMemoryStore is a size-limited Store mirroring the SQLite ordering rules.
type InMemoryStore struct {
	mu                    sync.Mutex
	maxMessagesPerSession int
	sessions              map[string]SessionRecord
	messages              map[string][]MessageRecord
	seen                  map[string]map[string]struct{}
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore(maxMessagesPerSession int) *InMemoryStore {
	if maxMessagesPerSession <= 0 {
		maxMessagesPerSession = 5000
	}
	return &InMemoryStore{
		maxMessagesPerSession: maxMessagesPerSession,
		sessions:              map[string]SessionRecord{},
		messages:              map[string][]MessageRecord{},
		seen:                  map[string]map[string]struct{}{},
	}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) UpsertSession(_ context.Context, record SessionRecord) error {
	record = normalizeSessionRecord(record, time.Now().UnixMilli())
	if record.SessionID == "" {
		return errors.New("in-memory transcript store: sessionID is empty")
	}
	if len(record.Agents) > 0 {
		record.Agents = append([]events.Agent(nil), record.Agents...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.SessionID] = mergeSessionRecord(s.sessions[record.SessionID], record)
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, sessionID string) (SessionRecord, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionRecord{}, false, errors.New("in-memory transcript store: sessionID is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.sessions[sessionID]
	if !ok {
		return SessionRecord{}, false, nil
	}
	record.MessageCount = len(s.messages[sessionID])
	return record, true, nil
}

func (s *InMemoryStore) ListSessions(_ context.Context, limit int, sinceMs int64) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionRecord, 0, len(s.sessions))
	for id, record := range s.sessions {
		if sinceMs > 0 && record.LastActivityMs < sinceMs {
			continue
		}
		record.MessageCount = len(s.messages[id])
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityMs != out[j].LastActivityMs {
			return out[i].LastActivityMs > out[j].LastActivityMs
		}
		return out[i].SessionID < out[j].SessionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, msg MessageRecord) error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("in-memory transcript store: sessionID is empty")
	}
	if strings.TrimSpace(msg.MessageID) == "" {
		return errors.New("in-memory transcript store: messageID is empty")
	}
	now := time.Now().UnixMilli()
	if msg.CreatedAtMs <= 0 {
		msg.CreatedAtMs = now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.seen[msg.SessionID]
	if seen == nil {
		seen = map[string]struct{}{}
		s.seen[msg.SessionID] = seen
	}
	if _, dup := seen[msg.MessageID]; dup {
		return nil
	}
	seen[msg.MessageID] = struct{}{}

	list := s.messages[msg.SessionID]
	msg.Seq = 1
	if n := len(list); n > 0 {
		msg.Seq = list[n-1].Seq + 1
	}
	list = append(list, msg)
	if len(list) > s.maxMessagesPerSession {
		list = list[len(list)-s.maxMessagesPerSession:]
	}
	s.messages[msg.SessionID] = list

	record := s.sessions[msg.SessionID]
	if record.SessionID == "" {
		record = SessionRecord{SessionID: msg.SessionID, Status: StatusActive, CreatedAtMs: now}
	}
	if now > record.LastActivityMs {
		record.LastActivityMs = now
	}
	s.sessions[msg.SessionID] = record
	return nil
}

func (s *InMemoryStore) ListMessages(_ context.Context, sessionID string) ([]MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MessageRecord(nil), s.messages[sessionID]...), nil
}
