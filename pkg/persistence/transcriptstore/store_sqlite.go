package transcriptstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/T-X-R/BrainstormAI/pkg/events"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteDSNForFile builds a DSN with WAL and a busy timeout so that the CLI
// can read history while a chat session writes.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite transcript store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
		  session_id TEXT PRIMARY KEY,
		  topic TEXT NOT NULL DEFAULT '',
		  status TEXT NOT NULL DEFAULT 'active',
		  agents_json TEXT NOT NULL DEFAULT '[]',
		  created_at_ms INTEGER NOT NULL,
		  last_activity_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS sessions_by_last_activity
		  ON sessions(last_activity_ms DESC, session_id ASC);`,
		`CREATE TABLE IF NOT EXISTS messages (
		  session_id TEXT NOT NULL,
		  message_id TEXT NOT NULL,
		  seq INTEGER NOT NULL,
		  author_type TEXT NOT NULL,
		  author_name TEXT NOT NULL DEFAULT '',
		  content TEXT NOT NULL,
		  created_at_ms INTEGER NOT NULL,
		  PRIMARY KEY (session_id, message_id)
		);`,
		`CREATE INDEX IF NOT EXISTS messages_by_seq
		  ON messages(session_id, seq);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite transcript store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) UpsertSession(ctx context.Context, record SessionRecord) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	record = normalizeSessionRecord(record, time.Now().UnixMilli())
	if record.SessionID == "" {
		return errors.New("sqlite transcript store: sessionID is empty")
	}
	agentsJSON := ""
	if len(record.Agents) > 0 {
		b, err := json.Marshal(record.Agents)
		if err != nil {
			return errors.Wrap(err, "sqlite transcript store: marshal agents")
		}
		agentsJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, topic, status, agents_json, created_at_ms, last_activity_ms)
		VALUES (?, ?, CASE WHEN ? <> '' THEN ? ELSE 'active' END, CASE WHEN ? <> '' THEN ? ELSE '[]' END, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			topic = CASE
				WHEN excluded.topic <> '' THEN excluded.topic
				ELSE sessions.topic
			END,
			status = CASE
				WHEN ? <> '' THEN excluded.status
				ELSE sessions.status
			END,
			agents_json = CASE
				WHEN ? <> '' THEN excluded.agents_json
				ELSE sessions.agents_json
			END,
			created_at_ms = CASE
				WHEN sessions.created_at_ms > 0 AND sessions.created_at_ms <= excluded.created_at_ms THEN sessions.created_at_ms
				ELSE excluded.created_at_ms
			END,
			last_activity_ms = CASE
				WHEN excluded.last_activity_ms > sessions.last_activity_ms THEN excluded.last_activity_ms
				ELSE sessions.last_activity_ms
			END
	`,
		record.SessionID, record.Topic,
		record.Status, record.Status,
		agentsJSON, agentsJSON,
		record.CreatedAtMs, record.LastActivityMs,
		record.Status, agentsJSON,
	)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: upsert session")
	}
	return nil
}

const sessionColumns = `
	s.session_id, s.topic, s.status, s.agents_json, s.created_at_ms, s.last_activity_ms,
	(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var (
		record     SessionRecord
		agentsJSON string
	)
	if err := row.Scan(
		&record.SessionID,
		&record.Topic,
		&record.Status,
		&agentsJSON,
		&record.CreatedAtMs,
		&record.LastActivityMs,
		&record.MessageCount,
	); err != nil {
		return SessionRecord{}, err
	}
	if strings.TrimSpace(agentsJSON) != "" {
		var agents []events.Agent
		if err := json.Unmarshal([]byte(agentsJSON), &agents); err != nil {
			return SessionRecord{}, errors.Wrap(err, "decode agents")
		}
		if len(agents) > 0 {
			record.Agents = agents
		}
	}
	if record.Status == "" {
		record.Status = StatusActive
	}
	return record, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (SessionRecord, bool, error) {
	if s == nil || s.db == nil {
		return SessionRecord{}, false, errors.New("sqlite transcript store: db is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionRecord{}, false, errors.New("sqlite transcript store: sessionID is empty")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, sessionID)
	record, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, errors.Wrap(err, "sqlite transcript store: get session")
	}
	return record, true, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int, sinceMs int64) ([]SessionRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite transcript store: db is nil")
	}
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions s`
	args := make([]any, 0, 2)
	if sinceMs > 0 {
		query += ` WHERE s.last_activity_ms >= ?`
		args = append(args, sinceMs)
	}
	query += ` ORDER BY s.last_activity_ms DESC, s.session_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: list sessions")
	}
	defer func() { _ = rows.Close() }()

	records := make([]SessionRecord, 0)
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: scan session")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: iterate sessions")
	}
	return records, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg MessageRecord) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite transcript store: db is nil")
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("sqlite transcript store: sessionID is empty")
	}
	if strings.TrimSpace(msg.MessageID) == "" {
		return errors.New("sqlite transcript store: messageID is empty")
	}
	now := time.Now().UnixMilli()
	if msg.CreatedAtMs <= 0 {
		msg.CreatedAtMs = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`, msg.SessionID).
		Scan(&next); err != nil {
		return errors.Wrap(err, "sqlite transcript store: next seq")
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, message_id, seq, author_type, author_name, content, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, message_id) DO NOTHING
	`, msg.SessionID, msg.MessageID, next, msg.AuthorType, msg.AuthorName, msg.Content, msg.CreatedAtMs)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: insert message")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, created_at_ms, last_activity_ms)
			VALUES (?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET
				last_activity_ms = CASE
					WHEN excluded.last_activity_ms > sessions.last_activity_ms THEN excluded.last_activity_ms
					ELSE sessions.last_activity_ms
				END
		`, msg.SessionID, now, now); err != nil {
			return errors.Wrap(err, "sqlite transcript store: touch session")
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite transcript store: db is nil")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, message_id, seq, author_type, author_name, content, created_at_ms
		FROM messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: list messages")
	}
	defer func() { _ = rows.Close() }()

	out := make([]MessageRecord, 0)
	for rows.Next() {
		var (
			m   MessageRecord
			seq int64
		)
		if err := rows.Scan(&m.SessionID, &m.MessageID, &seq, &m.AuthorType, &m.AuthorName, &m.Content, &m.CreatedAtMs); err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: scan message")
		}
		u, err := int64ToUint64(seq)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: invalid seq")
		}
		m.Seq = u
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: iterate messages")
	}
	return out, nil
}

func int64ToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, errors.Errorf("value %d cannot be represented as uint64", v)
	}
	return uint64(v), nil
}
