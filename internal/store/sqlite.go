package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite implements Store using a single SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// DB exposes the underlying handle so sibling components (the correction
// ledger) can share the same database file.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id     TEXT PRIMARY KEY,
		created_at  TEXT NOT NULL,
		last_active TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_memory (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id        TEXT NOT NULL REFERENCES users(user_id),
		memory_summary TEXT,
		facts          TEXT,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_user ON user_memory(user_id, updated_at DESC);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(user_id),
		created_at TEXT NOT NULL,
		title      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(session_id),
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		timestamp  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS conversation_context (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL UNIQUE,
		user_id      TEXT NOT NULL,
		context_data TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) CreateUser(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		userID = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, created_at, last_active) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET last_active = excluded.last_active`,
		userID, now, now)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return userID, nil
}

func (s *SQLite) CreateSession(ctx context.Context, userID string) (string, error) {
	sessionID := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (session_id, user_id, created_at) VALUES (?, ?, ?)`,
		sessionID, userID, now)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

func (s *SQLite) Sessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, created_at, COALESCE(title, '')
		 FROM chat_sessions WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var createdAt string
		if err := rows.Scan(&sess.ID, &sess.UserID, &createdAt, &sess.Title); err != nil {
			return nil, err
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if sess.Title == "" {
			sess.Title = "Untitled Chat"
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLite) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM conversation_context WHERE session_id = ?`,
		`DELETE FROM chat_sessions WHERE session_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) AppendMessage(ctx context.Context, sessionID, userID, role, content string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, user_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, userID, role, content, now)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *SQLite) Messages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	// Newest first with the limit, then reversed to chronological order.
	// The rowid tiebreak preserves insertion order for same-timestamp rows.
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, timestamp FROM messages
		 WHERE session_id = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLite) Memory(ctx context.Context, userID string) (Memory, error) {
	var m Memory
	var summary, facts sql.NullString
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT memory_summary, facts, updated_at FROM user_memory
		 WHERE user_id = ? ORDER BY updated_at DESC LIMIT 1`, userID).
		Scan(&summary, &facts, &updatedAt)
	if err == sql.ErrNoRows {
		return Memory{}, nil
	}
	if err != nil {
		return Memory{}, fmt.Errorf("get memory: %w", err)
	}

	m.Summary = summary.String
	if facts.Valid && facts.String != "" {
		json.Unmarshal([]byte(facts.String), &m.Facts)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		m.UpdatedAt = &t
	}
	return m, nil
}

func (s *SQLite) ReplaceMemory(ctx context.Context, userID string, m Memory) error {
	factsJSON, err := json.Marshal(m.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM user_memory WHERE user_id = ? ORDER BY updated_at DESC LIMIT 1`, userID).Scan(&id)
	if err == sql.ErrNoRows {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO user_memory (user_id, memory_summary, facts, updated_at) VALUES (?, ?, ?, ?)`,
			userID, m.Summary, string(factsJSON), now)
	} else if err == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE user_memory SET memory_summary = ?, facts = ?, updated_at = ? WHERE id = ?`,
			m.Summary, string(factsJSON), now, id)
	}
	if err != nil {
		return fmt.Errorf("replace memory: %w", err)
	}
	return nil
}

func (s *SQLite) ClearMemory(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_memory WHERE user_id = ?`, userID)
	return err
}

func (s *SQLite) TopicContext(ctx context.Context, sessionID string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT context_data FROM conversation_context WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic context: %w", err)
	}
	return []byte(data), nil
}

func (s *SQLite) SaveTopicContext(ctx context.Context, sessionID, userID string, data []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_context (session_id, user_id, context_data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			context_data = excluded.context_data,
			updated_at = excluded.updated_at`,
		sessionID, userID, string(data), now)
	if err != nil {
		return fmt.Errorf("save topic context: %w", err)
	}
	return nil
}

func (s *SQLite) ClearTopicContext(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_context WHERE session_id = ?`, sessionID)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
