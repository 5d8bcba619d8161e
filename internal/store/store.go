package store

import (
	"context"
	"time"
)

// Message is a single chat message within a session. Append-only.
type Message struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Memory is a user's long-term memory: a free-text summary plus short facts.
// Some facts are reserved key:value settings (e.g. "preferred_language: en").
type Memory struct {
	Summary   string
	Facts     []string
	UpdatedAt *time.Time
}

// Session is a logical conversation owned by a user.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Title     string
}

// Store is the durable relational store of users, sessions, messages,
// long-term memory, and per-session topic context.
//
// Any error from a Store method is fatal to the turn in progress: the
// orchestrator cannot safely proceed without committed state.
type Store interface {
	// CreateUser inserts the user if absent and returns its id.
	// An empty id generates a fresh one.
	CreateUser(ctx context.Context, userID string) (string, error)

	// CreateSession inserts a new session for the user and returns its id.
	CreateSession(ctx context.Context, userID string) (string, error)

	// Sessions returns the user's most recent sessions, newest first.
	Sessions(ctx context.Context, userID string, limit int) ([]Session, error)

	// DeleteSession removes the session, its messages, and its topic context.
	DeleteSession(ctx context.Context, sessionID string) error

	// AppendMessage records a message. Messages are never mutated.
	AppendMessage(ctx context.Context, sessionID, userID, role, content string) error

	// Messages returns the last limit messages in chronological order.
	Messages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Memory returns the user's latest memory, or an empty Memory if none.
	Memory(ctx context.Context, userID string) (Memory, error)

	// ReplaceMemory overwrites the user's memory wholesale.
	ReplaceMemory(ctx context.Context, userID string, m Memory) error

	// ClearMemory removes the user's memory but keeps chat history.
	ClearMemory(ctx context.Context, userID string) error

	// TopicContext returns the serialized topic state for the session,
	// or nil if none has been saved.
	TopicContext(ctx context.Context, sessionID string) ([]byte, error)

	// SaveTopicContext upserts the serialized topic state, keyed by session.
	SaveTopicContext(ctx context.Context, sessionID, userID string, data []byte) error

	// ClearTopicContext removes the session's topic state.
	ClearTopicContext(ctx context.Context, sessionID string) error

	Close() error
}
