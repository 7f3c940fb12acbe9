// Package history persists conversations and their messages in SQLite so the
// chat layer can reload context across turns and list recent activity.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Message roles accepted by Append.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation is one chat session.
type Conversation struct {
	// ID is the UUID assigned at creation.
	ID string `json:"conversation_id"`

	// UserID identifies the customer, opaque to this package.
	UserID string `json:"user_id"`

	// CreatedAt is when the conversation started.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is the time of the most recent message.
	LastUpdated time.Time `json:"last_updated"`
}

// Message is one turn in a conversation.
type Message struct {
	// ID is the message's row id.
	ID int64 `json:"id"`

	// ConversationID links the message to its conversation.
	ConversationID string `json:"conversation_id"`

	// Role is one of RoleUser, RoleAssistant, RoleSystem.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Metadata carries per-message extras (intent, confidence, sources).
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is when the message was stored.
	Timestamp time.Time `json:"timestamp"`
}

// Store persists conversations in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and runs migration.
// Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
			}
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    created_at      INTEGER NOT NULL,
    last_updated    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id),
    role            TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
    content         TEXT NOT NULL,
    metadata        TEXT NOT NULL DEFAULT '{}',
    timestamp       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, timestamp);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Create starts a new conversation for userID and returns it.
func (s *Store) Create(ctx context.Context, userID string) (*Conversation, error) {
	conv := &Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
		LastUpdated: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, created_at, last_updated) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.CreatedAt.Unix(), conv.LastUpdated.Unix())
	if err != nil {
		return nil, fmt.Errorf("history: create conversation: %w", err)
	}
	return conv, nil
}

// Get returns the conversation with the given id, or sql.ErrNoRows wrapped.
func (s *Store) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	var created, updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, user_id, created_at, last_updated FROM conversations WHERE conversation_id = ?`,
		conversationID).Scan(&conv.ID, &conv.UserID, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("history: get conversation %s: %w", conversationID, err)
	}
	conv.CreatedAt = time.Unix(created, 0).UTC()
	conv.LastUpdated = time.Unix(updated, 0).UTC()
	return &conv, nil
}

// Append stores one message and bumps the conversation's last_updated.
func (s *Store) Append(ctx context.Context, conversationID, role, content string, metadata map[string]string) error {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("history: invalid role %q", role)
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("history: marshal metadata: %w", err)
	}
	if metadata == nil {
		metaJSON = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: append begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, metadata, timestamp) VALUES (?, ?, ?, ?, ?)`,
		conversationID, role, content, string(metaJSON), now); err != nil {
		return fmt.Errorf("history: insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_updated = ? WHERE conversation_id = ?`,
		now, conversationID); err != nil {
		return fmt.Errorf("history: touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: append commit: %w", err)
	}
	return nil
}

// Recent returns the latest limit messages of a conversation in
// chronological order.
func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, metadata, timestamp
		 FROM messages WHERE conversation_id = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var metaJSON string
		var ts int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metaJSON, &ts); err != nil {
			return nil, fmt.Errorf("history: scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			m.Metadata = nil
		}
		m.Timestamp = time.Unix(ts, 0).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// List returns the most recently updated conversations for a user.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, user_id, created_at, last_updated
		 FROM conversations WHERE user_id = ?
		 ORDER BY last_updated DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.UserID, &created, &updated); err != nil {
			return nil, fmt.Errorf("history: scan conversation: %w", err)
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		c.LastUpdated = time.Unix(updated, 0).UTC()
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list rows: %w", err)
	}
	return convs, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
