// Package store keeps a history of received chat messages in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	msg_id      INTEGER NOT NULL,
	node        TEXT NOT NULL,
	content     TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	type        TEXT NOT NULL,
	encrypted   INTEGER NOT NULL,
	channel     TEXT NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel);
`

var _ lorachat.Store = &SQLite{}

// SQLite is a message history backed by a SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Persist appends a received envelope to the history.
func (s *SQLite) Persist(ctx context.Context, env lorachat.Envelope) error {
	query := `INSERT INTO messages (msg_id, node, content, timestamp, type, encrypted, channel, received_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, env.ID, env.Node, env.Content, env.Timestamp,
		string(env.Type), env.Encrypted, env.Channel, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// LoadRecent returns up to n most recent envelopes, oldest first.
func (s *SQLite) LoadRecent(ctx context.Context, n int) ([]lorachat.Envelope, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `SELECT msg_id, node, content, timestamp, type, encrypted, channel
	          FROM messages ORDER BY seq DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var envs []lorachat.Envelope
	for rows.Next() {
		var (
			env lorachat.Envelope
			typ string
		)
		if err := rows.Scan(&env.ID, &env.Node, &env.Content, &env.Timestamp, &typ, &env.Encrypted, &env.Channel); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		env.Type = lorachat.MessageType(typ)
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(envs)
	return envs, nil
}

// Count returns the number of stored messages.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
