package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	room       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room, created_at);
`

// SQLiteSink stores entries in a single messages table.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (and creates if needed) the database at dbPath.
// ":memory:" is accepted for tests.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if dbPath == "" {
		dbPath = "roomchat.db"
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:"
	// pointing at one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO messages (id, room, text, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, e.ID.String(), e.Room, e.Text, e.At.UnixNano()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Recent(ctx context.Context, room string, limit int) ([]Entry, error) {
	query := `
		SELECT id, room, text, created_at FROM (
			SELECT id, room, text, created_at
			FROM messages
			WHERE room = ?
			ORDER BY created_at DESC
			LIMIT ?
		) ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id   string
			e    Entry
			nano int64
		)
		if err := rows.Scan(&id, &e.Room, &e.Text, &nano); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		e.At = time.Unix(0, nano).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
