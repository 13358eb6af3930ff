// Package sqlite implements store.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/howlhouse/howlhouse-go/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	content   TEXT NOT NULL,
	sent_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id);
`

// New opens (creating if needed) the database at dbPath and applies
// the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LogMessage appends one observed chat message.
func (s *SQLiteStore) LogMessage(ctx context.Context, rec store.MessageRecord) (int64, error) {
	query := `
		INSERT INTO messages (room_id, user_id, username, content, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.RoomID, rec.UserID, rec.Username, rec.Content, rec.SentAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// RecentMessages returns up to limit messages for a room, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]store.MessageRecord, error) {
	query := `
		SELECT id, room_id, user_id, username, content, sent_at
		FROM messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []store.MessageRecord
	for rows.Next() {
		var rec store.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.UserID, &rec.Username, &rec.Content, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastSeen returns the time of the most recent message from a user.
func (s *SQLiteStore) LastSeen(ctx context.Context, username string) (time.Time, bool, error) {
	query := `
		SELECT sent_at
		FROM messages
		WHERE LOWER(username) = ?
		ORDER BY id DESC
		LIMIT 1
	`
	var seen time.Time
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(username)).Scan(&seen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query last seen: %w", err)
	}
	return seen, true, nil
}

// CountByUser returns how many messages a user has sent.
func (s *SQLiteStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
