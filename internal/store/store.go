// Package store persists what a bot observes so state survives
// restarts: the chat log and per-user counters commands can query.
package store

import (
	"context"
	"time"
)

// MessageRecord is one persisted chat message.
type MessageRecord struct {
	ID       int64
	RoomID   string
	UserID   string
	Username string
	Content  string
	SentAt   time.Time
}

// Store is the persistence boundary for bot-side state.
type Store interface {
	// LogMessage appends one observed chat message.
	LogMessage(ctx context.Context, rec MessageRecord) (int64, error)
	// RecentMessages returns up to limit messages for a room, newest first.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]MessageRecord, error)
	// LastSeen returns the time of the most recent message from a user,
	// matched case-insensitively by username.
	LastSeen(ctx context.Context, username string) (time.Time, bool, error)
	// CountByUser returns how many messages a user has sent.
	CountByUser(ctx context.Context, userID string) (int64, error)
	Close() error
}
