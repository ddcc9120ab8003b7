package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate")
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents a persisted chat message.
// Receiver is empty for broadcast messages.
type Message struct {
	ID        string
	Text      string
	Author    string
	Receiver  string
	Seen      bool
	CreatedAt time.Time
}

// Directed reports whether the message targets a single identity.
func (m *Message) Directed() bool {
	return m.Receiver != ""
}

// HistoryQuery selects messages visible to Viewer.
// Zero Before means "newest".
type HistoryQuery struct {
	Viewer string
	Before time.Time
	Limit  int
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password. Returns ErrDuplicate when the name is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage inserts a new message. The caller assigns msg.ID.
	CreateMessage(ctx context.Context, msg *Message) error

	// FindMessageByID returns ErrNotFound for unknown ids.
	FindMessageByID(ctx context.Context, id string) (*Message, error)

	// SaveMessage updates a previously created message.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns broadcast messages plus directed messages from or to the viewer,
	// oldest first.
	ListMessages(ctx context.Context, q HistoryQuery) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying connection.
	Close() error
}

// DefaultHistoryLimit caps history pages when the caller does not ask for less.
const DefaultHistoryLimit = 50

// NormalizeLimit clamps a history page size into (0, DefaultHistoryLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}
