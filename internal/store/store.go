package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered or guest account.
type User struct {
	ID           string // UUID
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // for guest session tracking
	AvatarURL    string
	CreatedAt    time.Time
}

// Space represents a virtual room with a bounded grid.
type Space struct {
	ID        string // UUID
	Name      string
	Width     int
	Height    int
	OwnerID   string
	CreatedAt time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	SpaceID   string
	UserID    string
	Username  string
	AvatarURL string
	Body      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateUserAvatar sets the avatar URL for a user.
	UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error
}

// SpaceStore handles space persistence.
type SpaceStore interface {
	// CreateSpace creates a new space owned by ownerID.
	CreateSpace(ctx context.Context, name string, width, height int, ownerID string) (*Space, error)

	// GetSpaceByID retrieves a space by ID. Returns ErrNotFound if absent.
	GetSpaceByID(ctx context.Context, id string) (*Space, error)

	// ListSpaces lists all spaces.
	ListSpaces(ctx context.Context) ([]*Space, error)

	// DeleteSpace removes a space. Only the owner may delete it.
	DeleteSpace(ctx context.Context, id, ownerID string) error
}

// MessageStore handles chat message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListRecentMessages returns up to limit most recent messages for a
	// space, ordered oldest first.
	ListRecentMessages(ctx context.Context, spaceID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	SpaceStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
