package store

import (
	"context"
	"errors"
)

// Sentinel errors shared by every storage backend. Implementations map their
// driver-level failures (pgx.ErrNoRows, unique-violation codes) onto these so
// callers can use errors.Is without importing a driver.
var (
	// ErrNotFound reports that the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateKey reports that an insert hit a uniqueness constraint.
	// This is the expected outcome of losing a concurrent-creation race and
	// is absorbed by the get-or-create helpers, never surfaced to clients.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// UserStore persists users. Insert must enforce username uniqueness
// atomically and return ErrDuplicateKey on collision.
type UserStore interface {
	Insert(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByIDs(ctx context.Context, ids []string) ([]User, error)
	ListAll(ctx context.Context) ([]User, error)
}

// ConversationStore persists conversations. Insert must enforce
// participants-key uniqueness for direct conversations atomically and return
// ErrDuplicateKey on collision; group inserts are unconditional.
type ConversationStore interface {
	Insert(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id string) (*Conversation, error)
	GetDirectByKey(ctx context.Context, key string) (*Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]Conversation, error)
}

// MessageStore persists messages and their delivered/seen receipt state.
type MessageStore interface {
	Insert(ctx context.Context, m *Message) error

	// Recent returns up to limit messages for the conversation or legacy
	// room, newest first.
	Recent(ctx context.Context, target string, limit int) ([]Message, error)

	// MarkSeen adds viewerID to both seenBy and deliveredTo of every message
	// in the conversation the viewer did not send and has not yet seen, and
	// returns the number of messages actually modified.
	MarkSeen(ctx context.Context, conversationID, viewerID string) (int64, error)

	// AddDelivered bulk-adds the given identities to deliveredTo for all
	// messages in the conversation without touching seenBy.
	AddDelivered(ctx context.Context, conversationID string, receiverIDs []string) error

	// UnreadCounts groups, by conversation, the count of messages the user
	// did not send and has not seen. Zero-count conversations are omitted.
	UnreadCounts(ctx context.Context, userID string) ([]UnreadCount, error)
}

// Store bundles the three collections a running server needs.
type Store struct {
	Users         UserStore
	Conversations ConversationStore
	Messages      MessageStore
}
