package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultRecentLimit caps history queries when the caller does not ask for a
// specific window.
const DefaultRecentLimit = 50

// IsIdentity reports whether s is a well-formed identity reference. Message
// targets that fail this check are treated as legacy free-text room names.
func IsIdentity(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Submit persists a new message addressed to either a structured conversation
// or a legacy room, with the delivery state initialized to "reached the
// sender only". The returned record carries the generated identity and the
// server-assigned timestamp.
func Submit(ctx context.Context, ms MessageStore, target, senderID, text, clientToken string) (*Message, error) {
	m := &Message{
		ID:          uuid.New().String(),
		RoomID:      target,
		SenderID:    senderID,
		Body:        text,
		DeliveredTo: []string{senderID},
		SeenBy:      []string{},
		ClientToken: clientToken,
		CreatedAt:   time.Now().UTC(),
	}
	if IsIdentity(target) {
		m.ConversationID = target
	}

	if err := ms.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecentOldestFirst returns up to limit recent messages for the target,
// reordered oldest-to-newest for display. A non-positive limit falls back to
// DefaultRecentLimit.
func RecentOldestFirst(ctx context.Context, ms MessageStore, target string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	msgs, err := ms.Recent(ctx, target, limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
