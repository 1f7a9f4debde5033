/*
Package store defines the persistent data model of the chat system and the
storage contracts the rest of the application depends on.

The chat core never talks to a database driver directly; it goes through the
UserStore, ConversationStore, and MessageStore interfaces so the Postgres
implementation can be swapped for the in-memory one in tests.
*/
package store

import "time"

// ConversationType distinguishes two-party direct conversations from groups.
type ConversationType string

const (
	// ConversationDirect is a two-member conversation with a canonical,
	// order-independent identity.
	ConversationDirect ConversationType = "direct"

	// ConversationGroup is an explicitly created multi-member conversation.
	// Multiple groups with identical membership are legal.
	ConversationGroup ConversationType = "group"
)

// User is a chat participant. Usernames are unique handles (case-sensitive
// exact match); users are created lazily on first identification.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Conversation is a direct or group chat. Direct conversations carry a
// participants key (the sorted member pair joined by a colon) that is unique
// across all direct conversations; groups have no key.
type Conversation struct {
	ID              string           `json:"id"`
	Type            ConversationType `json:"type"`
	MemberIDs       []string         `json:"memberIds"`
	ParticipantsKey string           `json:"-"`
	Title           string           `json:"title,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Message is a single chat message. ConversationID addresses a structured
// conversation; RoomID keeps the legacy free-text room addressing alive for
// older clients. DeliveredTo always contains the sender; SeenBy never does.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	RoomID         string    `json:"roomId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"text"`
	DeliveredTo    []string  `json:"deliveredTo"`
	SeenBy         []string  `json:"seenBy"`
	ClientToken    string    `json:"clientToken,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UnreadCount is the per-conversation count of messages a user has not seen.
// Conversations with zero unread messages are never reported.
type UnreadCount struct {
	ConversationID string `json:"conversationId"`
	Count          int64  `json:"count"`
}
