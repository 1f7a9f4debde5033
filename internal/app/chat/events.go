/*
Package chat contains the real-time core: per-connection clients, the hub event
loop that owns presence and topic membership, and the fan-out broadcaster.

This file defines the websocket wire protocol: inbound request events, outbound
broadcast events, the acknowledgement contract, and payload shapes.
*/
package chat

import (
	"encoding/json"
	"fmt"
)

// Inbound connection-originated request events.
const (
	EventIdentify      = "identify"
	EventJoinTopic     = "join-topic"
	EventResolveDirect = "resolve-direct"
	EventSendMessage   = "send-message"
	EventMarkSeen      = "mark-seen"
	EventTyping        = "typing"
)

// Outbound events.
const (
	EventAck          = "ack"
	EventPresence     = "presence:users"
	EventMessageNew   = "message:new"
	EventMessagesSeen = "messages:seen"
)

// Frame is the envelope of every inbound websocket message. ID, when present,
// requests an acknowledgement carrying the same ID.
type Frame struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// pushFrame is the envelope of broadcast events pushed to clients.
type pushFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// ackFrame is the tagged acknowledgement reply. OK distinguishes success from
// failure explicitly, so a caller never has to infer the outcome from an
// absent payload.
type ackFrame struct {
	Event   string `json:"event"`
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Payload any    `json:"payload,omitempty"`
}

// IdentifyPayload announces who owns this connection. The user record is
// created lazily on first identification.
type IdentifyPayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// IdentifyAck is the successful identify acknowledgement.
type IdentifyAck struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// JoinTopicPayload subscribes the connection to a fan-out topic. Fire and forget.
type JoinTopicPayload struct {
	TopicID string `json:"topicId"`
}

// ResolveDirectPayload asks for the direct conversation with another user.
type ResolveDirectPayload struct {
	OtherUsername string `json:"otherUsername"`
}

// ResolveDirectAck is the successful resolve-direct acknowledgement.
type ResolveDirectAck struct {
	ConversationID string   `json:"conversationId"`
	Type           string   `json:"type"`
	MemberIDs      []string `json:"memberIds"`
}

// SendMessagePayload submits a message to a conversation or legacy room.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Text           string `json:"text"`
	ClientToken    string `json:"clientToken,omitempty"`
}

// MarkSeenPayload marks every unseen message in the conversation as seen by
// the connection's user.
type MarkSeenPayload struct {
	ConversationID string `json:"conversationId"`
}

// TypingPayload is relayed verbatim to the other connections in the topic.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// SeenNotice is the messages:seen broadcast payload.
type SeenNotice struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// encodePush marshals a broadcast frame.
func encodePush(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(pushFrame{Event: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return data, nil
}
