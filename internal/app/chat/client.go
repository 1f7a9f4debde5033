/*
Package chat contains the real-time core: per-connection clients, the hub event
loop that owns presence and topic membership, and the fan-out broadcaster.

This file defines the Client struct, one per websocket connection. The read
pump dispatches inbound request events; each handler persists first, then asks
the hub to notify, so no subscriber ever observes a broadcast referencing data
it cannot read back.
*/
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tidechat/internal/app/store"
	"tidechat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the websocket connection.
	writeWait = 10 * time.Second

	// maximum time the server waits for a Pong from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound frame.
	maxMessageSize = 8192
)

// Client represents one active websocket connection.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	store *store.Store

	// connID is this connection's identity inside the presence registry.
	connID string

	// userID/username are set on identify. Only the read pump goroutine
	// touches them; the hub keeps its own copy.
	userID   string
	username string

	// send queues outbound frames for the write pump. Never closed: the read
	// pump may be queuing an ack while the hub tears the connection down, and
	// a send on a closed channel panics even inside a select. Teardown is
	// signaled through done instead.
	send chan []byte

	// done closes exactly once when the connection is terminated.
	done     chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded websocket connection.
func NewClient(hub *Hub, conn *websocket.Conn, st *store.Store) *Client {
	connID := uuid.New().String()

	return &Client{
		hub:    hub,
		conn:   conn,
		store:  st,
		connID: connID,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: logx.Logger().With().Str("conn_id", connID).Logger(),
	}
}

// stop signals teardown exactly once. The write pump exits on done; the send
// channel is left open and reclaimed by the garbage collector.
func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// ReadPump reads frames from the websocket connection, dispatches them, and
// performs cleanup when the connection drops.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.dispatch(messageBytes)
	}
}

// cleanupOnDisconnect handles the terminal disconnect event: presence registry
// cleanup through the hub, then closing the underlying connection. Nothing else.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// dispatch parses an inbound frame and routes it to its handler.
func (c *Client) dispatch(messageBytes []byte) {
	var frame Frame
	if err := json.Unmarshal(messageBytes, &frame); err != nil {
		c.logger.Warn().Err(err).Bytes("message_bytes", messageBytes).Msg("Client sent invalid JSON")
		return
	}

	// No mid-flight cancellation: each operation runs to completion.
	ctx := context.Background()

	switch frame.Event {
	case EventIdentify:
		c.handleIdentify(ctx, frame)

	case EventJoinTopic:
		c.handleJoinTopic(frame)

	case EventResolveDirect:
		c.handleResolveDirect(ctx, frame)

	case EventSendMessage:
		c.handleSendMessage(ctx, frame)

	case EventMarkSeen:
		c.handleMarkSeen(ctx, frame)

	case EventTyping:
		c.handleTyping(frame)

	default:
		c.logger.Warn().Str("event", frame.Event).Msg("Client sent unsupported event")
	}
}

// handleIdentify lazily creates (or fetches) the user for this connection,
// registers presence, and acknowledges with the resolved identity.
func (c *Client) handleIdentify(ctx context.Context, frame Frame) {
	var payload IdentifyPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Username == "" {
		c.logger.Warn().Err(err).Msg("Client sent invalid identify payload")
		c.sendAck(frame.ID, false, nil)
		return
	}

	user, err := store.EnsureUser(ctx, c.store.Users, payload.Username, payload.DisplayName)
	if err != nil {
		c.logger.Error().Err(err).Str("username", payload.Username).Msg("Identify failed")
		c.sendAck(frame.ID, false, nil)
		return
	}

	c.userID = user.ID
	c.username = user.Username

	c.hub.Identify(c, user.ID, user.Username)

	c.sendAck(frame.ID, true, IdentifyAck{UserID: user.ID, Username: user.Username})
}

// handleJoinTopic is the fire-and-forget subscribe request.
func (c *Client) handleJoinTopic(frame Frame) {
	var payload JoinTopicPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.TopicID == "" {
		c.logger.Warn().Err(err).Msg("Client sent invalid join-topic payload")
		return
	}
	c.hub.Join(c, payload.TopicID)
}

// handleResolveDirect resolves (or race-safely creates) the direct
// conversation with the named peer, then subscribes every live connection of
// both participants to its topic before acknowledging.
func (c *Client) handleResolveDirect(ctx context.Context, frame Frame) {
	var payload ResolveDirectPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.OtherUsername == "" {
		c.logger.Warn().Err(err).Msg("Client sent invalid resolve-direct payload")
		c.sendAck(frame.ID, false, nil)
		return
	}

	if c.userID == "" {
		c.logger.Warn().Msg("resolve-direct before identify")
		c.sendAck(frame.ID, false, nil)
		return
	}

	other, err := c.store.Users.GetByUsername(ctx, payload.OtherUsername)
	if err != nil {
		c.logger.Warn().Err(err).Str("other_username", payload.OtherUsername).Msg("resolve-direct peer lookup failed")
		c.sendAck(frame.ID, false, nil)
		return
	}

	conv, err := store.ResolveDirect(ctx, c.store.Conversations, c.userID, other.ID)
	if err != nil {
		c.logger.Warn().Err(err).Str("other_user_id", other.ID).Msg("resolve-direct failed")
		c.sendAck(frame.ID, false, nil)
		return
	}

	c.hub.Join(c, conv.ID)
	c.hub.JoinUsers(conv.MemberIDs, conv.ID)

	// Members whose connections are now subscribed have the backlog on a
	// live client; record the delivery.
	if online := c.hub.OnlineAmong(conv.MemberIDs); len(online) > 0 {
		if err := c.store.Messages.AddDelivered(ctx, conv.ID, online); err != nil {
			c.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("Failed to record delivery on resolve")
		}
	}

	c.sendAck(frame.ID, true, ResolveDirectAck{
		ConversationID: conv.ID,
		Type:           string(conv.Type),
		MemberIDs:      conv.MemberIDs,
	})
}

// handleSendMessage persists the message, then broadcasts the stored record
// to the conversation topic. Fire and forget; failures are logged.
func (c *Client) handleSendMessage(ctx context.Context, frame Frame) {
	var payload SendMessagePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid send-message payload")
		return
	}

	senderID := payload.SenderID
	if senderID == "" {
		senderID = c.userID
	}
	if payload.ConversationID == "" || senderID == "" || payload.Text == "" {
		c.logger.Warn().Msg("send-message missing conversation, sender, or text")
		return
	}

	stored, err := store.Submit(ctx, c.store.Messages, payload.ConversationID, senderID, payload.Text, payload.ClientToken)
	if err != nil {
		c.logger.Error().Err(err).Str("conversation_id", payload.ConversationID).Msg("Failed to persist message")
		return
	}

	c.hub.BroadcastTopic(payload.ConversationID, EventMessageNew, stored)
}

// handleMarkSeen marks the conversation's messages seen by this connection's
// user and broadcasts a seen notice only when something actually changed, so
// a repeated mark-seen never produces a second notification.
func (c *Client) handleMarkSeen(ctx context.Context, frame Frame) {
	var payload MarkSeenPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid mark-seen payload")
		return
	}

	if c.userID == "" {
		return
	}

	// Legacy room names carry no receipt state; reject before touching storage.
	if !store.IsIdentity(payload.ConversationID) {
		c.logger.Warn().Str("conversation_id", payload.ConversationID).Msg("mark-seen with malformed conversation identity")
		return
	}

	modified, err := c.store.Messages.MarkSeen(ctx, payload.ConversationID, c.userID)
	if err != nil {
		c.logger.Error().Err(err).Str("conversation_id", payload.ConversationID).Msg("Failed to mark messages seen")
		return
	}

	if modified > 0 {
		c.hub.BroadcastTopic(payload.ConversationID, EventMessagesSeen, SeenNotice{
			ConversationID: payload.ConversationID,
			UserID:         c.userID,
		})
	}
}

// handleTyping relays the indicator to every other connection in the topic.
func (c *Client) handleTyping(frame Frame) {
	var payload TypingPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.ConversationID == "" {
		c.logger.Warn().Err(err).Msg("Client sent invalid typing payload")
		return
	}

	c.hub.RelayTopic(payload.ConversationID, c, EventTyping, payload)
}

// sendAck queues the tagged acknowledgement reply. Requests without an ID did
// not ask for one. Every handler with an acknowledgement contract calls this
// on success and on failure, so a waiting caller is never left hanging.
func (c *Client) sendAck(ackID string, ok bool, payload any) {
	if ackID == "" {
		return
	}

	data, err := json.Marshal(ackFrame{Event: EventAck, ID: ackID, OK: ok, Payload: payload})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode ack frame")
		return
	}

	// A connection too backed up to take its own ack is treated like the
	// hub's slow-client path: drop it so the caller at least sees the close
	// instead of hanging on a reply that will never come.
	if err := c.queue(data); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue ack frame, dropping connection")
		c.hub.Unregister(c)
	}
}

// queue places a frame on the send channel without blocking. Terminated
// connections are refused rather than risking a send into a dead queue.
func (c *Client) queue(data []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("client connection terminated")
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("client send queue full")
	}
}

// WritePump writes queued frames to the websocket connection and keeps the
// heartbeat alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeQueuedMessage(message) {
				return
			}

		case <-c.done:
			c.writeCloseMessage()
			return

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame pulled from the send channel.
// Returns false when the write pump should terminate.
func (c *Client) writeQueuedMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writeCloseMessage sends the websocket close frame on teardown.
func (c *Client) writeCloseMessage() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on close")
		return
	}

	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// writePingMessage sends the periodic heartbeat Ping.
// Returns false when the write pump should terminate.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
