/*
Package chat contains the real-time core: per-connection clients, the hub event
loop that owns presence and topic membership, and the fan-out broadcaster.

This file defines the Hub. A single Run loop owns the presence registry and
the topic subscription tables, so neither needs locking: every mutation is a
command processed one at a time, and a snapshot observed after any completed
mutation reflects it. Persistence is never touched from the loop; callers
persist first and hand the hub an already-durable payload to fan out.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"tidechat/internal/pkg/logx"
)

const broadcastChannelBuffer = 1024

type identifyCmd struct {
	client   *Client
	userID   string
	username string
}

type joinCmd struct {
	client *Client
	topic  string
}

type joinUsersCmd struct {
	userIDs []string
	topic   string
}

type broadcastCmd struct {
	// topic scopes delivery; empty means every live connection.
	topic string

	// exclude skips one connection (typing is never echoed to its sender).
	exclude *Client

	data []byte
}

type onlineQuery struct {
	userIDs []string
	reply   chan []string
}

type snapshotQuery struct {
	reply chan []PresenceUser
}

// Hub coordinates every live connection of one server instance. It owns the
// presence Registry and the per-topic subscription sets, and fans broadcast
// frames out to subscribed connections.
type Hub struct {
	// registry is the presence map; hub-loop owned, see package comment.
	registry *Registry

	// clients is the set of live connections, identified or not.
	clients map[*Client]struct{}

	// identity holds the hub's own view of who owns each connection.
	identity map[*Client]PresenceUser

	// userClients indexes live connections by user identity so that joining
	// "all connections of a user" to a topic is a map lookup.
	userClients map[string]map[*Client]struct{}

	// topics maps a fan-out topic to its subscribed connections.
	topics map[string]map[*Client]struct{}

	// clientTopics is the reverse index used for disconnect cleanup.
	clientTopics map[*Client]map[string]struct{}

	register    chan *Client
	unregister  chan *Client
	identify    chan identifyCmd
	join        chan joinCmd
	joinUsers   chan joinUsersCmd
	broadcast   chan broadcastCmd
	online      chan onlineQuery
	snapshot    chan snapshotQuery

	// quit signals the Run loop to stop; closed exactly once by Shutdown.
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub with a fresh presence registry and starts its Run loop.
func NewHub() *Hub {
	h := &Hub{
		registry:     NewRegistry(),
		clients:      make(map[*Client]struct{}),
		identity:     make(map[*Client]PresenceUser),
		userClients:  make(map[string]map[*Client]struct{}),
		topics:       make(map[string]map[*Client]struct{}),
		clientTopics: make(map[*Client]map[string]struct{}),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		identify:     make(chan identifyCmd),
		join:         make(chan joinCmd),
		joinUsers:    make(chan joinUsersCmd),
		broadcast:    make(chan broadcastCmd, broadcastChannelBuffer),
		online:       make(chan onlineQuery),
		snapshot:     make(chan snapshotQuery),
		quit:         make(chan struct{}),
		logger:       logx.Logger().With().Str("component", "Hub").Logger(),
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// run is the single event loop that owns all hub state.
func (h *Hub) run() {
	defer h.wg.Done()

	h.logger.Info().Msg("Hub event loop started.")

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.clientTopics[c] = make(map[string]struct{})
			h.logger.Debug().Str("conn_id", c.connID).Int("total_conns", len(h.clients)).Msg("Connection registered.")

		case c := <-h.unregister:
			h.removeClient(c)

		case cmd := <-h.identify:
			h.identifyClient(cmd)

		case cmd := <-h.join:
			h.joinTopic(cmd.client, cmd.topic)

		case cmd := <-h.joinUsers:
			for _, userID := range cmd.userIDs {
				for c := range h.userClients[userID] {
					h.joinTopic(c, cmd.topic)
				}
			}

		case b := <-h.broadcast:
			h.deliver(b)

		case q := <-h.online:
			q.reply <- h.registry.OnlineAmong(q.userIDs)

		case q := <-h.snapshot:
			q.reply <- h.registry.Snapshot()

		case <-h.quit:
			for c := range h.clients {
				c.stop()
			}
			h.logger.Info().Msg("Hub event loop stopped.")
			return
		}
	}
}

// identifyClient binds a connection to a user, registers presence, and
// broadcasts the updated snapshot to every connection.
func (h *Hub) identifyClient(cmd identifyCmd) {
	if _, ok := h.clients[cmd.client]; !ok {
		return
	}

	if prev, ok := h.identity[cmd.client]; ok {
		if prev.UserID == cmd.userID {
			// Re-identifying under the same user keeps the presence entry as is.
			h.identity[cmd.client] = PresenceUser{UserID: cmd.userID, Username: cmd.username}
			return
		}
		h.detachIdentity(cmd.client, prev)
	}

	h.identity[cmd.client] = PresenceUser{UserID: cmd.userID, Username: cmd.username}
	if h.userClients[cmd.userID] == nil {
		h.userClients[cmd.userID] = make(map[*Client]struct{})
	}
	h.userClients[cmd.userID][cmd.client] = struct{}{}
	h.registry.Register(cmd.client.connID, cmd.userID, cmd.username)

	h.logger.Info().
		Str("conn_id", cmd.client.connID).
		Str("user_id", cmd.userID).
		Str("username", cmd.username).
		Msg("Connection identified.")

	h.broadcastPresence()
}

// removeClient handles a terminal disconnect: leave all topics, drop presence,
// and rebroadcast the snapshot when the connection was identified.
func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	for topic := range h.clientTopics[c] {
		delete(h.topics[topic], c)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.clientTopics, c)
	delete(h.clients, c)

	identified := false
	if who, ok := h.identity[c]; ok {
		h.detachIdentity(c, who)
		identified = true
	}

	c.stop()

	h.logger.Info().
		Str("conn_id", c.connID).
		Int("total_conns", len(h.clients)).
		Msg("Connection removed.")

	if identified {
		h.broadcastPresence()
	}
}

// detachIdentity unhooks a connection from its user without touching topics.
func (h *Hub) detachIdentity(c *Client, who PresenceUser) {
	delete(h.identity, c)
	if set, ok := h.userClients[who.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.userClients, who.UserID)
		}
	}
	h.registry.Unregister(c.connID, who.UserID)
}

// joinTopic is the idempotent subscribe primitive.
func (h *Hub) joinTopic(c *Client, topic string) {
	if _, ok := h.clients[c]; !ok || topic == "" {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	h.clientTopics[c][topic] = struct{}{}
}

// broadcastPresence pushes the full snapshot to every live connection. It runs
// inside the loop, directly after the registry mutation it reports, so no
// snapshot ever misses a completed mutation.
func (h *Hub) broadcastPresence() {
	data, err := encodePush(EventPresence, h.registry.Snapshot())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode presence snapshot.")
		return
	}
	h.deliver(broadcastCmd{data: data})
}

// deliver fans a frame out to its scope. Slow connections whose send queues
// are full get dropped and removed, mirroring a dead peer.
func (h *Hub) deliver(b broadcastCmd) {
	var targets map[*Client]struct{}
	if b.topic == "" {
		targets = h.clients
	} else {
		targets = h.topics[b.topic]
	}

	var slow []*Client
	for c := range targets {
		if c == b.exclude {
			continue
		}
		select {
		case c.send <- b.data:
		default:
			h.logger.Warn().
				Str("conn_id", c.connID).
				Str("topic", b.topic).
				Msg("Connection send queue full, dropping connection.")
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.removeClient(c)
	}
}

// Register adds a live connection to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

// Unregister removes a connection. Safe to call more than once; terminal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Identify binds the connection to the given user and broadcasts presence.
func (h *Hub) Identify(c *Client, userID, username string) {
	select {
	case h.identify <- identifyCmd{client: c, userID: userID, username: username}:
	case <-h.quit:
	}
}

// Join subscribes one connection to a fan-out topic. Idempotent.
func (h *Hub) Join(c *Client, topic string) {
	select {
	case h.join <- joinCmd{client: c, topic: topic}:
	case <-h.quit:
	}
}

// JoinUsers subscribes every live connection of the given users to the topic,
// so a user with several open connections receives all subsequent traffic on
// each of them.
func (h *Hub) JoinUsers(userIDs []string, topic string) {
	select {
	case h.joinUsers <- joinUsersCmd{userIDs: userIDs, topic: topic}:
	case <-h.quit:
	}
}

// BroadcastAll pushes an event frame to every live connection.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.push(broadcastCmd{}, event, payload)
}

// BroadcastTopic pushes an event frame to the topic's subscribers.
func (h *Hub) BroadcastTopic(topic, event string, payload any) {
	h.push(broadcastCmd{topic: topic}, event, payload)
}

// RelayTopic pushes an event frame to the topic's subscribers except one
// connection, which is how typing avoids echoing back to its sender.
func (h *Hub) RelayTopic(topic string, exclude *Client, event string, payload any) {
	h.push(broadcastCmd{topic: topic, exclude: exclude}, event, payload)
}

func (h *Hub) push(b broadcastCmd, event string, payload any) {
	data, err := encodePush(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode broadcast frame.")
		return
	}
	b.data = data

	select {
	case h.broadcast <- b:
	case <-h.quit:
	}
}

// OnlineAmong filters userIDs down to those currently holding a connection.
func (h *Hub) OnlineAmong(userIDs []string) []string {
	q := onlineQuery{userIDs: userIDs, reply: make(chan []string, 1)}
	select {
	case h.online <- q:
		return <-q.reply
	case <-h.quit:
		return nil
	}
}

// Snapshot returns the current presence snapshot.
func (h *Hub) Snapshot() []PresenceUser {
	q := snapshotQuery{reply: make(chan []PresenceUser, 1)}
	select {
	case h.snapshot <- q:
		return <-q.reply
	case <-h.quit:
		return nil
	}
}

// Shutdown stops the Run loop and waits for it to exit.
func (h *Hub) Shutdown() {
	h.quitOnce.Do(func() { close(h.quit) })
	h.wg.Wait()
	h.logger.Info().Msg("Hub shutdown complete.")
}
