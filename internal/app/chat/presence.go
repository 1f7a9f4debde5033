/*
Package chat contains the real-time core: per-connection clients, the hub event
loop that owns presence and topic membership, and the fan-out broadcaster.

This file defines the presence Registry, the process-local map from user
identity to the set of that user's live connections. Presence is deliberately
per-instance: a deployment running several server processes has per-process
presence visibility only.
*/
package chat

// PresenceUser is one row of a presence snapshot.
type PresenceUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// presenceEntry tracks the live connections of one identified user. An entry
// never exists with an empty connection set.
type presenceEntry struct {
	userID   string
	username string
	conns    map[string]struct{}
}

// Registry maps user identities to their live connections. It carries no
// internal locking: all mutation is serialized through the single hub run
// loop that owns it, so concurrent callers are queued, never interleaved.
type Registry struct {
	entries map[string]*presenceEntry
}

// NewRegistry returns an empty presence registry. One is constructed per hub
// at server start and torn down with it.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*presenceEntry)}
}

// Register adds connID to the user's connection set, creating the entry on
// the user's first connection. Idempotent.
func (r *Registry) Register(connID, userID, username string) {
	entry, ok := r.entries[userID]
	if !ok {
		entry = &presenceEntry{
			userID:   userID,
			username: username,
			conns:    make(map[string]struct{}),
		}
		r.entries[userID] = entry
	}
	entry.conns[connID] = struct{}{}
}

// Unregister removes connID from the user's connection set and deletes the
// entry when its last connection drops. No-op for unknown identities.
func (r *Registry) Unregister(connID, userID string) {
	entry, ok := r.entries[userID]
	if !ok {
		return
	}
	delete(entry.conns, connID)
	if len(entry.conns) == 0 {
		delete(r.entries, userID)
	}
}

// Snapshot returns the distinct (userID, username) pairs currently registered,
// in no particular order. Pure read.
func (r *Registry) Snapshot() []PresenceUser {
	list := make([]PresenceUser, 0, len(r.entries))
	for _, entry := range r.entries {
		list = append(list, PresenceUser{UserID: entry.userID, Username: entry.username})
	}
	return list
}

// OnlineAmong filters userIDs down to those holding at least one connection.
func (r *Registry) OnlineAmong(userIDs []string) []string {
	online := []string{}
	for _, id := range userIDs {
		if _, ok := r.entries[id]; ok {
			online = append(online, id)
		}
	}
	return online
}
