/*
Package memstore provides an in-memory implementation of the store interfaces.

It enforces the same uniqueness constraints as the Postgres schema (username,
direct-conversation participants key) atomically under a single mutex, which
makes it a faithful stand-in for exercising the optimistic insert-then-reread
race handling in tests and local development.
*/
package memstore

import (
	"context"
	"sort"
	"sync"

	"tidechat/internal/app/store"
)

// New returns a store.Store backed entirely by process memory.
func New() *store.Store {
	shared := &state{
		usersByID:    make(map[string]store.User),
		usernames:    make(map[string]string),
		convos:       make(map[string]store.Conversation),
		directByKey:  make(map[string]string),
		messagesByID: make(map[string]store.Message),
	}
	return &store.Store{
		Users:         &userStore{s: shared},
		Conversations: &conversationStore{s: shared},
		Messages:      &messageStore{s: shared},
	}
}

// state holds every collection under one mutex so cross-collection reads stay
// consistent and uniqueness checks are atomic with their inserts.
type state struct {
	mu sync.Mutex

	usersByID map[string]store.User
	usernames map[string]string // username -> user id

	convos      map[string]store.Conversation
	directByKey map[string]string // participants key -> conversation id

	messagesByID map[string]store.Message
	messageOrder []string // insertion order, oldest first
}

type userStore struct{ s *state }

var _ store.UserStore = (*userStore)(nil)

func (us *userStore) Insert(_ context.Context, u *store.User) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	if _, taken := us.s.usernames[u.Username]; taken {
		return store.ErrDuplicateKey
	}
	us.s.usernames[u.Username] = u.ID
	us.s.usersByID[u.ID] = *u
	return nil
}

func (us *userStore) GetByUsername(_ context.Context, username string) (*store.User, error) {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	id, ok := us.s.usernames[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := us.s.usersByID[id]
	return &u, nil
}

func (us *userStore) GetByIDs(_ context.Context, ids []string) ([]store.User, error) {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	users := []store.User{}
	for _, id := range ids {
		if u, ok := us.s.usersByID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (us *userStore) ListAll(_ context.Context) ([]store.User, error) {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	users := make([]store.User, 0, len(us.s.usersByID))
	for _, u := range us.s.usersByID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

type conversationStore struct{ s *state }

var _ store.ConversationStore = (*conversationStore)(nil)

func (cs *conversationStore) Insert(_ context.Context, c *store.Conversation) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	if c.Type == store.ConversationDirect {
		if _, taken := cs.s.directByKey[c.ParticipantsKey]; taken {
			return store.ErrDuplicateKey
		}
		cs.s.directByKey[c.ParticipantsKey] = c.ID
	}
	cs.s.convos[c.ID] = *c
	return nil
}

func (cs *conversationStore) GetByID(_ context.Context, id string) (*store.Conversation, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	c, ok := cs.s.convos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (cs *conversationStore) GetDirectByKey(_ context.Context, key string) (*store.Conversation, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	id, ok := cs.s.directByKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := cs.s.convos[id]
	return &c, nil
}

func (cs *conversationStore) ListForUser(_ context.Context, userID string) ([]store.Conversation, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()

	convos := []store.Conversation{}
	for _, c := range cs.s.convos {
		if contains(c.MemberIDs, userID) {
			convos = append(convos, c)
		}
	}
	sort.Slice(convos, func(i, j int) bool {
		return convos[i].UpdatedAt.After(convos[j].UpdatedAt)
	})
	return convos, nil
}

type messageStore struct{ s *state }

var _ store.MessageStore = (*messageStore)(nil)

func (ms *messageStore) Insert(_ context.Context, m *store.Message) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()

	ms.s.messagesByID[m.ID] = cloneMessage(*m)
	ms.s.messageOrder = append(ms.s.messageOrder, m.ID)
	return nil
}

func (ms *messageStore) Recent(_ context.Context, target string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = store.DefaultRecentLimit
	}

	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()

	byConversation := store.IsIdentity(target)

	msgs := []store.Message{}
	for i := len(ms.s.messageOrder) - 1; i >= 0 && len(msgs) < limit; i-- {
		m := ms.s.messagesByID[ms.s.messageOrder[i]]
		if byConversation && m.ConversationID != target {
			continue
		}
		if !byConversation && m.RoomID != target {
			continue
		}
		msgs = append(msgs, cloneMessage(m))
	}
	return msgs, nil
}

func (ms *messageStore) MarkSeen(_ context.Context, conversationID, viewerID string) (int64, error) {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()

	var modified int64
	for id, m := range ms.s.messagesByID {
		if m.ConversationID != conversationID || m.SenderID == viewerID || contains(m.SeenBy, viewerID) {
			continue
		}
		m.SeenBy = append(m.SeenBy, viewerID)
		if !contains(m.DeliveredTo, viewerID) {
			m.DeliveredTo = append(m.DeliveredTo, viewerID)
		}
		ms.s.messagesByID[id] = m
		modified++
	}
	return modified, nil
}

func (ms *messageStore) AddDelivered(_ context.Context, conversationID string, receiverIDs []string) error {
	if len(receiverIDs) == 0 {
		return nil
	}

	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()

	for id, m := range ms.s.messagesByID {
		if m.ConversationID != conversationID {
			continue
		}
		for _, r := range receiverIDs {
			if !contains(m.DeliveredTo, r) {
				m.DeliveredTo = append(m.DeliveredTo, r)
			}
		}
		ms.s.messagesByID[id] = m
	}
	return nil
}

func (ms *messageStore) UnreadCounts(_ context.Context, userID string) ([]store.UnreadCount, error) {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()

	byConvo := map[string]int64{}
	for _, m := range ms.s.messagesByID {
		if m.ConversationID == "" || m.SenderID == userID || contains(m.SeenBy, userID) {
			continue
		}
		byConvo[m.ConversationID]++
	}

	counts := make([]store.UnreadCount, 0, len(byConvo))
	for id, n := range byConvo {
		counts = append(counts, store.UnreadCount{ConversationID: id, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].ConversationID < counts[j].ConversationID
	})
	return counts, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneMessage(m store.Message) store.Message {
	m.DeliveredTo = append([]string(nil), m.DeliveredTo...)
	m.SeenBy = append([]string(nil), m.SeenBy...)
	return m
}
