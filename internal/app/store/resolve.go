package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MinGroupMembers is the smallest legal membership of a group conversation.
const MinGroupMembers = 2

// ErrSameUser reports an attempt to resolve a direct conversation where both
// identities are the same user. Rejected rather than permitting a degenerate
// single-member conversation.
var ErrSameUser = errors.New("store: direct conversation requires two distinct users")

// ErrTooFewMembers reports a group creation attempt with fewer than
// MinGroupMembers distinct members.
var ErrTooFewMembers = fmt.Errorf("store: group requires at least %d distinct members", MinGroupMembers)

// DirectKey canonicalizes an unordered user pair into the sorted member slice
// and the participants key. DirectKey(a, b) and DirectKey(b, a) are identical,
// which is what makes the key usable as a uniqueness constraint.
func DirectKey(a, b string) ([]string, string) {
	members := []string{a, b}
	sort.Strings(members)
	return members, members[0] + ":" + members[1]
}

// ResolveDirect returns the direct conversation between the two users,
// creating it on first resolution. Concurrent first-time callers race on the
// participants-key uniqueness constraint: the insert loser re-reads and
// returns the winner's row, so no cross-process lock is needed.
func ResolveDirect(ctx context.Context, cs ConversationStore, userA, userB string) (*Conversation, error) {
	if userA == userB {
		return nil, ErrSameUser
	}

	members, key := DirectKey(userA, userB)

	existing, err := cs.GetDirectByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:              uuid.New().String(),
		Type:            ConversationDirect,
		MemberIDs:       members,
		ParticipantsKey: key,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = cs.Insert(ctx, conv)
	if err == nil {
		return conv, nil
	}
	if errors.Is(err, ErrDuplicateKey) {
		// Lost the creation race; the winner's row is durable now.
		return cs.GetDirectByKey(ctx, key)
	}
	return nil, err
}

// CreateGroup creates an unconditionally new group conversation. Groups are
// never deduplicated against existing groups with the same membership.
func CreateGroup(ctx context.Context, cs ConversationStore, memberIDs []string, title string) (*Conversation, error) {
	distinct := make([]string, 0, len(memberIDs))
	seen := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	if len(distinct) < MinGroupMembers {
		return nil, ErrTooFewMembers
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Type:      ConversationGroup,
		MemberIDs: distinct,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := cs.Insert(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// EnsureUser returns the user with the given username, creating it on first
// identification. Re-identifying an existing username always returns the
// existing record; the concurrent-creation race is resolved the same way as
// in ResolveDirect (insert, absorb the duplicate, re-read the winner).
func EnsureUser(ctx context.Context, us UserStore, username, displayName string) (*User, error) {
	existing, err := us.GetByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u := &User{
		ID:          uuid.New().String(),
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	err = us.Insert(ctx, u)
	if err == nil {
		return u, nil
	}
	if errors.Is(err, ErrDuplicateKey) {
		return us.GetByUsername(ctx, username)
	}
	return nil, err
}
