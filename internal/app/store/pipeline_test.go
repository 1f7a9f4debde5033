package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidechat/internal/app/store"
	"tidechat/internal/app/store/memstore"
)

func TestSubmitInitialReceipts(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convID := uuid.New().String()

	m, err := store.Submit(ctx, st.Messages, convID, "alice-id", "hello", "tok-1")
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, convID, m.ConversationID)
	assert.Equal(t, []string{"alice-id"}, m.DeliveredTo)
	assert.Empty(t, m.SeenBy)
	assert.Equal(t, "tok-1", m.ClientToken)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestSubmitLegacyRoomTarget(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	m, err := store.Submit(ctx, st.Messages, "lobby", "alice-id", "hi all", "")
	require.NoError(t, err)

	assert.Empty(t, m.ConversationID)
	assert.Equal(t, "lobby", m.RoomID)

	got, err := st.Messages.Recent(ctx, "lobby", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, m.ID, got[0].ID)
}

func TestMarkSeenTransitions(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convID := uuid.New().String()

	_, err := store.Submit(ctx, st.Messages, convID, "alice-id", "one", "")
	require.NoError(t, err)
	_, err = store.Submit(ctx, st.Messages, convID, "alice-id", "two", "")
	require.NoError(t, err)

	modified, err := st.Messages.MarkSeen(ctx, convID, "bob-id")
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	msgs, err := st.Messages.Recent(ctx, convID, 10)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.Contains(t, m.SeenBy, "bob-id")
		assert.ElementsMatch(t, []string{"alice-id", "bob-id"}, m.DeliveredTo)
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convID := uuid.New().String()

	_, err := store.Submit(ctx, st.Messages, convID, "alice-id", "one", "")
	require.NoError(t, err)

	modified, err := st.Messages.MarkSeen(ctx, convID, "bob-id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	modified, err = st.Messages.MarkSeen(ctx, convID, "bob-id")
	require.NoError(t, err)
	assert.Zero(t, modified)
}

func TestMarkSeenSkipsOwnMessages(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convID := uuid.New().String()

	_, err := store.Submit(ctx, st.Messages, convID, "alice-id", "mine", "")
	require.NoError(t, err)

	modified, err := st.Messages.MarkSeen(ctx, convID, "alice-id")
	require.NoError(t, err)
	assert.Zero(t, modified)

	msgs, err := st.Messages.Recent(ctx, convID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].SeenBy)
}

func TestUnreadCounts(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convA := uuid.New().String()
	convB := uuid.New().String()

	for i := 0; i < 3; i++ {
		_, err := store.Submit(ctx, st.Messages, convA, "alice-id", "ping", "")
		require.NoError(t, err)
	}
	_, err := store.Submit(ctx, st.Messages, convB, "carol-id", "ping", "")
	require.NoError(t, err)
	_, err = store.Submit(ctx, st.Messages, convB, "bob-id", "pong", "")
	require.NoError(t, err)

	counts, err := st.Messages.UnreadCounts(ctx, "bob-id")
	require.NoError(t, err)
	assert.ElementsMatch(t, []store.UnreadCount{
		{ConversationID: convA, Count: 3},
		{ConversationID: convB, Count: 1},
	}, counts)

	_, err = st.Messages.MarkSeen(ctx, convA, "bob-id")
	require.NoError(t, err)

	counts, err = st.Messages.UnreadCounts(ctx, "bob-id")
	require.NoError(t, err)
	assert.Equal(t, []store.UnreadCount{{ConversationID: convB, Count: 1}}, counts)
}

func TestAddDeliveredUnion(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convID := uuid.New().String()

	_, err := store.Submit(ctx, st.Messages, convID, "alice-id", "hi", "")
	require.NoError(t, err)

	require.NoError(t, st.Messages.AddDelivered(ctx, convID, []string{"bob-id", "alice-id"}))
	require.NoError(t, st.Messages.AddDelivered(ctx, convID, []string{"bob-id"}))

	msgs, err := st.Messages.Recent(ctx, convID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.ElementsMatch(t, []string{"alice-id", "bob-id"}, msgs[0].DeliveredTo)
	assert.Empty(t, msgs[0].SeenBy)

	// Empty receiver sets are a no-op, not an error.
	require.NoError(t, st.Messages.AddDelivered(ctx, convID, nil))
}

func TestRecentOldestFirst(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	convID := uuid.New().String()

	bodies := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, b := range bodies {
		_, err := store.Submit(ctx, st.Messages, convID, "alice-id", b, "")
		require.NoError(t, err)
	}

	msgs, err := store.RecentOldestFirst(ctx, st.Messages, convID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].Body)
	assert.Equal(t, "m4", msgs[1].Body)
	assert.Equal(t, "m5", msgs[2].Body)

	all, err := store.RecentOldestFirst(ctx, st.Messages, convID, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "m1", all[0].Body)
	assert.Equal(t, "m5", all[4].Body)
}

func TestIsIdentity(t *testing.T) {
	assert.True(t, store.IsIdentity(uuid.New().String()))
	assert.False(t, store.IsIdentity("lobby"))
	assert.False(t, store.IsIdentity(""))
}
