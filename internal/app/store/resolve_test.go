package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidechat/internal/app/store"
	"tidechat/internal/app/store/memstore"
)

func TestDirectKeySymmetric(t *testing.T) {
	membersAB, keyAB := store.DirectKey("user-a", "user-b")
	membersBA, keyBA := store.DirectKey("user-b", "user-a")

	assert.Equal(t, keyAB, keyBA)
	assert.Equal(t, membersAB, membersBA)
	assert.Equal(t, "user-a:user-b", keyAB)
}

func TestResolveDirectSameConversationBothOrders(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	first, err := store.ResolveDirect(ctx, st.Conversations, "user-a", "user-b")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, store.ConversationDirect, first.Type)
	assert.Equal(t, []string{"user-a", "user-b"}, first.MemberIDs)

	second, err := store.ResolveDirect(ctx, st.Conversations, "user-b", "user-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveDirectRejectsSelf(t *testing.T) {
	st := memstore.New()

	_, err := store.ResolveDirect(context.Background(), st.Conversations, "user-a", "user-a")
	assert.ErrorIs(t, err, store.ErrSameUser)
}

func TestResolveDirectConcurrentCreatesOne(t *testing.T) {
	const callers = 32

	ctx := context.Background()
	st := memstore.New()

	start := make(chan struct{})
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			a, b := "user-a", "user-b"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := store.ResolveDirect(ctx, st.Conversations, a, b)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = conv.ID
		}(i)
	}

	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	convos, err := st.Conversations.ListForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, convos, 1)
}

func TestEnsureUserIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	first, err := store.EnsureUser(ctx, st.Users, "alice", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.EnsureUser(ctx, st.Users, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice", second.DisplayName)

	all, err := st.Users.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnsureUserConcurrentCreatesOne(t *testing.T) {
	const callers = 16

	ctx := context.Background()
	st := memstore.New()

	start := make(chan struct{})
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			u, err := store.EnsureUser(ctx, st.Users, "alice", "")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = u.ID
		}(i)
	}

	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestCreateGroupRequiresTwoDistinctMembers(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	_, err := store.CreateGroup(ctx, st.Conversations, []string{"user-a"}, "Group")
	assert.ErrorIs(t, err, store.ErrTooFewMembers)

	_, err = store.CreateGroup(ctx, st.Conversations, []string{"user-a", "user-a"}, "Group")
	assert.ErrorIs(t, err, store.ErrTooFewMembers)
}

func TestCreateGroupNeverDeduplicates(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	members := []string{"user-a", "user-b", "user-c"}

	first, err := store.CreateGroup(ctx, st.Conversations, members, "Team")
	require.NoError(t, err)

	second, err := store.CreateGroup(ctx, st.Conversations, members, "Team")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, first.ParticipantsKey)
	assert.Equal(t, store.ConversationGroup, second.Type)

	convos, err := st.Conversations.ListForUser(ctx, "user-c")
	require.NoError(t, err)
	assert.Len(t, convos, 2)
}

func TestCreateGroupCollapsesDuplicateMembers(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	conv, err := store.CreateGroup(ctx, st.Conversations, []string{"user-a", "user-b", "user-a"}, "Pair")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, conv.MemberIDs)
}
