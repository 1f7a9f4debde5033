package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidechat/internal/app/chat"
	"tidechat/internal/app/store"
	"tidechat/internal/app/store/memstore"
	"tidechat/internal/configs"
	"tidechat/internal/pkg/errs"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*AppDeps, http.Handler) {
	t.Helper()

	hub := chat.NewHub()
	t.Cleanup(hub.Shutdown)

	deps := &AppDeps{
		Hub:   hub,
		Store: memstore.New(),
		Config: &configs.AppConfig{
			Environment:    "development",
			Port:           8080,
			AllowedOrigins: []string{},
		},
	}
	return deps, Router(deps)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func createUser(t *testing.T, h http.Handler, username string) store.User {
	t.Helper()

	rec, env := doJSON(t, h, http.MethodPost, "/api/users", CreateUserInput{Username: username})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, env.Code)

	var u store.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.Code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestCreateUserIdempotent(t *testing.T) {
	_, h := newTestServer(t)

	first := createUser(t, h, "alice")
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "alice", first.Username)

	second := createUser(t, h, "alice")
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateUserRequiresUsername(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/users", CreateUserInput{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrUsernameRequired, env.Code)
}

func TestGetUsersByIDsFiltersMalformed(t *testing.T) {
	_, h := newTestServer(t)

	alice := createUser(t, h, "alice")

	rec, env := doJSON(t, h, http.MethodGet, "/api/users?ids="+alice.ID+",not-an-id,", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []store.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID, users[0].ID)

	rec, env = doJSON(t, h, http.MethodGet, "/api/users?ids=not-an-id", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Empty(t, users)

	_, env = doJSON(t, h, http.MethodGet, "/api/users", nil)
	assert.Equal(t, errs.ErrInvalidParams, env.Code)
}

func TestResolveDirectEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	createUser(t, h, "alice")
	createUser(t, h, "bob")

	rec, env := doJSON(t, h, http.MethodPost, "/api/conversations/direct", ResolveDirectInput{Me: "alice", Other: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, env.Code)

	var first store.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Equal(t, store.ConversationDirect, first.Type)
	assert.Len(t, first.MemberIDs, 2)

	// Reversed order resolves to the same conversation.
	_, env = doJSON(t, h, http.MethodPost, "/api/conversations/direct", ResolveDirectInput{Me: "bob", Other: "alice"})
	var second store.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveDirectEndpointErrors(t *testing.T) {
	_, h := newTestServer(t)

	createUser(t, h, "alice")

	rec, env := doJSON(t, h, http.MethodPost, "/api/conversations/direct", ResolveDirectInput{Me: "alice", Other: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrSelfConversation, env.Code)

	rec, env = doJSON(t, h, http.MethodPost, "/api/conversations/direct", ResolveDirectInput{Me: "alice", Other: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrUserNotFound, env.Code)

	_, env = doJSON(t, h, http.MethodPost, "/api/conversations/direct", ResolveDirectInput{Me: "alice"})
	assert.Equal(t, errs.ErrInvalidParams, env.Code)
}

func TestCreateGroupEndpoint(t *testing.T) {
	_, h := newTestServer(t)

	alice := createUser(t, h, "alice")
	bob := createUser(t, h, "bob")

	rec, env := doJSON(t, h, http.MethodPost, "/api/conversations/group", CreateGroupInput{
		MemberIDs: []string{alice.ID, bob.ID},
		Title:     "Pair",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, env.Code)

	var conv store.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	assert.Equal(t, store.ConversationGroup, conv.Type)
	assert.Equal(t, "Pair", conv.Title)

	rec, env = doJSON(t, h, http.MethodPost, "/api/conversations/group", CreateGroupInput{
		MemberIDs: []string{alice.ID},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrGroupMembersRequired, env.Code)

	rec, env = doJSON(t, h, http.MethodPost, "/api/conversations/group", CreateGroupInput{
		MemberIDs: []string{alice.ID, "not-an-id"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrInvalidIdentifier, env.Code)
}

func TestListConversationsAndUnreadCounts(t *testing.T) {
	deps, h := newTestServer(t)
	ctx := context.Background()

	alice := createUser(t, h, "alice")
	bob := createUser(t, h, "bob")

	conv, err := store.ResolveDirect(ctx, deps.Store.Conversations, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = store.Submit(ctx, deps.Store.Messages, conv.ID, alice.ID, "hello", "")
	require.NoError(t, err)

	rec, env := doJSON(t, h, http.MethodGet, "/api/users/"+bob.ID+"/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var convos []store.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &convos))
	require.Len(t, convos, 1)
	assert.Equal(t, conv.ID, convos[0].ID)

	rec, env = doJSON(t, h, http.MethodGet, "/api/users/"+bob.ID+"/unread-counts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var counts []store.UnreadCount
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	assert.Equal(t, []store.UnreadCount{{ConversationID: conv.ID, Count: 1}}, counts)

	// The sender has nothing unread.
	_, env = doJSON(t, h, http.MethodGet, "/api/users/"+alice.ID+"/unread-counts", nil)
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	assert.Empty(t, counts)

	rec, env = doJSON(t, h, http.MethodGet, "/api/users/not-an-id/conversations", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrInvalidIdentifier, env.Code)
}

func TestRecentMessagesEndpoint(t *testing.T) {
	deps, h := newTestServer(t)
	ctx := context.Background()

	convID := uuid.New().String()
	for _, body := range []string{"m1", "m2", "m3"} {
		_, err := store.Submit(ctx, deps.Store.Messages, convID, "someone", body, "")
		require.NoError(t, err)
	}

	rec, env := doJSON(t, h, http.MethodGet, "/api/rooms/"+convID+"/messages?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []store.Message
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].Body)
	assert.Equal(t, "m3", msgs[1].Body)

	_, env = doJSON(t, h, http.MethodGet, "/api/rooms/"+convID+"/messages?limit=nope", nil)
	assert.Equal(t, errs.ErrInvalidParams, env.Code)
}
