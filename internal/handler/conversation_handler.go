/*
Package handler provides HTTP handlers for conversation resolution, group
creation, and per-user conversation listings.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tidechat/internal/app/store"
	"tidechat/internal/pkg/errs"
	"tidechat/internal/pkg/logx"
	"tidechat/internal/pkg/req"
	"tidechat/internal/pkg/resp"
)

type ResolveDirectInput struct {
	// Me and Other are usernames, not identities.
	Me    string `json:"me"`
	Other string `json:"other"`
}

// HandleResolveDirect returns the direct conversation between two users,
// creating it on first resolution. Losing the concurrent-creation race is
// absorbed inside the resolver and never surfaces here.
func HandleResolveDirect(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input ResolveDirectInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Me == "" || input.Other == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		meUser, err := deps.Store.Users.GetByUsername(r.Context(), input.Me)
		if err == nil {
			var otherUser *store.User
			otherUser, err = deps.Store.Users.GetByUsername(r.Context(), input.Other)
			if err == nil {
				conv, resolveErr := store.ResolveDirect(r.Context(), deps.Store.Conversations, meUser.ID, otherUser.ID)
				switch {
				case resolveErr == nil:
					resp.RespondSuccess(w, r, conv)
				case errors.Is(resolveErr, store.ErrSameUser):
					resp.RespondError(w, r, errs.NewError(errs.ErrSelfConversation))
				default:
					logx.Error(resolveErr, "Failed to resolve direct conversation")
					resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
				}
				return
			}
		}

		if errors.Is(err, store.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}
		logx.Error(err, "Failed to look up users for direct conversation")
		resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
	}
}

type CreateGroupInput struct {
	MemberIDs []string `json:"memberIds"`
	Title     string   `json:"title,omitempty"`
}

// HandleCreateGroup creates a new group conversation. Only the listed
// members' currently-online connections are joined to the fan-out topic;
// members who come online later must open the conversation themselves.
func HandleCreateGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateGroupInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		for _, id := range input.MemberIDs {
			if !store.IsIdentity(id) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidIdentifier))
				return
			}
		}

		title := input.Title
		if title == "" {
			title = "Group"
		}

		conv, err := store.CreateGroup(r.Context(), deps.Store.Conversations, input.MemberIDs, title)
		if errors.Is(err, store.ErrTooFewMembers) {
			resp.RespondError(w, r, errs.NewError(errs.ErrGroupMembersRequired, store.MinGroupMembers))
			return
		}
		if err != nil {
			logx.Error(err, "Failed to create group conversation")
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		deps.Hub.JoinUsers(conv.MemberIDs, conv.ID)

		resp.RespondSuccess(w, r, conv)
	}
}

// HandleListConversations returns all conversations containing the user,
// most recently updated first.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !store.IsIdentity(userID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidIdentifier))
			return
		}

		convos, err := deps.Store.Conversations.ListForUser(r.Context(), userID)
		if err != nil {
			logx.Error(err, "Failed to list conversations", "user_id", userID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, convos)
	}
}

// HandleUnreadCounts returns the user's per-conversation unread counts.
// Conversations with nothing unread are absent from the result.
func HandleUnreadCounts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if !store.IsIdentity(userID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidIdentifier))
			return
		}

		counts, err := deps.Store.Messages.UnreadCounts(r.Context(), userID)
		if err != nil {
			logx.Error(err, "Failed to get unread counts", "user_id", userID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, counts)
	}
}
