/*
Package handler provides HTTP handlers for the user directory endpoints.
*/
package handler

import (
	"net/http"
	"strings"

	"tidechat/internal/app/store"
	"tidechat/internal/pkg/errs"
	"tidechat/internal/pkg/logx"
	"tidechat/internal/pkg/req"
	"tidechat/internal/pkg/resp"
)

type CreateUserInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// HandleCreateUser creates or fetches a user by username. Re-posting an
// existing username returns the existing record.
func HandleCreateUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateUserInput

		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Username == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUsernameRequired))
			return
		}

		user, err := store.EnsureUser(r.Context(), deps.Store.Users, input.Username, input.DisplayName)
		if err != nil {
			logx.Error(err, "Failed to create user", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, user)
	}
}

// HandleGetUsersByIDs bulk-fetches users: /api/users?ids=id1,id2.
// Malformed identifiers are filtered out before the store is queried.
func HandleGetUsersByIDs(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idsParam := r.URL.Query().Get("ids")
		if idsParam == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ids := []string{}
		for _, id := range strings.Split(idsParam, ",") {
			if id != "" && store.IsIdentity(id) {
				ids = append(ids, id)
			}
		}

		if len(ids) == 0 {
			resp.RespondSuccess(w, r, []store.User{})
			return
		}

		users, err := deps.Store.Users.GetByIDs(r.Context(), ids)
		if err != nil {
			logx.Error(err, "Failed to fetch users by ids")
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

// HandleListUsers lists the full user directory, oldest account first, for
// starting chats with offline users.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := deps.Store.Users.ListAll(r.Context())
		if err != nil {
			logx.Error(err, "Failed to list users")
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}
