/*
Package handler provides the HTTP handler for message history retrieval.
*/
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tidechat/internal/app/store"
	"tidechat/internal/pkg/errs"
	"tidechat/internal/pkg/logx"
	"tidechat/internal/pkg/resp"
)

// HandleRecentMessages returns the recent messages for a conversation or
// legacy room, oldest first: /api/rooms/{id}/messages?limit=50.
func HandleRecentMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "id")
		if target == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		limit := 0
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = parsed
		}

		messages, err := store.RecentOldestFirst(r.Context(), deps.Store.Messages, target, limit)
		if err != nil {
			logx.Error(err, "Failed to fetch messages", "target", target)
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}
