/*
Package handler provides the HTTP handlers and routing setup for the tidechat server.

This file defines the main Router, applying middleware like logging, CORS, and
IP-based rate limiting before delegating requests to the REST and websocket handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"tidechat/internal/pkg/limiter"
	"tidechat/internal/pkg/logx"
	"tidechat/internal/pkg/resp"
)

const (
	ConnectRate  = 1.0
	ConnectBurst = 5
	GroupRate    = 0.1
	GroupBurst   = 3
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global
// and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)
	groupLimiter := limiter.NewIPRateLimiter(rate.Limit(GroupRate), GroupBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "tidechat",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/users", HandleCreateUser(deps))
		api.Get("/users", HandleGetUsersByIDs(deps))
		api.Get("/users-all", HandleListUsers(deps))

		api.Get("/users/{userID}/conversations", HandleListConversations(deps))
		api.Get("/users/{userID}/unread-counts", HandleUnreadCounts(deps))

		api.Post("/conversations/direct", HandleResolveDirect(deps))

		rateLimitedGroupHandler := groupLimiter.Middleware(HandleCreateGroup(deps))
		api.Post("/conversations/group", http.HandlerFunc(rateLimitedGroupHandler.ServeHTTP))

		api.Get("/rooms/{id}/messages", HandleRecentMessages(deps))
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
