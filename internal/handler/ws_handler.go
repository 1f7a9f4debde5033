/*
Package handler provides the HTTP handler function for websocket connection upgrading.

HandleWebSocket rate-limits the upgrade, hands the connection to the hub, and
starts the client pumps. Identification happens in-band over the connection,
so the endpoint itself takes no parameters.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"tidechat/internal/app/chat"
	"tidechat/internal/pkg/errs"
	"tidechat/internal/pkg/limiter"
	"tidechat/internal/pkg/logx"
	"tidechat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that upgrades requests to
// websocket connections and runs the client lifecycle.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Hub, conn, deps.Store)

		deps.Hub.Register(client)

		go client.WritePump()

		logx.Info("WebSocket connection established")

		client.ReadPump()
	}
}
