package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mailgrove/mailgrove/internal/notify"
	"github.com/mailgrove/mailgrove/internal/web/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NotificationHandler upgrades authenticated connections to a websocket
// subscribed to the caller's own notification channel.
type NotificationHandler struct {
	hub *notify.Hub
}

func NewNotificationHandler(hub *notify.Hub) *NotificationHandler {
	return &NotificationHandler{hub: hub}
}

// HandleSubscribe attaches the caller to their newEmail channel.
func (h *NotificationHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user", user.Email, "error", err)
		return
	}

	go notify.ServeConn(h.hub, conn, user.Email)
}
