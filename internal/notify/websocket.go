package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mailgrove/mailgrove/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// wireEvent is the JSON frame written to websocket clients.
type wireEvent struct {
	Event   string               `json:"event"`
	Payload models.NewEmailEvent `json:"payload"`
}

// ServeConn pumps hub events for the given address to a websocket connection
// until the client disconnects or the subscriber is closed. It owns the
// connection and closes it on return.
func ServeConn(hub *Hub, conn *websocket.Conn, email string) {
	sub := hub.Subscribe(email)
	defer func() {
		hub.Unsubscribe(email, sub)
		conn.Close()
	}()

	// Discard inbound frames; the socket is publish-only. Reader errors end
	// the session.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-sub.Events():
			frame, err := json.Marshal(wireEvent{Event: "newEmail", Payload: event})
			if err != nil {
				slog.Error("failed to encode notification", "channel", email, "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
