package websocket

import (
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"just3sec/core"
	"just3sec/realtime"
)

const writeWait = 5 * time.Second

// Handler returns an http.Handler that upgrades to WebSocket and streams
// events from the hub. A ?user= query narrows the stream to one player.
func Handler(hub *realtime.Hub) http.Handler {
	upgrader := gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := core.Anonymous
		if raw := r.URL.Query().Get("user"); raw != "" {
			normalized, err := core.NormalizeUserID(core.UserID(raw))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			user = normalized
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.SubscribeUser(256, user)
		defer hub.Unsubscribe(id)

		// reader: notices the client going away
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			}
		}
	})
}
