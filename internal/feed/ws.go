package feed

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skrblai/percy/internal/logging"
)

// WSHandler mirrors the feed over a WebSocket for dashboards that prefer a
// bidirectional transport. Frames are the same JSON messages the SSE stream
// carries.
type WSHandler struct {
	hub       *Hub
	heartbeat time.Duration
	upgrader  websocket.Upgrader
	log       *logging.Logger
}

// NewWSHandler creates the WebSocket endpoint handler.
func NewWSHandler(hub *Hub, heartbeat time.Duration, log *logging.Logger) *WSHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &WSHandler{
		hub:       hub,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log.Sub("feed-ws"),
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Identity: r.URL.Query().Get("identity"),
		AgentID:  r.URL.Query().Get("agent"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(filter)
	defer h.hub.Unsubscribe(sub.ID)

	// The read loop exists only to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ack := Message{
		Type:      MsgConnection,
		Text:      "connected",
		ConnID:    sub.ID,
		Timestamp: time.Now(),
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			beat := Message{Type: MsgHeartbeat, Timestamp: time.Now()}
			if err := conn.WriteJSON(beat); err != nil {
				return
			}
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
