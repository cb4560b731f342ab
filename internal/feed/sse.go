package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEHandler streams the feed over text/event-stream.
type SSEHandler struct {
	hub       *Hub
	heartbeat time.Duration
}

// NewSSEHandler creates the SSE endpoint handler.
func NewSSEHandler(hub *Hub, heartbeat time.Duration) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &SSEHandler{hub: hub, heartbeat: heartbeat}
}

// ServeHTTP subscribes the connection with the query filters and streams
// frames until the client goes away. Filter changes require a new
// connection; instant filtering is the client's job.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	filter := Filter{
		Identity: r.URL.Query().Get("identity"),
		AgentID:  r.URL.Query().Get("agent"),
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.hub.Subscribe(filter)
	defer h.hub.Unsubscribe(sub.ID)

	ack := Message{
		Type:      MsgConnection,
		Text:      "connected",
		ConnID:    sub.ID,
		Timestamp: time.Now(),
	}
	if err := writeSSE(w, h.hub.NextSeq(), ack); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			beat := Message{Type: MsgHeartbeat, Timestamp: time.Now()}
			if err := writeSSE(w, h.hub.NextSeq(), beat); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeSSE(w, h.hub.NextSeq(), msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE frames one message as an SSE event.
func writeSSE(w http.ResponseWriter, id int64, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, msg.Type, data)
	return err
}
