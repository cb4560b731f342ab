package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrblai/percy/internal/domain"
)

// runSSE serves one streaming request in the background, publishes the given
// events once the subscription is attached, and returns the raw body after an
// orderly disconnect.
func runSSE(t *testing.T, hub *Hub, target string, events []domain.ActivityEvent) string {
	t.Helper()

	h := NewSSEHandler(hub, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	require.Eventually(t, func() bool {
		return hub.Count() == 1
	}, time.Second, 5*time.Millisecond)

	for _, ev := range events {
		hub.Publish(ev)
	}

	// Give the write loop a moment to drain the subscription buffer.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	return rec.Body.String()
}

func TestSSEHandler_FramesEvents(t *testing.T) {
	hub := newTestHub(nil)

	body := runSSE(t, hub, "/api/v1/feed", []domain.ActivityEvent{
		{ID: "ev-1", AgentID: "social", Status: domain.StatusSuccess},
	})

	assert.Contains(t, body, "event: connection")
	assert.Contains(t, body, "event: agent_complete")
	assert.Contains(t, body, `"id":"ev-1"`)
	assert.Contains(t, body, "id: ")
	assert.Contains(t, body, "data: ")
}

func TestSSEHandler_QueryFilters(t *testing.T) {
	hub := newTestHub(nil)

	body := runSSE(t, hub, "/api/v1/feed?identity=user-1", []domain.ActivityEvent{
		{ID: "ev-mine", AgentID: "social", UserID: "user-1", Status: domain.StatusRunning},
		{ID: "ev-other", AgentID: "social", UserID: "user-2", Status: domain.StatusRunning},
	})

	assert.Contains(t, body, "ev-mine")
	assert.NotContains(t, body, "ev-other")
}

func TestSSEHandler_UnsubscribesOnDisconnect(t *testing.T) {
	hub := newTestHub(nil)

	runSSE(t, hub, "/api/v1/feed", nil)

	assert.Equal(t, 0, hub.Count())
}
