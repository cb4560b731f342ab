package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/logging"
)

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		Capacity:         3,
		HeartbeatSeconds: 30,
		Reconnect: config.ReconnectConfig{
			BaseDelayMs: 1,
			MaxDelayMs:  5,
			MaxAttempts: 3,
		},
	}
}

func newTestClient(cfg config.FeedConfig) *Client {
	return NewClient("http://127.0.0.1:0/feed", cfg, logging.New(nil, "silent"))
}

// sseStream frames messages the way the server does and returns a body that
// blocks after the last frame until closed.
func sseStream(t *testing.T, msgs ...Message) string {
	t.Helper()
	var b strings.Builder
	for i, msg := range msgs {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		fmt.Fprintf(&b, "id: %d\nevent: %s\ndata: %s\n\n", i+1, msg.Type, data)
	}
	return b.String()
}

func lifecycle(id, agentID string, status domain.ActivityStatus) Message {
	return Message{
		Type: TypeForStatus(status),
		Event: &domain.ActivityEvent{
			ID:      id,
			AgentID: agentID,
			Status:  status,
		},
		Timestamp: time.Now(),
	}
}

func TestClient_ApplyUpsertsByID(t *testing.T) {
	c := newTestClient(testFeedConfig())

	c.apply(domain.ActivityEvent{ID: "ev-1", AgentID: "social", Status: domain.StatusRunning})
	c.apply(domain.ActivityEvent{ID: "ev-2", AgentID: "branding", Status: domain.StatusRunning})
	c.apply(domain.ActivityEvent{ID: "ev-1", AgentID: "social", Status: domain.StatusSuccess})

	events := c.Snapshot()
	require.Len(t, events, 2)
	// The updated event moves to the front, not duplicated.
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, domain.StatusSuccess, events[0].Status)
	assert.Equal(t, "ev-2", events[1].ID)
}

func TestClient_CapacityEvictsOldest(t *testing.T) {
	c := newTestClient(testFeedConfig())

	for i := 1; i <= 5; i++ {
		c.apply(domain.ActivityEvent{ID: fmt.Sprintf("ev-%d", i), AgentID: "social"})
	}

	events := c.Snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, "ev-5", events[0].ID)
	assert.Equal(t, "ev-3", events[2].ID)
}

func TestClient_SnapshotAppliesFilters(t *testing.T) {
	c := newTestClient(testFeedConfig())

	c.apply(domain.ActivityEvent{ID: "ev-1", AgentID: "social", Status: domain.StatusRunning})
	c.apply(domain.ActivityEvent{ID: "ev-2", AgentID: "branding", Status: domain.StatusSuccess})
	c.apply(domain.ActivityEvent{ID: "ev-3", AgentID: "branding", Status: domain.StatusRunning})

	c.SetFilter(ViewFilter{AgentID: "branding"})
	events := c.Snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "ev-3", events[0].ID)

	c.SetFilter(ViewFilter{AgentID: "branding", Status: domain.StatusSuccess})
	events = c.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "ev-2", events[0].ID)

	// Clearing the filter restores the full retained list.
	c.SetFilter(ViewFilter{})
	assert.Len(t, c.Snapshot(), 3)
}

func TestClient_ConsumesStream(t *testing.T) {
	cfg := testFeedConfig()
	c := newTestClient(cfg)

	body := sseStream(t,
		Message{Type: MsgConnection, Text: "connected", ConnID: "conn-42", Timestamp: time.Now()},
		Message{Type: MsgHeartbeat, Timestamp: time.Now()},
		lifecycle("ev-1", "social", domain.StatusRunning),
		Message{Type: MsgError, Text: "agent hiccup", Timestamp: time.Now()},
		lifecycle("ev-1", "social", domain.StatusSuccess),
	)

	var dials atomic.Int32
	c.SetDial(func(ctx context.Context) (io.ReadCloser, error) {
		if dials.Add(1) == 1 {
			return io.NopCloser(strings.NewReader(body)), nil
		}
		// Subsequent attempts fail so the client settles into disconnected.
		return nil, errors.New("stream gone")
	})

	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		events := c.Snapshot()
		return len(events) == 1 && events[0].Status == domain.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "conn-42", c.ConnID())
	// The error frame was recorded without killing the stream.
	assert.Equal(t, "agent hiccup", c.LastError())
	// Heartbeats never land in the event list.
	assert.Len(t, c.Snapshot(), 1)
}

func TestClient_ReconnectBudgetExhausts(t *testing.T) {
	c := newTestClient(testFeedConfig())

	var dials atomic.Int32
	c.SetDial(func(ctx context.Context) (io.ReadCloser, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	})

	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	// No further attempts while parked.
	settled := dials.Load()
	assert.Equal(t, int32(3), settled)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, dials.Load())
}

func TestClient_RetryWakesDisconnectedClient(t *testing.T) {
	c := newTestClient(testFeedConfig())

	var failing atomic.Bool
	failing.Store(true)
	c.SetDial(func(ctx context.Context) (io.ReadCloser, error) {
		if failing.Load() {
			return nil, errors.New("connection refused")
		}
		body := sseStream(t, lifecycle("ev-1", "social", domain.StatusRunning))
		return io.NopCloser(strings.NewReader(body)), nil
	})

	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	failing.Store(false)
	c.Retry()

	require.Eventually(t, func() bool {
		return len(c.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClient_AttemptsResetAfterSuccess(t *testing.T) {
	c := newTestClient(testFeedConfig())

	// Pattern: fail, fail, succeed, then fail forever. Without the reset the
	// two early failures would leave only one attempt before disconnecting;
	// with it the client gets the full budget again after the good stream.
	var dials atomic.Int32
	c.SetDial(func(ctx context.Context) (io.ReadCloser, error) {
		n := dials.Add(1)
		if n == 3 {
			body := sseStream(t, lifecycle("ev-1", "social", domain.StatusRunning))
			return io.NopCloser(strings.NewReader(body)), nil
		}
		return nil, errors.New("connection refused")
	})

	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	// 2 failures + success, then the stream end and 2 more failed dials
	// consume the refreshed budget of 3.
	assert.Equal(t, int32(5), dials.Load())
	assert.Len(t, c.Snapshot(), 1)
}

func TestClient_CloseStopsLoop(t *testing.T) {
	c := newTestClient(testFeedConfig())

	c.SetDial(func(ctx context.Context) (io.ReadCloser, error) {
		return nil, errors.New("connection refused")
	})

	c.Start(context.Background())
	c.Close()

	// Close returns only after the run loop exits; a second Close is a no-op.
	c.Close()
}
