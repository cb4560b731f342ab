package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/logging"
)

// ConnState is the client's connection lifecycle state.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	// StateDisconnected means the retry budget is exhausted. The client stays
	// down until Retry is called.
	StateDisconnected ConnState = "disconnected"
)

// DialFunc opens one stream attempt and returns its body.
type DialFunc func(ctx context.Context) (io.ReadCloser, error)

// ViewFilter restricts the client's Snapshot view. Zero values match
// everything. It never affects what the server streams.
type ViewFilter struct {
	AgentID string
	Status  domain.ActivityStatus
}

func (f ViewFilter) match(ev domain.ActivityEvent) bool {
	if f.AgentID != "" && ev.AgentID != f.AgentID {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	return true
}

// Client consumes a feed stream, keeps a bounded most-recent-first event
// list, and reconnects with exponential backoff when the stream drops.
type Client struct {
	dial        DialFunc
	capacity    int
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	log         *logging.Logger

	mu        sync.Mutex
	state     ConnState
	attempts  int
	connID    string
	lastError string
	filter    ViewFilter
	events    []domain.ActivityEvent

	retryCh chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewClient creates a feed client for the given stream URL. cfg supplies
// capacity and reconnect tuning.
func NewClient(url string, cfg config.FeedConfig, log *logging.Logger) *Client {
	c := &Client{
		capacity:    cfg.Capacity,
		baseDelay:   time.Duration(cfg.Reconnect.BaseDelayMs) * time.Millisecond,
		maxDelay:    time.Duration(cfg.Reconnect.MaxDelayMs) * time.Millisecond,
		maxAttempts: cfg.Reconnect.MaxAttempts,
		log:         log.Sub("feed-client"),
		state:       StateConnecting,
		retryCh:     make(chan struct{}, 1),
	}
	c.dial = func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("feed stream returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	return c
}

// SetDial replaces the stream dialer. Call before Start.
func (c *Client) SetDial(dial DialFunc) { c.dial = dial }

// SetFilter sets the client-side view filter. It affects Snapshot only; the
// full stream keeps flowing so a filter change never drops history.
func (c *Client) SetFilter(f ViewFilter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Start launches the consume loop. Close stops it.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Close stops the consume loop and waits for it to exit.
func (c *Client) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Retry resets the backoff budget and wakes a disconnected client.
func (c *Client) Retry() {
	c.mu.Lock()
	c.attempts = 0
	if c.state == StateDisconnected {
		c.state = StateConnecting
	}
	c.mu.Unlock()

	select {
	case c.retryCh <- struct{}{}:
	default:
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the most recent error frame text.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// ConnID returns the server-assigned connection ID from the handshake ack.
func (c *Client) ConnID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Snapshot returns the retained events that pass the current filter, most
// recent first.
func (c *Client) Snapshot() []domain.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ActivityEvent, 0, len(c.events))
	for _, ev := range c.events {
		if c.filter.match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		if ctx.Err() != nil {
			return
		}

		body, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !c.backoff(ctx, err) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.state = StateConnected
		c.attempts = 0
		c.mu.Unlock()
		c.log.Debug().Msg("feed stream connected")

		streamErr := c.consume(ctx, body)
		body.Close()
		if ctx.Err() != nil {
			return
		}
		if !c.backoff(ctx, streamErr) {
			return
		}
	}
}

// backoff sleeps before the next attempt. It returns false when the context
// ended; when the attempt budget is exhausted it parks until Retry.
func (c *Client) backoff(ctx context.Context, cause error) bool {
	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	if attempt >= c.maxAttempts {
		c.state = StateDisconnected
	} else {
		c.state = StateReconnecting
	}
	state := c.state
	c.mu.Unlock()

	if state == StateDisconnected {
		c.log.Warn().Err(cause).Int("attempts", attempt).Msg("feed reconnect budget exhausted")
		select {
		case <-ctx.Done():
			return false
		case <-c.retryCh:
			return true
		}
	}

	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			delay = c.maxDelay
			break
		}
	}
	c.log.Debug().Err(cause).Int("attempt", attempt).Dur("delay", delay).Msg("feed stream dropped, reconnecting")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// consume reads one stream until it ends, feeding frames to handle.
func (c *Client) consume(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				c.handle(data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// id: and event: lines carry nothing the payload doesn't.
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (c *Client) handle(payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		c.log.Warn().Err(err).Msg("unparseable feed frame")
		return
	}

	switch msg.Type {
	case MsgHeartbeat:
	case MsgConnection:
		c.mu.Lock()
		c.connID = msg.ConnID
		c.mu.Unlock()
	case MsgError:
		c.mu.Lock()
		c.lastError = msg.Text
		c.mu.Unlock()
		c.log.Warn().Str("detail", msg.Text).Msg("feed error frame")
	default:
		if msg.Event != nil {
			c.apply(*msg.Event)
		}
	}
}

// apply merges one event into the retained list. A known ID updates in place
// and moves to the front; a new ID prepends, evicting the oldest entry past
// capacity.
func (c *Client) apply(ev domain.ActivityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.events {
		if existing.ID == ev.ID {
			copy(c.events[1:i+1], c.events[:i])
			c.events[0] = ev
			return
		}
	}

	c.events = append([]domain.ActivityEvent{ev}, c.events...)
	if c.capacity > 0 && len(c.events) > c.capacity {
		c.events = c.events[:c.capacity]
	}
}
