package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/logging"
)

// subscriberBuffer bounds each subscriber's channel. A consumer that falls
// this far behind starts losing frames rather than stalling the hub.
const subscriberBuffer = 32

// ActivityRecorder durably logs published events. Optional.
type ActivityRecorder interface {
	Upsert(ev domain.ActivityEvent) error
}

// Subscription is one attached feed consumer.
type Subscription struct {
	ID     string
	C      <-chan Message
	filter Filter
	ch     chan Message
}

// Hub fans activity events out to subscribers. Filters are applied
// server-side per subscription, so a dashboard only receives what it asked
// for.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]*Subscription
	recorder ActivityRecorder // nil when durable logging is disabled
	eventSeq atomic.Int64
	log      *logging.Logger
}

// NewHub creates a hub. recorder may be nil.
func NewHub(recorder ActivityRecorder, log *logging.Logger) *Hub {
	return &Hub{
		subs:     make(map[string]*Subscription),
		recorder: recorder,
		log:      log.Sub("feed"),
	}
}

// Subscribe attaches a consumer with the given filter.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		ID:     uuid.New().String(),
		filter: filter,
		ch:     make(chan Message, subscriberBuffer),
	}
	sub.C = sub.ch

	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.log.Debug().Str("subId", sub.ID).Int("subscribers", n).Msg("feed subscriber attached")
	return sub
}

// Unsubscribe detaches a consumer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()

	if ok {
		h.log.Debug().Str("subId", id).Msg("feed subscriber detached")
	}
}

// Count returns the number of attached subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// NextSeq returns a monotonically increasing frame sequence number.
func (h *Hub) NextSeq() int64 {
	return h.eventSeq.Add(1)
}

// Publish records the event and delivers it to matching subscribers. A full
// subscriber buffer drops the frame for that subscriber only.
func (h *Hub) Publish(ev domain.ActivityEvent) {
	if h.recorder != nil {
		if err := h.recorder.Upsert(ev); err != nil {
			h.log.Warn().Err(err).Str("eventId", ev.ID).Msg("activity log write failed")
		}
	}

	msg := Message{
		Type:      TypeForStatus(ev.Status),
		Event:     &ev,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.Matches(ev) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			h.log.Warn().Str("subId", sub.ID).Str("eventId", ev.ID).Msg("slow feed subscriber, frame dropped")
		}
	}
}
