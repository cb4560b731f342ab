// Package feed implements the live agent-activity stream: a hub that fans
// lifecycle events out to SSE and WebSocket subscribers, and a client that
// consumes the stream with reconnect/backoff and a bounded upsert list.
package feed

import (
	"time"

	"github.com/skrblai/percy/internal/domain"
)

// MessageType is the closed set of frame types on the feed.
type MessageType string

const (
	MsgConnection    MessageType = "connection" // handshake ack
	MsgHeartbeat     MessageType = "heartbeat"  // keep-alive, ignored by clients
	MsgError         MessageType = "error"      // surfaced to UI, stream stays open
	MsgAgentLaunch   MessageType = "agent_launch"
	MsgAgentComplete MessageType = "agent_complete"
	MsgAgentError    MessageType = "agent_error"
)

// Message is one framed feed payload.
type Message struct {
	Type      MessageType           `json:"type"`
	Event     *domain.ActivityEvent `json:"event,omitempty"`
	Text      string                `json:"message,omitempty"` // connection ack / error detail
	ConnID    string                `json:"connId,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// TypeForStatus maps an activity status to its lifecycle frame type.
func TypeForStatus(status domain.ActivityStatus) MessageType {
	switch status {
	case domain.StatusSuccess:
		return MsgAgentComplete
	case domain.StatusFailed:
		return MsgAgentError
	default:
		return MsgAgentLaunch
	}
}

// IsLifecycle reports whether the message carries an activity event.
func (m Message) IsLifecycle() bool {
	switch m.Type {
	case MsgAgentLaunch, MsgAgentComplete, MsgAgentError:
		return true
	}
	return false
}

// Filter restricts which events a subscriber receives. Zero values match
// everything.
type Filter struct {
	Identity string
	AgentID  string
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(ev domain.ActivityEvent) bool {
	if f.Identity != "" && ev.UserID != f.Identity {
		return false
	}
	if f.AgentID != "" && ev.AgentID != f.AgentID {
		return false
	}
	return true
}
