package domain

import "time"

// ActivityStatus is the lifecycle state of an agent execution.
type ActivityStatus string

const (
	StatusPending ActivityStatus = "pending"
	StatusRunning ActivityStatus = "running"
	StatusSuccess ActivityStatus = "success"
	StatusFailed  ActivityStatus = "failed"
)

// ActivityEvent describes one agent execution for the live feed. Identity is
// the ID field: receiving a second event with the same ID is an update of the
// earlier one, not a new entry.
type ActivityEvent struct {
	ID           string         `json:"id"`
	AgentID      string         `json:"agentId"`
	AgentName    string         `json:"agentName,omitempty"`
	Status       ActivityStatus `json:"status"`
	StartedAt    time.Time      `json:"startedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	Source       string         `json:"source,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Result       string         `json:"result,omitempty"`
	UserID       string         `json:"userId,omitempty"`
}
