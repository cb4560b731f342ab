package domain

import "time"

// ConversationPhase is the escalation level that governs how assertively
// Percy pitches upgrades.
type ConversationPhase string

const (
	PhaseSubtle ConversationPhase = "subtle"
	PhaseHint   ConversationPhase = "hint"
	PhaseDirect ConversationPhase = "direct"
)

// Rank orders phases for comparison: subtle < hint < direct.
func (p ConversationPhase) Rank() int {
	switch p {
	case PhaseHint:
		return 1
	case PhaseDirect:
		return 2
	default:
		return 0
	}
}

// BehaviorType classifies a tracked user action.
type BehaviorType string

const (
	BehaviorAgentView           BehaviorType = "agent_view"
	BehaviorLockedAgentClick    BehaviorType = "locked_agent_click"
	BehaviorSubscriptionInquiry BehaviorType = "subscription_inquiry"
	BehaviorPricingPageVisit    BehaviorType = "pricing_page_visit"
	BehaviorMessageSent         BehaviorType = "message_sent"
	BehaviorPageVisit           BehaviorType = "page_visit"
)

// BehaviorRecord is a single tracked user action. Immutable once appended.
type BehaviorRecord struct {
	Type      BehaviorType   `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
}

// LockedAgentClick records a click on a gated or premium agent.
type LockedAgentClick struct {
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxBehaviors caps the behavior history per context. Oldest entries are
// evicted first (FIFO truncation, not time-based expiry).
const MaxBehaviors = 50

// SessionStaleness is how long a context survives without activity before a
// fresh one replaces it.
const SessionStaleness = 24 * time.Hour

// SessionContext accumulates everything known about one browser session or
// user. ConversationPhase and ConversionScore are pure functions of the rest
// of the fields; they are recomputed after every behavior update and never
// set directly.
type SessionContext struct {
	Identity      string `json:"identity"`
	Authenticated bool   `json:"authenticated,omitempty"`

	SessionStart time.Time `json:"sessionStart"`
	LastActivity time.Time `json:"lastActivity"`

	Behaviors         []BehaviorRecord   `json:"behaviors,omitempty"`
	ExploredAgents    []string           `json:"exploredAgents,omitempty"`
	LockedAgentClicks []LockedAgentClick `json:"lockedAgentClicks,omitempty"`

	SubscriptionInquiries int `json:"subscriptionInquiries"`
	MessageCount          int `json:"messageCount"`

	ConversationPhase    ConversationPhase `json:"conversationPhase"`
	ConversionScore      int               `json:"conversionScore"`
	UpgradeInterestLevel int               `json:"upgradeInterestLevel"`

	StatedGoals       []string `json:"statedGoals,omitempty"`
	BusinessType      string   `json:"businessType,omitempty"`
	RecommendedAgents []string `json:"recommendedAgents,omitempty"`
}

// HasExplored reports whether the agent is already in the explored set.
func (c *SessionContext) HasExplored(agentID string) bool {
	for _, id := range c.ExploredAgents {
		if id == agentID {
			return true
		}
	}
	return false
}

// AppendBehavior adds a record and truncates the history to MaxBehaviors.
func (c *SessionContext) AppendBehavior(rec BehaviorRecord) {
	c.Behaviors = append(c.Behaviors, rec)
	if len(c.Behaviors) > MaxBehaviors {
		c.Behaviors = c.Behaviors[len(c.Behaviors)-MaxBehaviors:]
	}
}

// Stale reports whether the context has been idle longer than SessionStaleness.
func (c *SessionContext) Stale(now time.Time) bool {
	return now.Sub(c.LastActivity) > SessionStaleness
}

// ClampInterest bounds UpgradeInterestLevel to [0, 100].
func (c *SessionContext) ClampInterest() {
	if c.UpgradeInterestLevel > 100 {
		c.UpgradeInterestLevel = 100
	}
	if c.UpgradeInterestLevel < 0 {
		c.UpgradeInterestLevel = 0
	}
}
