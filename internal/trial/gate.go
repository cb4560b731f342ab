// Package trial implements the admission check consulted before scans and
// premium agent launches, plus fire-and-forget usage recording.
package trial

import (
	"context"
	"time"

	"github.com/skrblai/percy/internal/logging"
	"github.com/skrblai/percy/internal/store"
)

// ActionKind is what the caller wants to do.
type ActionKind string

const (
	ActionScan  ActionKind = "scan"
	ActionAgent ActionKind = "agent"
)

// ReasonCode identifies why access was denied.
type ReasonCode string

const (
	ReasonTrialExpired ReasonCode = "trial_expired"
	ReasonDailyLimit   ReasonCode = "daily_limit_reached"
)

// Decision is the gate's verdict. Message carries user-facing copy when
// access is denied.
type Decision struct {
	Allowed    bool       `json:"allowed"`
	ReasonCode ReasonCode `json:"reasonCode,omitempty"`
	Message    string     `json:"message,omitempty"`
	Remaining  int        `json:"remaining,omitempty"`
}

// Status describes an identity's trial state.
type Status struct {
	Active          bool      `json:"active"`
	StartedAt       time.Time `json:"startedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	ScansRemaining  int       `json:"scansRemaining"`
	AgentsRemaining int       `json:"agentsRemaining"`
}

// Entitlements is the external account/entitlement collaborator. The gate
// relays its verdicts without second-guessing them.
type Entitlements interface {
	Verdict(ctx context.Context, identity string, kind ActionKind) (Decision, error)
	Status(ctx context.Context, identity string) (*Status, error)
}

// UsageRecorder persists usage rows.
type UsageRecorder interface {
	Record(rec store.UsageRecord) error
}

// reasonCopy translates reason codes into user-facing copy.
var reasonCopy = map[ReasonCode]string{
	ReasonTrialExpired: "Your free trial has ended. Upgrade to keep your AI team working for you.",
	ReasonDailyLimit:   "You've hit today's limit. Upgrade for unlimited access, or check back tomorrow.",
}

// Gate performs admission checks for gated actions.
type Gate struct {
	ent    Entitlements
	usage  UsageRecorder
	allow  map[string]bool // agent IDs that bypass the gate entirely
	log    *logging.Logger
}

// NewGate creates a gate. alwaysAllow lists agent IDs (the universal
// coordinator) that are permitted regardless of trial state.
func NewGate(ent Entitlements, usage UsageRecorder, alwaysAllow []string, log *logging.Logger) *Gate {
	allow := make(map[string]bool, len(alwaysAllow))
	for _, id := range alwaysAllow {
		allow[id] = true
	}
	return &Gate{
		ent:   ent,
		usage: usage,
		allow: allow,
		log:   log.Sub("trial"),
	}
}

// CanAccess decides whether the identity may perform the action right now.
// agentID is consulted only for ActionAgent. An entitlement collaborator
// failure fails open: blocking paying-intent users on an infra blip costs
// more than an extra free action.
func (g *Gate) CanAccess(ctx context.Context, identity string, kind ActionKind, agentID string) Decision {
	if kind == ActionAgent && g.allow[agentID] {
		return Decision{Allowed: true}
	}

	verdict, err := g.ent.Verdict(ctx, identity, kind)
	if err != nil {
		g.log.Warn().Err(err).Str("identity", identity).Str("kind", string(kind)).
			Msg("entitlement check failed, allowing")
		return Decision{Allowed: true}
	}

	if !verdict.Allowed && verdict.Message == "" {
		verdict.Message = reasonCopy[verdict.ReasonCode]
	}
	return verdict
}

// Status returns the identity's trial status from the collaborator.
func (g *Gate) Status(ctx context.Context, identity string) (*Status, error) {
	return g.ent.Status(ctx, identity)
}

// RecordUsage records a usage row asynchronously. Failure is logged and
// never blocks or rolls back the action being recorded.
func (g *Gate) RecordUsage(identity, usageType, agentID, feature string) {
	go func() {
		err := g.usage.Record(store.UsageRecord{
			Identity:  identity,
			UsageType: usageType,
			AgentID:   agentID,
			Feature:   feature,
			CreatedAt: time.Now(),
		})
		if err != nil {
			g.log.Warn().Err(err).Str("identity", identity).Str("usageType", usageType).
				Msg("usage recording failed")
		}
	}()
}
