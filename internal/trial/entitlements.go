package trial

import (
	"context"
	"time"

	"github.com/skrblai/percy/internal/config"
)

// UsageCounter answers quota queries against recorded usage.
type UsageCounter interface {
	CountSince(identity, usageType string, since time.Time) (int, error)
	TrialStart(identity string) (time.Time, error)
}

// LocalEntitlements is an Entitlements implementation backed by the local
// usage store and config quotas. The config file is the single source of
// truth for quota numbers.
type LocalEntitlements struct {
	usage UsageCounter
	cfg   config.TrialConfig
	now   func() time.Time
}

// NewLocalEntitlements creates a local entitlement collaborator.
func NewLocalEntitlements(usage UsageCounter, cfg config.TrialConfig) *LocalEntitlements {
	return &LocalEntitlements{usage: usage, cfg: cfg, now: time.Now}
}

// SetClock overrides the clock. Test hook.
func (e *LocalEntitlements) SetClock(now func() time.Time) { e.now = now }

// Verdict checks trial expiry first, then the per-day quota for the action.
func (e *LocalEntitlements) Verdict(ctx context.Context, identity string, kind ActionKind) (Decision, error) {
	started, err := e.usage.TrialStart(identity)
	if err != nil {
		return Decision{}, err
	}

	now := e.now()
	expires := started.AddDate(0, 0, e.cfg.LengthDays)
	if now.After(expires) {
		return Decision{Allowed: false, ReasonCode: ReasonTrialExpired}, nil
	}

	limit := e.cfg.DailyScans
	if kind == ActionAgent {
		limit = e.cfg.DailyAgents
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	used, err := e.usage.CountSince(identity, string(kind), midnight)
	if err != nil {
		return Decision{}, err
	}
	if used >= limit {
		return Decision{Allowed: false, ReasonCode: ReasonDailyLimit}, nil
	}

	return Decision{Allowed: true, Remaining: limit - used}, nil
}

// Status reports the full trial state for the identity.
func (e *LocalEntitlements) Status(ctx context.Context, identity string) (*Status, error) {
	started, err := e.usage.TrialStart(identity)
	if err != nil {
		return nil, err
	}

	now := e.now()
	expires := started.AddDate(0, 0, e.cfg.LengthDays)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	scans, err := e.usage.CountSince(identity, string(ActionScan), midnight)
	if err != nil {
		return nil, err
	}
	agents, err := e.usage.CountSince(identity, string(ActionAgent), midnight)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Active:          !now.After(expires),
		StartedAt:       started,
		ExpiresAt:       expires,
		ScansRemaining:  max(e.cfg.DailyScans-scans, 0),
		AgentsRemaining: max(e.cfg.DailyAgents-agents, 0),
	}
	return st, nil
}

var _ Entitlements = (*LocalEntitlements)(nil)
