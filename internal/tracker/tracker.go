// Package tracker records discrete user behaviors into per-identity session
// contexts and keeps the derived intent fields consistent. Persistence is
// three-tier: an in-memory cache is the single source of truth for a running
// process, every update is written through to the local durable store, and
// authenticated contexts are queued for best-effort remote sync.
package tracker

import (
	"errors"
	"sync"
	"time"

	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/intent"
	"github.com/skrblai/percy/internal/logging"
	"github.com/skrblai/percy/internal/store"
)

// LocalStore is the durable per-identity context store.
type LocalStore interface {
	Load(identity string) (*domain.SessionContext, error)
	Save(ctx *domain.SessionContext) error
}

// Seed carries initial context fields supplied by the embedding page.
type Seed struct {
	StatedGoals  []string `json:"statedGoals,omitempty"`
	BusinessType string   `json:"businessType,omitempty"`
}

// Tracker looks up, mutates, and persists session contexts. Storage failures
// never propagate to callers driving UI: they degrade to an in-memory-only
// context for the turn.
type Tracker struct {
	mu     sync.Mutex
	cache  map[string]*domain.SessionContext
	local  LocalStore
	scorer *intent.Scorer
	syncer *Syncer // nil when remote sync is disabled
	now    func() time.Time
	log    *logging.Logger
}

// New creates a tracker. syncer may be nil.
func New(local LocalStore, scorer *intent.Scorer, syncer *Syncer, log *logging.Logger) *Tracker {
	return &Tracker{
		cache:  make(map[string]*domain.SessionContext),
		local:  local,
		scorer: scorer,
		syncer: syncer,
		now:    time.Now,
		log:    log.Sub("tracker"),
	}
}

// SetClock overrides the tracker's clock. Test hook.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Initialize loads or creates the context for an identity. A persisted
// context younger than the staleness window is resumed; otherwise a fresh
// one is created and merged with the seed. Either way a page_visit behavior
// tagged percy_initialization is recorded, noting whether this was a
// returning session.
func (t *Tracker) Initialize(identity string, authenticated bool, seed Seed) *domain.SessionContext {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ctx, returning := t.loadLocked(identity, now)
	ctx.Authenticated = authenticated

	if len(seed.StatedGoals) > 0 && len(ctx.StatedGoals) == 0 {
		ctx.StatedGoals = seed.StatedGoals
	}
	if seed.BusinessType != "" && ctx.BusinessType == "" {
		ctx.BusinessType = seed.BusinessType
	}

	ctx.AppendBehavior(domain.BehaviorRecord{
		Type:      domain.BehaviorPageVisit,
		Timestamp: now,
		SessionID: identity,
		Data: map[string]any{
			"source":           "percy_initialization",
			"returningSession": returning,
		},
	})

	t.commitLocked(ctx, now)
	return snapshot(ctx)
}

// Track appends a behavior record, applies its side effects, recomputes the
// derived intent fields in full, and persists best-effort.
func (t *Tracker) Track(identity string, behavior domain.BehaviorType, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ctx, _ := t.loadLocked(identity, now)

	ctx.AppendBehavior(domain.BehaviorRecord{
		Type:      behavior,
		Timestamp: now,
		Data:      data,
		SessionID: identity,
	})
	t.applySideEffects(ctx, behavior, data)

	t.commitLocked(ctx, now)
}

// Snapshot returns a copy of the current context for an identity, or nil if
// none exists yet.
func (t *Tracker) Snapshot(identity string) *domain.SessionContext {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ctx, ok := t.cache[identity]; ok {
		return snapshot(ctx)
	}

	ctx, err := t.local.Load(identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.log.Warn().Err(err).Str("identity", identity).Msg("context load failed")
		}
		return nil
	}
	if ctx.Stale(t.now()) {
		return nil
	}
	t.cache[identity] = ctx
	return snapshot(ctx)
}

// Update applies fn to the context under the tracker lock, then recomputes
// and persists. The onboarding engine uses this to record stated goals and
// recommended agents through the same read-merge-write path as behaviors.
func (t *Tracker) Update(identity string, fn func(*domain.SessionContext)) *domain.SessionContext {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ctx, _ := t.loadLocked(identity, now)
	fn(ctx)
	t.commitLocked(ctx, now)
	return snapshot(ctx)
}

// loadLocked returns the cached context, falling back to the local store,
// falling back to a fresh context. The second return reports whether a prior
// session was resumed.
func (t *Tracker) loadLocked(identity string, now time.Time) (*domain.SessionContext, bool) {
	if ctx, ok := t.cache[identity]; ok {
		return ctx, true
	}

	ctx, err := t.local.Load(identity)
	if err == nil && !ctx.Stale(now) {
		t.cache[identity] = ctx
		return ctx, true
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		t.log.Warn().Err(err).Str("identity", identity).Msg("context load failed, starting fresh")
	}

	fresh := &domain.SessionContext{
		Identity:          identity,
		SessionStart:      now,
		LastActivity:      now,
		ConversationPhase: domain.PhaseSubtle,
	}
	t.cache[identity] = fresh
	return fresh, false
}

// commitLocked recomputes derived fields, stamps activity, and persists.
func (t *Tracker) commitLocked(ctx *domain.SessionContext, now time.Time) {
	ctx.LastActivity = now
	t.scorer.Apply(ctx, now)

	if err := t.local.Save(ctx); err != nil {
		t.log.Warn().Err(err).Str("identity", ctx.Identity).Msg("context persist skipped")
	}
	if ctx.Authenticated && t.syncer != nil {
		t.syncer.Enqueue(snapshot(ctx))
	}
}

func (t *Tracker) applySideEffects(ctx *domain.SessionContext, behavior domain.BehaviorType, data map[string]any) {
	agentID, _ := data["agentId"].(string)

	switch behavior {
	case domain.BehaviorAgentView:
		if agentID != "" && !ctx.HasExplored(agentID) {
			ctx.ExploredAgents = append(ctx.ExploredAgents, agentID)
		}
	case domain.BehaviorLockedAgentClick:
		ctx.LockedAgentClicks = append(ctx.LockedAgentClicks, domain.LockedAgentClick{
			AgentID:   agentID,
			Timestamp: t.now(),
		})
		ctx.UpgradeInterestLevel += 10
	case domain.BehaviorSubscriptionInquiry:
		ctx.SubscriptionInquiries++
		ctx.UpgradeInterestLevel += 20
	case domain.BehaviorPricingPageVisit:
		ctx.UpgradeInterestLevel += 15
	case domain.BehaviorMessageSent:
		ctx.MessageCount++
	}

	ctx.ClampInterest()
}

func snapshot(ctx *domain.SessionContext) *domain.SessionContext {
	cp := *ctx
	cp.Behaviors = append([]domain.BehaviorRecord(nil), ctx.Behaviors...)
	cp.ExploredAgents = append([]string(nil), ctx.ExploredAgents...)
	cp.LockedAgentClicks = append([]domain.LockedAgentClick(nil), ctx.LockedAgentClicks...)
	cp.StatedGoals = append([]string(nil), ctx.StatedGoals...)
	cp.RecommendedAgents = append([]string(nil), ctx.RecommendedAgents...)
	return &cp
}
