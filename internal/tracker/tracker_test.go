package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/intent"
	"github.com/skrblai/percy/internal/logging"
	"github.com/skrblai/percy/internal/store"
)

func newTestTracker(local LocalStore) *Tracker {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	return New(local, scorer, nil, log)
}

func newTestTrackerWithSyncer(syncer *Syncer) *Tracker {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	return New(store.NewMemoryContextStore(), scorer, syncer, log)
}

// failingStore always errors, simulating a broken local store.
type failingStore struct{}

func (failingStore) Load(string) (*domain.SessionContext, error) {
	return nil, errors.New("disk on fire")
}
func (failingStore) Save(*domain.SessionContext) error {
	return errors.New("disk on fire")
}

func TestInitialize_FreshContext(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())

	ctx := tr.Initialize("visitor-1", false, Seed{})

	require.NotNil(t, ctx)
	assert.Equal(t, "visitor-1", ctx.Identity)
	assert.Equal(t, domain.PhaseSubtle, ctx.ConversationPhase)
	require.Len(t, ctx.Behaviors, 1)
	assert.Equal(t, domain.BehaviorPageVisit, ctx.Behaviors[0].Type)
	assert.Equal(t, "percy_initialization", ctx.Behaviors[0].Data["source"])
	assert.Equal(t, false, ctx.Behaviors[0].Data["returningSession"])
}

func TestInitialize_SeedApplied(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())

	ctx := tr.Initialize("visitor-1", true, Seed{
		StatedGoals:  []string{"branding"},
		BusinessType: "agency",
	})

	assert.True(t, ctx.Authenticated)
	assert.Equal(t, []string{"branding"}, ctx.StatedGoals)
	assert.Equal(t, "agency", ctx.BusinessType)
}

func TestInitialize_ResumesRecentSession(t *testing.T) {
	local := store.NewMemoryContextStore()
	tr := newTestTracker(local)

	tr.Initialize("visitor-1", false, Seed{})
	tr.Track("visitor-1", domain.BehaviorAgentView, map[string]any{"agentId": "social"})

	// New tracker over the same store simulates a process restart.
	tr2 := newTestTracker(local)
	ctx := tr2.Initialize("visitor-1", false, Seed{})

	assert.Contains(t, ctx.ExploredAgents, "social")
	last := ctx.Behaviors[len(ctx.Behaviors)-1]
	assert.Equal(t, true, last.Data["returningSession"])
}

func TestInitialize_StaleSessionReplaced(t *testing.T) {
	local := store.NewMemoryContextStore()
	old := &domain.SessionContext{
		Identity:       "visitor-1",
		SessionStart:   time.Now().Add(-48 * time.Hour),
		LastActivity:   time.Now().Add(-25 * time.Hour),
		ExploredAgents: []string{"social", "branding"},
	}
	require.NoError(t, local.Save(old))

	tr := newTestTracker(local)
	ctx := tr.Initialize("visitor-1", false, Seed{})

	assert.Empty(t, ctx.ExploredAgents)
	last := ctx.Behaviors[len(ctx.Behaviors)-1]
	assert.Equal(t, false, last.Data["returningSession"])
}

func TestTrack_BehaviorCapEvictsOldest(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())

	tr.Initialize("visitor-1", false, Seed{})
	for i := 0; i < 60; i++ {
		tr.Track("visitor-1", domain.BehaviorPageVisit, map[string]any{"page": fmt.Sprintf("/p/%d", i)})
	}

	ctx := tr.Snapshot("visitor-1")
	require.NotNil(t, ctx)
	assert.Len(t, ctx.Behaviors, domain.MaxBehaviors)

	// The initialization visit and the earliest page visits are gone.
	assert.Equal(t, "/p/10", ctx.Behaviors[0].Data["page"])
	assert.Equal(t, "/p/59", ctx.Behaviors[len(ctx.Behaviors)-1].Data["page"])
}

func TestTrack_SideEffects(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())
	tr.Initialize("visitor-1", false, Seed{})

	tr.Track("visitor-1", domain.BehaviorAgentView, map[string]any{"agentId": "social"})
	tr.Track("visitor-1", domain.BehaviorAgentView, map[string]any{"agentId": "social"})
	tr.Track("visitor-1", domain.BehaviorLockedAgentClick, map[string]any{"agentId": "branding"})
	tr.Track("visitor-1", domain.BehaviorSubscriptionInquiry, nil)
	tr.Track("visitor-1", domain.BehaviorPricingPageVisit, nil)
	tr.Track("visitor-1", domain.BehaviorMessageSent, nil)

	ctx := tr.Snapshot("visitor-1")
	require.NotNil(t, ctx)

	// Duplicate agent view does not duplicate the explored entry.
	assert.Equal(t, []string{"social"}, ctx.ExploredAgents)
	require.Len(t, ctx.LockedAgentClicks, 1)
	assert.Equal(t, "branding", ctx.LockedAgentClicks[0].AgentID)
	assert.Equal(t, 1, ctx.SubscriptionInquiries)
	assert.Equal(t, 1, ctx.MessageCount)
	assert.Equal(t, 45, ctx.UpgradeInterestLevel) // 10 + 20 + 15
}

func TestTrack_InterestClampedAtHundred(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())
	tr.Initialize("visitor-1", false, Seed{})

	for i := 0; i < 10; i++ {
		tr.Track("visitor-1", domain.BehaviorSubscriptionInquiry, nil)
	}

	ctx := tr.Snapshot("visitor-1")
	assert.Equal(t, 100, ctx.UpgradeInterestLevel)
}

func TestTrack_DerivedFieldsRecomputed(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())
	tr.Initialize("visitor-1", false, Seed{})

	for _, id := range []string{"a", "b", "c"} {
		tr.Track("visitor-1", domain.BehaviorAgentView, map[string]any{"agentId": id})
	}

	ctx := tr.Snapshot("visitor-1")
	assert.Equal(t, domain.PhaseHint, ctx.ConversationPhase)
	assert.Equal(t, 15, ctx.ConversionScore)

	for i := 0; i < 3; i++ {
		tr.Track("visitor-1", domain.BehaviorLockedAgentClick, map[string]any{"agentId": "branding"})
	}

	ctx = tr.Snapshot("visitor-1")
	assert.Equal(t, domain.PhaseDirect, ctx.ConversationPhase)
	assert.Equal(t, 30, ctx.UpgradeInterestLevel)
}

func TestTrack_PersistFailureDoesNotPanic(t *testing.T) {
	tr := newTestTracker(failingStore{})

	ctx := tr.Initialize("visitor-1", false, Seed{})
	require.NotNil(t, ctx)

	tr.Track("visitor-1", domain.BehaviorAgentView, map[string]any{"agentId": "social"})

	// The in-memory context keeps working despite the dead store.
	got := tr.Snapshot("visitor-1")
	require.NotNil(t, got)
	assert.Contains(t, got.ExploredAgents, "social")
}

func TestSnapshot_UnknownIdentity(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())
	assert.Nil(t, tr.Snapshot("nobody"))
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())
	tr.Initialize("visitor-1", false, Seed{})
	tr.Track("visitor-1", domain.BehaviorAgentView, map[string]any{"agentId": "social"})

	snap := tr.Snapshot("visitor-1")
	snap.ExploredAgents[0] = "tampered"
	snap.SubscriptionInquiries = 99

	fresh := tr.Snapshot("visitor-1")
	assert.Equal(t, []string{"social"}, fresh.ExploredAgents)
	assert.Equal(t, 0, fresh.SubscriptionInquiries)
}

func TestUpdate_MergesThroughCommonPath(t *testing.T) {
	tr := newTestTracker(store.NewMemoryContextStore())
	tr.Initialize("visitor-1", false, Seed{})

	ctx := tr.Update("visitor-1", func(sc *domain.SessionContext) {
		sc.StatedGoals = append(sc.StatedGoals, "branding")
		sc.RecommendedAgents = []string{"percy", "branding"}
	})

	assert.Equal(t, []string{"branding"}, ctx.StatedGoals)
	assert.Equal(t, []string{"percy", "branding"}, ctx.RecommendedAgents)
}
