package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/intent"
	"github.com/skrblai/percy/internal/logging"
	"github.com/skrblai/percy/internal/scan"
	"github.com/skrblai/percy/internal/store"
	"github.com/skrblai/percy/internal/tracker"
)

// fakeScanner returns a canned result or error and records invocations.
type fakeScanner struct {
	result *scan.Result
	err    error
	calls  int
}

func (f *fakeScanner) Scan(_ context.Context, rawURL, identity string) (*scan.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestEngine(scanner scan.Scanner) *Engine {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	tr := tracker.New(store.NewMemoryContextStore(), scorer, nil, log)
	return NewEngine(store.NewMemoryOnboardingStore(), tr, scanner, scorer, log)
}

func lastMessage(t *testing.T, state *domain.OnboardingState) domain.ConversationMessage {
	t.Helper()
	require.NotEmpty(t, state.History)
	return state.History[len(state.History)-1]
}

func advanceToScan(t *testing.T, e *Engine, identity string) *domain.OnboardingState {
	t.Helper()
	ctx := context.Background()

	_, err := e.Select(ctx, identity, domain.MessageOption{Action: domain.ActionStart})
	require.NoError(t, err)
	_, err = e.Select(ctx, identity, domain.MessageOption{Action: domain.ActionSelectGoal, Goal: "branding"})
	require.NoError(t, err)
	state, err := e.Select(ctx, identity, domain.MessageOption{Action: domain.ActionSelectPlat, Platform: "instagram"})
	require.NoError(t, err)
	return state
}

func TestGet_FreshConversationStartsAtGreeting(t *testing.T) {
	e := newTestEngine(&fakeScanner{})

	state, err := e.Get("visitor-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StepGreeting, state.CurrentStep)
	msg := lastMessage(t, state)
	assert.Equal(t, domain.RolePercy, msg.Role)
	require.Len(t, msg.Options, 1)
	assert.Equal(t, domain.ActionStart, msg.Options[0].Action)
	require.NotNil(t, msg.Intelligence)
	assert.Equal(t, "observing", msg.Intelligence.PercyState)
}

func TestSelect_StartPresentsEightGoals(t *testing.T) {
	e := newTestEngine(&fakeScanner{})

	state, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{Action: domain.ActionStart})
	require.NoError(t, err)

	assert.Equal(t, domain.StepGoalSelection, state.CurrentStep)
	msg := lastMessage(t, state)
	require.Len(t, msg.Options, 8)
	for _, opt := range msg.Options {
		assert.Equal(t, domain.ActionSelectGoal, opt.Action)
		assert.NotEmpty(t, opt.Goal)
	}
}

func TestSelect_GoalPresentsSevenPlatforms(t *testing.T) {
	e := newTestEngine(&fakeScanner{})
	ctx := context.Background()

	_, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionStart})
	require.NoError(t, err)
	state, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectGoal, Goal: "social-media"})
	require.NoError(t, err)

	assert.Equal(t, domain.StepPlatform, state.CurrentStep)
	assert.Equal(t, "social-media", state.Goal)
	msg := lastMessage(t, state)
	assert.Len(t, msg.Options, 7)
}

func TestSelect_GoalRecordedOnContext(t *testing.T) {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	tr := tracker.New(store.NewMemoryContextStore(), scorer, nil, log)
	e := NewEngine(store.NewMemoryOnboardingStore(), tr, &fakeScanner{}, scorer, log)
	ctx := context.Background()

	_, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionStart})
	require.NoError(t, err)
	_, err = e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectGoal, Goal: "publishing"})
	require.NoError(t, err)

	sc := tr.Snapshot("visitor-1")
	require.NotNil(t, sc)
	assert.Contains(t, sc.StatedGoals, "publishing")
}

func TestSelect_UnknownGoalRejected(t *testing.T) {
	e := newTestEngine(&fakeScanner{})
	ctx := context.Background()

	_, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionStart})
	require.NoError(t, err)
	_, err = e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectGoal, Goal: "world-domination"})
	assert.Error(t, err)
}

func TestSelect_ActionOutOfOrderRejected(t *testing.T) {
	e := newTestEngine(&fakeScanner{})

	_, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{Action: domain.ActionFinish})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSelect_SkipScanBypassesScanner(t *testing.T) {
	scanner := &fakeScanner{}
	e := newTestEngine(scanner)
	advanceToScan(t, e, "visitor-1")

	state, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{Action: domain.ActionSkipScan})
	require.NoError(t, err)

	assert.Equal(t, 0, scanner.calls)
	assert.Equal(t, domain.StepRecommendations, state.CurrentStep)

	msg := lastMessage(t, state)
	require.NotEmpty(t, msg.Recommendations)
	assert.Equal(t, domain.PercyAgentID, msg.Recommendations[0].AgentID)
	// Presenting cards is not picking them.
	assert.Empty(t, state.RecommendedAgents)
}

func TestSelect_ScanSuccessUsesScanRecommendations(t *testing.T) {
	scanner := &fakeScanner{result: &scan.Result{
		ContentType: scan.ContentWebsite,
		Analysis:    scan.Analysis{Industry: "fitness"},
		Recommendations: []domain.AgentRecommendation{
			{AgentID: "social", DisplayName: "SocialNino", Reason: "fitness brands live on social", Confidence: 90},
			{AgentID: "sitegen", DisplayName: "SiteOnzite", Reason: "booking flow needs work", Confidence: 75},
		},
	}}
	e := newTestEngine(scanner)
	advanceToScan(t, e, "visitor-1")

	state, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{
		Action: domain.ActionScanWebsite,
		URL:    "https://example-gym.com",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, scanner.calls)
	assert.Equal(t, domain.StepRecommendations, state.CurrentStep)
	assert.Equal(t, "https://example-gym.com", state.BusinessURL)
	assert.Empty(t, state.RecommendedAgents)

	msg := lastMessage(t, state)
	assert.Contains(t, msg.Text, "fitness")
	require.Len(t, msg.Recommendations, 2)
	assert.Equal(t, "social", msg.Recommendations[0].AgentID)
	assert.Equal(t, "sitegen", msg.Recommendations[1].AgentID)
}

func TestSelect_ScanFailureFallsBackToGoalRecommendations(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("connection refused")}
	e := newTestEngine(scanner)
	advanceToScan(t, e, "visitor-1")

	state, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{
		Action: domain.ActionScanWebsite,
		URL:    "https://unreachable.example",
	})
	require.NoError(t, err)

	// The conversation still reaches recommendations.
	assert.Equal(t, domain.StepRecommendations, state.CurrentStep)
	msg := lastMessage(t, state)
	require.NotEmpty(t, msg.Recommendations)
	assert.Equal(t, domain.PercyAgentID, msg.Recommendations[0].AgentID)
}

func TestSelect_ScanQuotaSurfacesUpgradePrompt(t *testing.T) {
	scanner := &fakeScanner{err: &scan.RateLimitError{
		Reason:        "daily_limit_reached",
		UpgradePrompt: "Upgrade for unlimited scans.",
	}}
	e := newTestEngine(scanner)
	advanceToScan(t, e, "visitor-1")

	state, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{
		Action: domain.ActionScanLink,
		URL:    "https://linkedin.com/in/someone",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StepRecommendations, state.CurrentStep)
	msg := lastMessage(t, state)
	assert.Contains(t, msg.Text, "Upgrade for unlimited scans.")
	require.NotEmpty(t, msg.Recommendations)
}

func TestSelect_AgentPicksAccumulateWithoutDuplicates(t *testing.T) {
	e := newTestEngine(&fakeScanner{})
	ctx := context.Background()

	advanceToScan(t, e, "visitor-1")
	_, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSkipScan})
	require.NoError(t, err)

	state, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectAgent, AgentID: "social"})
	require.NoError(t, err)
	assert.Equal(t, []string{"social"}, state.RecommendedAgents)

	// Looping back for another agent appends; re-picking does not.
	state, err = e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectAgent, AgentID: "branding"})
	require.NoError(t, err)
	state, err = e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectAgent, AgentID: "social"})
	require.NoError(t, err)

	assert.Equal(t, []string{"social", "branding"}, state.RecommendedAgents)
	assert.Equal(t, domain.StepRecommendations, state.CurrentStep)
}

func TestSelect_FinishCompletesAndRecordsAgents(t *testing.T) {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	tr := tracker.New(store.NewMemoryContextStore(), scorer, nil, log)
	e := NewEngine(store.NewMemoryOnboardingStore(), tr, &fakeScanner{}, scorer, log)
	ctx := context.Background()

	advanceToScan(t, e, "visitor-1")
	_, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSkipScan})
	require.NoError(t, err)
	_, err = e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionSelectAgent, AgentID: "branding"})
	require.NoError(t, err)

	state, err := e.Select(ctx, "visitor-1", domain.MessageOption{Action: domain.ActionFinish})
	require.NoError(t, err)

	assert.Equal(t, domain.StepComplete, state.CurrentStep)
	msg := lastMessage(t, state)
	assert.Contains(t, msg.Text, "/branding")

	sc := tr.Snapshot("visitor-1")
	require.NotNil(t, sc)
	assert.Equal(t, []string{"branding"}, sc.RecommendedAgents)
}

func TestMessage_URLPasteTriggersScan(t *testing.T) {
	scanner := &fakeScanner{result: &scan.Result{
		ContentType: scan.ContentWebsite,
		Recommendations: []domain.AgentRecommendation{
			{AgentID: "sitegen", DisplayName: "SiteOnzite", Confidence: 70},
		},
	}}
	e := newTestEngine(scanner)
	advanceToScan(t, e, "visitor-1")

	state, err := e.Message(context.Background(), "visitor-1", "https://my-site.example")
	require.NoError(t, err)

	assert.Equal(t, 1, scanner.calls)
	assert.Equal(t, domain.StepRecommendations, state.CurrentStep)
}

func TestMessage_NonURLGetsNudge(t *testing.T) {
	e := newTestEngine(&fakeScanner{})
	advanceToScan(t, e, "visitor-1")

	state, err := e.Message(context.Background(), "visitor-1", "what do you think of my logo")
	require.NoError(t, err)

	// Stays on the scan step and re-offers the scan options.
	assert.Equal(t, domain.StepBusinessScan, state.CurrentStep)
	msg := lastMessage(t, state)
	assert.Equal(t, domain.RolePercy, msg.Role)
	assert.Len(t, msg.Options, 3)
}

func TestMessage_CountsTowardIntent(t *testing.T) {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	tr := tracker.New(store.NewMemoryContextStore(), scorer, nil, log)
	e := NewEngine(store.NewMemoryOnboardingStore(), tr, &fakeScanner{}, scorer, log)

	for i := 0; i < 5; i++ {
		_, err := e.Message(context.Background(), "visitor-1", "hello")
		require.NoError(t, err)
	}

	sc := tr.Snapshot("visitor-1")
	require.NotNil(t, sc)
	assert.Equal(t, 5, sc.MessageCount)
	assert.Equal(t, domain.PhaseHint, sc.ConversationPhase)
}

func TestReset_DiscardsConversation(t *testing.T) {
	e := newTestEngine(&fakeScanner{})
	advanceToScan(t, e, "visitor-1")

	state, err := e.Reset("visitor-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StepGreeting, state.CurrentStep)
	assert.Empty(t, state.Goal)
	assert.Len(t, state.History, 1)
}

func TestStamps_EscalateWithBehavior(t *testing.T) {
	log := logging.New(nil, "silent")
	scorer := intent.NewScorer(config.Defaults().Scoring)
	tr := tracker.New(store.NewMemoryContextStore(), scorer, nil, log)
	e := NewEngine(store.NewMemoryOnboardingStore(), tr, &fakeScanner{}, scorer, log)

	first, err := e.Get("visitor-1")
	require.NoError(t, err)
	assert.Equal(t, "observing", lastMessage(t, first).Intelligence.PercyState)

	for i := 0; i < 3; i++ {
		tr.Track("visitor-1", domain.BehaviorLockedAgentClick, map[string]any{"agentId": "branding"})
	}

	state, err := e.Select(context.Background(), "visitor-1", domain.MessageOption{Action: domain.ActionStart})
	require.NoError(t, err)
	latest := lastMessage(t, state)
	assert.Equal(t, "confident", latest.Intelligence.PercyState)

	// Earlier stamps are untouched by later escalation.
	assert.Equal(t, "observing", state.History[0].Intelligence.PercyState)
}
