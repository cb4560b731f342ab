// Package onboarding drives Percy's guided setup conversation: a small state
// machine that walks a visitor from greeting through goal and platform
// selection, an optional business scan, and into agent recommendations.
// Every percy turn is stamped with the intelligence snapshot current at
// emission, and the full state is persisted after each mutation.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/intent"
	"github.com/skrblai/percy/internal/logging"
	"github.com/skrblai/percy/internal/scan"
	"github.com/skrblai/percy/internal/store"
	"github.com/skrblai/percy/internal/tracker"
)

// ErrInvalidTransition is returned when an option action does not apply to
// the conversation's current step.
var ErrInvalidTransition = errors.New("onboarding: action not valid for current step")

// StateStore persists onboarding conversations per identity.
type StateStore interface {
	Load(identity string) (*domain.OnboardingState, error)
	Save(state *domain.OnboardingState) error
	Delete(identity string) error
}

// Engine runs the onboarding conversation.
type Engine struct {
	store   StateStore
	tracker *tracker.Tracker
	scanner scan.Scanner
	scorer  *intent.Scorer
	now     func() time.Time
	log     *logging.Logger
}

// NewEngine creates the conversation engine.
func NewEngine(st StateStore, tr *tracker.Tracker, scanner scan.Scanner, scorer *intent.Scorer, log *logging.Logger) *Engine {
	return &Engine{
		store:   st,
		tracker: tr,
		scanner: scanner,
		scorer:  scorer,
		now:     time.Now,
		log:     log.Sub("onboarding"),
	}
}

// SetClock overrides the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Get returns the conversation for an identity, starting a fresh one at the
// greeting when none exists.
func (e *Engine) Get(identity string) (*domain.OnboardingState, error) {
	state, err := e.store.Load(identity)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return e.fresh(identity), nil
}

// Reset discards the conversation and returns a fresh greeting state.
func (e *Engine) Reset(identity string) (*domain.OnboardingState, error) {
	if err := e.store.Delete(identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return e.fresh(identity), nil
}

// Select applies one chosen option to the conversation. The option's action
// must match the current step or ErrInvalidTransition is returned.
func (e *Engine) Select(ctx context.Context, identity string, opt domain.MessageOption) (*domain.OnboardingState, error) {
	state, err := e.Get(identity)
	if err != nil {
		return nil, err
	}

	switch opt.Action {
	case domain.ActionStart:
		if state.CurrentStep != domain.StepGreeting {
			return nil, ErrInvalidTransition
		}
		e.appendUser(state, "Let's go")
		e.toGoalSelection(state)

	case domain.ActionSelectGoal:
		if state.CurrentStep != domain.StepGoalSelection {
			return nil, ErrInvalidTransition
		}
		goal := goalByID(opt.Goal)
		if goal == nil {
			return nil, fmt.Errorf("onboarding: unknown goal %q", opt.Goal)
		}
		e.appendUser(state, goal.Label)
		state.Goal = goal.ID
		e.tracker.Update(identity, func(sc *domain.SessionContext) {
			for _, g := range sc.StatedGoals {
				if g == goal.ID {
					return
				}
			}
			sc.StatedGoals = append(sc.StatedGoals, goal.ID)
		})
		e.appendPercy(state, identity, platformPromptCopy(goal), platformOptions(), nil)
		state.CurrentStep = domain.StepPlatform

	case domain.ActionSelectPlat:
		if state.CurrentStep != domain.StepPlatform {
			return nil, ErrInvalidTransition
		}
		platform := platformByID(opt.Platform)
		if platform == nil {
			return nil, fmt.Errorf("onboarding: unknown platform %q", opt.Platform)
		}
		e.appendUser(state, platform.Label)
		state.Platform = platform.ID
		e.appendPercy(state, identity, scanPromptCopy(), scanOptions(), nil)
		state.CurrentStep = domain.StepBusinessScan

	case domain.ActionScanLink, domain.ActionScanWebsite:
		if state.CurrentStep != domain.StepBusinessScan {
			return nil, ErrInvalidTransition
		}
		if opt.URL == "" {
			e.appendPercy(state, identity, "Paste the link right here in the chat and I'll take a look.", scanOptions(), nil)
			break
		}
		e.appendUser(state, opt.URL)
		e.runScan(ctx, state, identity, opt.URL)

	case domain.ActionSkipScan:
		if state.CurrentStep != domain.StepBusinessScan {
			return nil, ErrInvalidTransition
		}
		e.appendUser(state, "Skip for now")
		e.toRecommendations(state, identity, e.fallbackRecommendations(state), "No problem. Based on your goal, here's the team I'd start with.")

	case domain.ActionSelectAgent:
		if state.CurrentStep != domain.StepRecommendations {
			return nil, ErrInvalidTransition
		}
		agent := domain.AgentByID(opt.AgentID)
		if agent == nil {
			return nil, fmt.Errorf("onboarding: unknown agent %q", opt.AgentID)
		}
		e.appendUser(state, fmt.Sprintf("Tell me about %s", agent.Name))
		e.tracker.Track(identity, domain.BehaviorAgentView, map[string]any{
			"agentId": agent.ID,
			"source":  "onboarding",
		})
		picked := false
		for _, id := range state.RecommendedAgents {
			if id == agent.ID {
				picked = true
				break
			}
		}
		if !picked {
			state.RecommendedAgents = append(state.RecommendedAgents, agent.ID)
		}
		detail := fmt.Sprintf("%s: %s.", agent.Name, agent.Tagline)
		if agent.Premium {
			detail += " Premium agent, included once you upgrade."
		}
		e.appendPercy(state, identity, detail, recommendationOptions(e.lastRecommendations(state)), nil)

	case domain.ActionFinish:
		if state.CurrentStep != domain.StepRecommendations {
			return nil, ErrInvalidTransition
		}
		e.appendUser(state, "Looks good, take me there")
		e.tracker.Update(identity, func(sc *domain.SessionContext) {
			sc.RecommendedAgents = append([]string(nil), state.RecommendedAgents...)
		})
		e.appendPercy(state, identity, completionCopy(destinationFor(state.Goal)), nil, nil)
		state.CurrentStep = domain.StepComplete

	default:
		return nil, fmt.Errorf("onboarding: unknown action %q", opt.Action)
	}

	e.persist(state)
	return state, nil
}

// Message handles free-text input. A pasted URL during the scan step is
// treated as a scan request; anything else gets a nudge back to the options.
func (e *Engine) Message(ctx context.Context, identity, text string) (*domain.OnboardingState, error) {
	state, err := e.Get(identity)
	if err != nil {
		return nil, err
	}

	e.appendUser(state, text)
	e.tracker.Track(identity, domain.BehaviorMessageSent, map[string]any{
		"source": "onboarding",
	})

	if state.CurrentStep == domain.StepBusinessScan && scan.IsLikelyURL(text) {
		e.runScan(ctx, state, identity, text)
		e.persist(state)
		return state, nil
	}

	var nudge string
	switch state.CurrentStep {
	case domain.StepGreeting:
		nudge = "Hit the button below whenever you're ready and we'll get started."
	case domain.StepGoalSelection:
		nudge = "Pick the goal that fits best, we can always adjust later."
	case domain.StepPlatform:
		nudge = "Choose the platform where your audience hangs out most."
	case domain.StepBusinessScan:
		nudge = "Paste a full link (starting with https://) or skip the scan."
	case domain.StepRecommendations:
		nudge = "Tap an agent to hear more, or head to your dashboard when you're ready."
	default:
		nudge = "You're all set. Want to start over? Just reset the conversation."
	}
	e.appendPercy(state, identity, nudge, e.optionsForStep(state), nil)

	e.persist(state)
	return state, nil
}

// runScan executes the business scan and moves to recommendations. Scan
// failure is never a dead end: the conversation apologizes and falls back to
// goal-based recommendations.
func (e *Engine) runScan(ctx context.Context, state *domain.OnboardingState, identity, rawURL string) {
	state.BusinessURL = rawURL

	result, err := e.scanner.Scan(ctx, rawURL, identity)
	if err != nil {
		log := e.log.WithIdentity(identity)
		var rl *scan.RateLimitError
		if errors.As(err, &rl) {
			log.Info().Str("reason", rl.Reason).Msg("scan quota hit during onboarding")
			e.toRecommendations(state, identity, e.fallbackRecommendations(state), rl.UpgradePrompt+" Meanwhile, here's where I'd start.")
			return
		}
		log.Warn().Err(err).Msg("business scan failed")
		e.toRecommendations(state, identity, e.fallbackRecommendations(state), scanFailureCopy)
		return
	}

	intro := "Nice, I got a solid read on your business."
	if result.Analysis.Industry != "" && result.Analysis.Industry != "general" {
		intro = fmt.Sprintf("Nice, looks like you're in the %s space. Here's the team I'd put on it.", result.Analysis.Industry)
	}
	e.toRecommendations(state, identity, result.Recommendations, intro)
}

// toGoalSelection emits the goal prompt.
func (e *Engine) toGoalSelection(state *domain.OnboardingState) {
	e.appendPercy(state, state.Identity, goalPromptCopy, goalOptions(), nil)
	state.CurrentStep = domain.StepGoalSelection
}

// toRecommendations emits the recommendation cards and advances the step.
// RecommendedAgents stays untouched here: it collects only the agents the
// user picks off the cards.
func (e *Engine) toRecommendations(state *domain.OnboardingState, identity string, recs []domain.AgentRecommendation, intro string) {
	e.appendPercy(state, identity, intro, recommendationOptions(recs), recs)
	state.CurrentStep = domain.StepRecommendations
}

// fallbackRecommendations builds goal-based cards with Percy leading, used
// when no scan analysis is available.
func (e *Engine) fallbackRecommendations(state *domain.OnboardingState) []domain.AgentRecommendation {
	recs := []domain.AgentRecommendation{{
		AgentID:      domain.PercyAgentID,
		DisplayName:  "Percy",
		Tagline:      "Your AI concierge and team coordinator",
		Reason:       "Always free, coordinates every other agent for you",
		Confidence:   95,
		Capabilities: []string{"coordination", "onboarding", "recommendations"},
	}}

	for _, agent := range domain.AgentsForGoal(state.Goal) {
		if agent.ID == domain.PercyAgentID {
			continue
		}
		recs = append(recs, domain.AgentRecommendation{
			AgentID:      agent.ID,
			DisplayName:  agent.Name,
			Tagline:      agent.Tagline,
			Reason:       fmt.Sprintf("Strong fit for your %s goal", state.Goal),
			Confidence:   80,
			Capabilities: agent.Capabilities,
		})
		if len(recs) == 4 {
			break
		}
	}
	return recs
}

// lastRecommendations recovers the current card set from the state so a
// detail turn can re-offer the same options.
func (e *Engine) lastRecommendations(state *domain.OnboardingState) []domain.AgentRecommendation {
	for i := len(state.History) - 1; i >= 0; i-- {
		if len(state.History[i].Recommendations) > 0 {
			return state.History[i].Recommendations
		}
	}
	return e.fallbackRecommendations(state)
}

func (e *Engine) optionsForStep(state *domain.OnboardingState) []domain.MessageOption {
	switch state.CurrentStep {
	case domain.StepGreeting:
		return greetingOptions()
	case domain.StepGoalSelection:
		return goalOptions()
	case domain.StepPlatform:
		return platformOptions()
	case domain.StepBusinessScan:
		return scanOptions()
	case domain.StepRecommendations:
		return recommendationOptions(e.lastRecommendations(state))
	default:
		return nil
	}
}

// fresh creates and persists a new greeting-step conversation.
func (e *Engine) fresh(identity string) *domain.OnboardingState {
	now := e.now()
	state := &domain.OnboardingState{
		Identity:    identity,
		CurrentStep: domain.StepGreeting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.appendPercy(state, identity, greetingCopy, greetingOptions(), nil)
	e.persist(state)
	return state
}

func (e *Engine) appendUser(state *domain.OnboardingState, text string) {
	state.History = append(state.History, domain.ConversationMessage{
		ID:        uuid.New().String(),
		Role:      domain.RoleUser,
		Text:      text,
		Timestamp: e.now(),
	})
}

// appendPercy emits a percy turn stamped with the intelligence snapshot
// current at emission. The stamp is immutable afterward.
func (e *Engine) appendPercy(state *domain.OnboardingState, identity, text string, opts []domain.MessageOption, recs []domain.AgentRecommendation) {
	stamp := e.stamp(identity)
	state.History = append(state.History, domain.ConversationMessage{
		ID:              uuid.New().String(),
		Role:            domain.RolePercy,
		Text:            text,
		Timestamp:       e.now(),
		Options:         opts,
		Recommendations: recs,
		Intelligence:    &stamp,
	})
}

func (e *Engine) stamp(identity string) domain.IntelligenceStamp {
	sc := e.tracker.Snapshot(identity)
	if sc == nil {
		sc = &domain.SessionContext{Identity: identity, SessionStart: e.now()}
	}
	return e.scorer.Stamp(sc, e.now())
}

// persist writes the state through best-effort. A storage failure degrades
// to in-memory for the turn rather than breaking the conversation.
func (e *Engine) persist(state *domain.OnboardingState) {
	state.UpdatedAt = e.now()
	if err := e.store.Save(state); err != nil {
		e.log.Warn().Err(err).Str("identity", state.Identity).Msg("onboarding persist skipped")
	}
}
