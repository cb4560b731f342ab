// Package intent derives the conversation phase and conversion score from an
// accumulated session context. Both derivations are pure: given the same
// snapshot they always produce the same result, and they are re-run in full
// after every behavior update rather than patched incrementally, so they can
// never drift from the underlying counters.
package intent

import (
	"time"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/domain"
)

// Phase thresholds. Priority order, first match wins.
const (
	directLockedClicks = 3
	directInquiries    = 2
	directExplored     = 5

	hintLockedClicks = 1
	hintInquiries    = 1
	hintExplored     = 3
	hintMessages     = 5
)

// Scorer computes intent derivations using configured weights.
type Scorer struct {
	w config.ScoringConfig
}

// NewScorer creates a scorer with the given weighting constants.
func NewScorer(w config.ScoringConfig) *Scorer {
	return &Scorer{w: w}
}

// Phase derives the conversation phase from the context counters.
func (s *Scorer) Phase(ctx *domain.SessionContext) domain.ConversationPhase {
	locked := len(ctx.LockedAgentClicks)
	explored := len(ctx.ExploredAgents)

	switch {
	case locked >= directLockedClicks ||
		ctx.SubscriptionInquiries >= directInquiries ||
		explored >= directExplored:
		return domain.PhaseDirect
	case locked >= hintLockedClicks ||
		ctx.SubscriptionInquiries >= hintInquiries ||
		explored >= hintExplored ||
		ctx.MessageCount >= hintMessages:
		return domain.PhaseHint
	default:
		return domain.PhaseSubtle
	}
}

// Score derives the 0-100 conversion score. The session-age bonus is the one
// deliberate wall-clock dependence; everything else reads the counters.
func (s *Scorer) Score(ctx *domain.SessionContext, now time.Time) int {
	score := 0
	score += capped(len(ctx.ExploredAgents)*s.w.ExploredWeight, s.w.ExploredCap)
	score += capped(len(ctx.LockedAgentClicks)*s.w.LockedWeight, s.w.LockedCap)
	score += capped(ctx.SubscriptionInquiries*s.w.InquiryWeight, s.w.InquiryCap)

	age := now.Sub(ctx.SessionStart)
	if age > time.Duration(s.w.SessionBonusMinutes)*time.Minute {
		score += s.w.SessionBonus
	}
	if age > time.Duration(s.w.SessionBonusLateMinutes)*time.Minute {
		score += s.w.SessionBonusLate
	}

	if ctx.MessageCount > s.w.MessageBonusAfter {
		score += s.w.MessageBonus
	}
	if ctx.MessageCount > s.w.MessageBonusLateAfter {
		score += s.w.MessageBonusLate
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Apply recomputes phase and score and writes them back to the context.
func (s *Scorer) Apply(ctx *domain.SessionContext, now time.Time) {
	ctx.ConversationPhase = s.Phase(ctx)
	ctx.ConversionScore = s.Score(ctx, now)
}

// Stamp captures the intelligence metadata snapshot attached to percy
// messages at emission time.
func (s *Scorer) Stamp(ctx *domain.SessionContext, now time.Time) domain.IntelligenceStamp {
	phase := s.Phase(ctx)
	score := s.Score(ctx, now)

	state := "observing"
	switch phase {
	case domain.PhaseHint:
		state = "analyzing"
	case domain.PhaseDirect:
		state = "confident"
	}

	// Intelligence reads as a presence level: a floor of 60 plus a share of
	// the conversion score, so Percy never presents as clueless.
	intelligence := 60 + score*2/5
	if intelligence > 100 {
		intelligence = 100
	}

	return domain.IntelligenceStamp{
		IntelligenceScore: intelligence,
		PercyState:        state,
		ConversionScore:   score,
		ConversationPhase: phase,
	}
}

func capped(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
