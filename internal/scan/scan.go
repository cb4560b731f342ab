// Package scan implements the business-analysis collaborator: given a URL it
// classifies the link, fetches and inspects the content, and returns a
// structured analysis with ranked agent recommendations. It is heuristic by
// design; callers treat it as a black box that either answers quickly or
// fails fast.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/skrblai/percy/internal/domain"
)

// ContentType is the closed set of link classes the scanner understands.
// The class determines which heuristic branch runs.
type ContentType string

const (
	ContentWebsite ContentType = "website"
	ContentProfile ContentType = "professional-profile"
	ContentVideo   ContentType = "video-link"
)

// Analysis is the structured business analysis extracted from a scan.
type Analysis struct {
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	BusinessType  string   `json:"businessType,omitempty"`
	KeyFeatures   []string `json:"keyFeatures,omitempty"`
	Challenges    []string `json:"challenges,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	QuickWins     []string `json:"quickWins,omitempty"`
}

// Result is a successful scan outcome.
type Result struct {
	ContentType     ContentType                  `json:"contentType"`
	Analysis        Analysis                     `json:"analysis"`
	Recommendations []domain.AgentRecommendation `json:"agentRecommendations"`
	ScanID          string                       `json:"scanId"`
	Timestamp       time.Time                    `json:"timestamp"`
}

// RateLimitError is a structured quota rejection. It carries enough detail
// for the conversation engine to render an upgrade prompt instead of a
// generic error.
type RateLimitError struct {
	Reason        string `json:"reason"`
	Remaining     int    `json:"remaining"`
	UpgradePrompt string `json:"upgradePrompt"`
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("scan quota exceeded: %s", e.Reason)
}

// Scanner analyzes a URL on behalf of an identity.
type Scanner interface {
	Scan(ctx context.Context, rawURL, identity string) (*Result, error)
}
