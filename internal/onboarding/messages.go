package onboarding

import (
	"fmt"

	"github.com/skrblai/percy/internal/domain"
)

// Goal is one selectable onboarding goal.
type Goal struct {
	ID    string
	Label string
}

// Goals is the fixed goal lineup presented after the greeting.
var Goals = []Goal{
	{ID: "content-creation", Label: "Create content that converts"},
	{ID: "social-media", Label: "Grow my social media"},
	{ID: "branding", Label: "Build my brand identity"},
	{ID: "ecommerce", Label: "Sell more online"},
	{ID: "analytics", Label: "Understand my numbers"},
	{ID: "automation", Label: "Automate my workflows"},
	{ID: "publishing", Label: "Publish a book"},
	{ID: "website", Label: "Launch or improve my website"},
}

// Platform is one selectable primary platform.
type Platform struct {
	ID    string
	Label string
}

// Platforms is the fixed platform lineup.
var Platforms = []Platform{
	{ID: "website", Label: "My website"},
	{ID: "instagram", Label: "Instagram"},
	{ID: "youtube", Label: "YouTube"},
	{ID: "tiktok", Label: "TikTok"},
	{ID: "linkedin", Label: "LinkedIn"},
	{ID: "shopify", Label: "Shopify"},
	{ID: "other", Label: "Somewhere else"},
}

// destinations maps a finished goal to where the user lands next.
var destinations = map[string]string{
	"content-creation": "/content-automation",
	"social-media":     "/social-media",
	"branding":         "/branding",
	"ecommerce":        "/ecommerce",
	"analytics":        "/analytics",
	"publishing":       "/book-publishing",
	"website":          "/website",
}

// destinationFor returns the post-onboarding route for a goal.
func destinationFor(goal string) string {
	if dest, ok := destinations[goal]; ok {
		return dest
	}
	return "/dashboard"
}

func goalByID(id string) *Goal {
	for i := range Goals {
		if Goals[i].ID == id {
			return &Goals[i]
		}
	}
	return nil
}

func platformByID(id string) *Platform {
	for i := range Platforms {
		if Platforms[i].ID == id {
			return &Platforms[i]
		}
	}
	return nil
}

func greetingOptions() []domain.MessageOption {
	return []domain.MessageOption{
		{Label: "Let's go", Action: domain.ActionStart},
	}
}

func goalOptions() []domain.MessageOption {
	opts := make([]domain.MessageOption, 0, len(Goals))
	for _, g := range Goals {
		opts = append(opts, domain.MessageOption{
			Label:  g.Label,
			Action: domain.ActionSelectGoal,
			Goal:   g.ID,
		})
	}
	return opts
}

func platformOptions() []domain.MessageOption {
	opts := make([]domain.MessageOption, 0, len(Platforms))
	for _, p := range Platforms {
		opts = append(opts, domain.MessageOption{
			Label:    p.Label,
			Action:   domain.ActionSelectPlat,
			Platform: p.ID,
		})
	}
	return opts
}

func scanOptions() []domain.MessageOption {
	return []domain.MessageOption{
		{Label: "Scan my website", Action: domain.ActionScanWebsite},
		{Label: "Scan a link (profile or video)", Action: domain.ActionScanLink},
		{Label: "Skip for now", Action: domain.ActionSkipScan},
	}
}

func recommendationOptions(recs []domain.AgentRecommendation) []domain.MessageOption {
	opts := make([]domain.MessageOption, 0, len(recs)+1)
	for _, rec := range recs {
		opts = append(opts, domain.MessageOption{
			Label:   fmt.Sprintf("Tell me about %s", rec.DisplayName),
			Action:  domain.ActionSelectAgent,
			AgentID: rec.AgentID,
		})
	}
	opts = append(opts, domain.MessageOption{
		Label:  "Looks good, take me there",
		Action: domain.ActionFinish,
	})
	return opts
}

const greetingCopy = "Hey, I'm Percy, your AI concierge. I'll match you with the right agents in under a minute. Ready?"

const goalPromptCopy = "What's the big win you're after right now?"

func platformPromptCopy(goal *Goal) string {
	return fmt.Sprintf("Got it, %s. Where does most of your audience live today?", lowerFirst(goal.Label))
}

func scanPromptCopy() string {
	return "One last thing. Drop a link to your website, profile, or a video and I'll size up your business on the spot. Or skip and I'll work from what you've told me."
}

func completionCopy(destination string) string {
	return fmt.Sprintf("You're all set. I've lined up your agents, head over to %s whenever you're ready.", destination)
}

const scanFailureCopy = "Hmm, I couldn't get a read on that link. No worries, here's what I'd line up based on what you've told me."

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}
