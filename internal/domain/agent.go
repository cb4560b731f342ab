package domain

// PercyAgentID is the universal coordinator agent. It is always free to run
// and always recommended first when no scan context exists.
const PercyAgentID = "percy"

// AgentProfile describes a product agent presentable to the user.
type AgentProfile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Tagline      string   `json:"tagline,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Premium      bool     `json:"premium,omitempty"`
	Goals        []string `json:"goals,omitempty"` // onboarding goals this agent serves
}

// Catalog is the fixed agent lineup. Recommendation ranking and the trial
// allow-list both read from it.
var Catalog = []AgentProfile{
	{
		ID:           PercyAgentID,
		Name:         "Percy",
		Tagline:      "Your AI concierge and team coordinator",
		Capabilities: []string{"coordination", "onboarding", "recommendations"},
		Goals:        []string{"content-creation", "social-media", "branding", "ecommerce", "analytics", "automation", "publishing", "website"},
	},
	{
		ID:           "branding",
		Name:         "BrandAlexander",
		Tagline:      "Complete brand identity in minutes",
		Capabilities: []string{"logo-design", "brand-voice", "visual-identity"},
		Premium:      true,
		Goals:        []string{"branding"},
	},
	{
		ID:           "content-creator",
		Name:         "ContentCarltig",
		Tagline:      "Long-form content that converts",
		Capabilities: []string{"blog-posts", "seo-copy", "email-sequences"},
		Premium:      true,
		Goals:        []string{"content-creation", "publishing"},
	},
	{
		ID:           "social",
		Name:         "SocialNino",
		Tagline:      "Viral-ready social media on autopilot",
		Capabilities: []string{"post-scheduling", "hashtag-research", "trend-analysis"},
		Premium:      true,
		Goals:        []string{"social-media"},
	},
	{
		ID:           "analytics",
		Name:         "TheDon",
		Tagline:      "Insight-driven growth analytics",
		Capabilities: []string{"dashboards", "funnel-analysis", "forecasting"},
		Premium:      true,
		Goals:        []string{"analytics"},
	},
	{
		ID:           "adcreative",
		Name:         "AdmEthen",
		Tagline:      "Ad creatives that stop the scroll",
		Capabilities: []string{"ad-copy", "creative-variants", "audience-targeting"},
		Premium:      true,
		Goals:        []string{"social-media", "ecommerce"},
	},
	{
		ID:           "sitegen",
		Name:         "SiteOnzite",
		Tagline:      "Websites built and optimized for you",
		Capabilities: []string{"site-generation", "seo-audit", "conversion-optimization"},
		Premium:      true,
		Goals:        []string{"website", "ecommerce"},
	},
	{
		ID:           "biz",
		Name:         "BizZiggy",
		Tagline:      "Business strategy and automation plans",
		Capabilities: []string{"strategy", "workflow-automation", "market-research"},
		Premium:      true,
		Goals:        []string{"automation", "analytics"},
	},
	{
		ID:           "publishing",
		Name:         "PublishPete",
		Tagline:      "From manuscript to published book",
		Capabilities: []string{"editing", "formatting", "distribution"},
		Premium:      true,
		Goals:        []string{"publishing"},
	},
}

// AgentByID looks up a catalog entry, returning nil when unknown.
func AgentByID(id string) *AgentProfile {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i]
		}
	}
	return nil
}

// AgentsForGoal returns catalog agents serving the given onboarding goal,
// Percy excluded.
func AgentsForGoal(goal string) []AgentProfile {
	var out []AgentProfile
	for _, a := range Catalog {
		if a.ID == PercyAgentID {
			continue
		}
		for _, g := range a.Goals {
			if g == goal {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
