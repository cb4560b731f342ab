package domain

import "time"

// OnboardingStep identifies a state in the onboarding conversation.
type OnboardingStep string

const (
	StepGreeting        OnboardingStep = "greeting"
	StepGoalSelection   OnboardingStep = "goal-selection"
	StepPlatform        OnboardingStep = "platform-selection"
	StepBusinessScan    OnboardingStep = "business-scan"
	StepRecommendations OnboardingStep = "agent-recommendations"
	StepComplete        OnboardingStep = "complete"
)

// MessageRole discriminates who authored a conversation message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RolePercy MessageRole = "percy"
)

// OptionAction tags a selectable option with the transition it triggers.
// Each action reads only its own payload field on MessageOption, so the
// transition handler never shape-checks loose data.
type OptionAction string

const (
	ActionStart       OptionAction = "start"
	ActionSelectGoal  OptionAction = "select-goal"
	ActionSelectPlat  OptionAction = "select-platform"
	ActionScanLink    OptionAction = "scan-link"
	ActionScanWebsite OptionAction = "scan-website"
	ActionSkipScan    OptionAction = "skip-scan"
	ActionSelectAgent OptionAction = "select-agent"
	ActionFinish      OptionAction = "finish"
)

// MessageOption is a selectable choice attached to a percy message.
// Exactly one payload field is meaningful for a given Action.
type MessageOption struct {
	Label  string       `json:"label"`
	Action OptionAction `json:"action"`

	Goal     string `json:"goal,omitempty"`     // select-goal
	Platform string `json:"platform,omitempty"` // select-platform
	AgentID  string `json:"agentId,omitempty"`  // select-agent
	URL      string `json:"url,omitempty"`      // scan-link / scan-website
}

// AgentRecommendation is a card suggesting an agent to the user.
type AgentRecommendation struct {
	AgentID      string   `json:"agentId"`
	DisplayName  string   `json:"displayName"`
	Tagline      string   `json:"tagline,omitempty"`
	Reason       string   `json:"reason"`
	Confidence   int      `json:"confidence"` // 0–100
	Capabilities []string `json:"capabilities,omitempty"`
}

// IntelligenceStamp is the point-in-time intelligence metadata attached to a
// percy message at emission. Later score changes never rewrite it.
type IntelligenceStamp struct {
	IntelligenceScore int               `json:"intelligenceScore"`
	PercyState        string            `json:"percyState"`
	ConversionScore   int               `json:"conversionScore"`
	ConversationPhase ConversationPhase `json:"conversationPhase"`
}

// ConversationMessage is one turn in the onboarding conversation.
type ConversationMessage struct {
	ID              string                `json:"id"`
	Role            MessageRole           `json:"role"`
	Text            string                `json:"text"`
	Timestamp       time.Time             `json:"timestamp"`
	Options         []MessageOption       `json:"options,omitempty"`
	Recommendations []AgentRecommendation `json:"recommendations,omitempty"`
	Intelligence    *IntelligenceStamp    `json:"intelligence,omitempty"`
}

// OnboardingState is the persisted conversation state for one identity.
// History is append-only; the state is persisted after every mutation and
// cleared only by explicit user reset.
type OnboardingState struct {
	Identity          string                `json:"identity"`
	CurrentStep       OnboardingStep        `json:"currentStep"`
	History           []ConversationMessage `json:"history,omitempty"`
	Goal              string                `json:"goal,omitempty"`
	Platform          string                `json:"platform,omitempty"`
	BusinessURL       string                `json:"businessUrl,omitempty"`
	RecommendedAgents []string              `json:"recommendedAgents,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}
