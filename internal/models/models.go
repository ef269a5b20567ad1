package models

import "time"

// Step is one state of the coaching dialogue
type Step string

const (
	StepVision          Step = "vision"
	StepMission         Step = "mission"
	StepClientele       Step = "clientele"
	StepDifferentiation Step = "differentiation"
	StepOffer           Step = "offer"
	StepSynthesis       Step = "synthesis"
)

// CoachingSteps lists the five answerable steps in dialogue order
var CoachingSteps = []Step{StepVision, StepMission, StepClientele, StepDifferentiation, StepOffer}

// Next returns the step following s. Offer is followed by synthesis, and
// synthesis is terminal.
func (s Step) Next() Step {
	for i, step := range CoachingSteps {
		if step == s && i+1 < len(CoachingSteps) {
			return CoachingSteps[i+1]
		}
	}
	return StepSynthesis
}

// Valid reports whether s is one of the known states
func (s Step) Valid() bool {
	if s == StepSynthesis {
		return true
	}
	for _, step := range CoachingSteps {
		if step == s {
			return true
		}
	}
	return false
}

// SessionStatus is the lifecycle status of a coaching session
type SessionStatus string

const (
	StatusInitialized      SessionStatus = "initialized"
	StatusInProgress       SessionStatus = "in_progress"
	StatusCoachingComplete SessionStatus = "coaching_complete"
	StatusAgentsRunning    SessionStatus = "agents_running"
	StatusBriefReady       SessionStatus = "brief_ready"
	StatusCompleted        SessionStatus = "completed"
	StatusFailed           SessionStatus = "failed"
)

// Terminal reports whether no further coaching can happen in this status
func (s SessionStatus) Terminal() bool {
	return s == StatusBriefReady || s == StatusCompleted || s == StatusFailed
}

// Message represents a single message in a coaching conversation
type Message struct {
	Role      string    `json:"role"` // "user", "coach"
	Text      string    `json:"text"`
	Step      Step      `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// Location is where the business operates
type Location struct {
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
	District    string `json:"district,omitempty"`
}

// Onboarding is identification data captured once, before coaching starts.
// Session writes never overwrite a stored onboarding block.
type Onboarding struct {
	BusinessName string   `json:"business_name,omitempty"`
	Sector       string   `json:"sector,omitempty"`
	CountryCode  string   `json:"country_code,omitempty"`
	City         string   `json:"city,omitempty"`
	District     string   `json:"district,omitempty"`
	Services     []string `json:"services,omitempty"`
}

// Session is the state of one user's coaching dialogue
type Session struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	BriefID        string          `json:"brief_id"`
	CurrentStep    Step            `json:"current_step"`
	CompletedSteps map[Step]bool   `json:"completed_steps"`
	Messages       []Message       `json:"messages"`
	Brief          map[Step]string `json:"brief"`
	Sector         string          `json:"sector,omitempty"`
	Location       Location        `json:"location"`
	Status         SessionStatus   `json:"status"`
	Onboarding     *Onboarding     `json:"onboarding,omitempty"`
	SelectedTheme  string          `json:"selected_theme,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// BusinessBrief is the finalized structured output of a coaching session
type BusinessBrief struct {
	ID               string   `json:"id"`
	SessionID        string   `json:"session_id"`
	UserID           string   `json:"user_id"`
	BusinessName     string   `json:"business_name"`
	Sector           string   `json:"sector"`
	Location         Location `json:"location"`
	Vision           string   `json:"vision"`
	Mission          string   `json:"mission"`
	TargetMarket     string   `json:"target_market"`
	Differentiation  string   `json:"differentiation"`
	Offer            string   `json:"offer"`
	ValueProposition string   `json:"value_proposition,omitempty"`
	Services         []string `json:"services,omitempty"`
	Competitors      []string `json:"competitors,omitempty"`
	Goals            []string `json:"goals,omitempty"`
}

// AgentName identifies a sub-agent
type AgentName string

const (
	AgentResearch AgentName = "research"
	AgentContent  AgentName = "content"
	AgentLogo     AgentName = "logo"
	AgentImages   AgentName = "images"
	AgentSEO      AgentName = "seo"
	AgentTemplate AgentName = "template"
)

// AgentResult is the typed output of one sub-agent for one brief
type AgentResult[T any] struct {
	Agent        AgentName      `json:"agent"`
	Payload      T              `json:"payload"`
	FallbackMode bool           `json:"fallback_mode"`
	Error        string         `json:"error,omitempty"`
	Provider     string         `json:"provider,omitempty"`
	Model        string         `json:"model,omitempty"`
	Duration     time.Duration  `json:"duration"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Succeeded reports whether the result came from a successful provider interaction
func (r AgentResult[T]) Succeeded() bool {
	return !r.FallbackMode && r.Error == ""
}

// Status returns the untyped status view of the result
func (r AgentResult[T]) Status() AgentStatus {
	return AgentStatus{
		Agent:        r.Agent,
		FallbackMode: r.FallbackMode,
		Error:        r.Error,
		Provider:     r.Provider,
		Model:        r.Model,
		Duration:     r.Duration,
	}
}

// AgentStatus is the payload-free summary of an AgentResult
type AgentStatus struct {
	Agent        AgentName     `json:"agent"`
	FallbackMode bool          `json:"fallback_mode"`
	Error        string        `json:"error,omitempty"`
	Provider     string        `json:"provider,omitempty"`
	Model        string        `json:"model,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Succeeded mirrors AgentResult.Succeeded
func (s AgentStatus) Succeeded() bool {
	return !s.FallbackMode && s.Error == ""
}

// ReadyThreshold is the number of successful slots required before a site is rendered
const ReadyThreshold = 3

// OrchestrationState is constructed fresh for each orchestration run
type OrchestrationState struct {
	UserID            string                      `json:"user_id"`
	BriefID           string                      `json:"brief_id"`
	Brief             BusinessBrief               `json:"business_brief"`
	Research          AgentResult[ResearchData]   `json:"research"`
	Content           AgentResult[ContentData]    `json:"content"`
	Logo              AgentResult[LogoData]       `json:"logo"`
	Images            AgentResult[ImagesData]     `json:"images"`
	SEO               AgentResult[SEOData]        `json:"seo"`
	Template          AgentResult[ThemeSelection] `json:"template"`
	PreselectedTheme  string                      `json:"preselected_theme,omitempty"`
	SelectedTheme     string                      `json:"selected_theme,omitempty"`
	OverallConfidence float64                     `json:"overall_confidence"`
	IsReadyForSite    bool                        `json:"is_ready_for_site"`
	Error             string                      `json:"error,omitempty"`
}

// Slots returns the statuses of the five counted agent slots
func (s *OrchestrationState) Slots() []AgentStatus {
	return []AgentStatus{
		s.Research.Status(),
		s.Content.Status(),
		s.Logo.Status(),
		s.Images.Status(),
		s.SEO.Status(),
	}
}

// Finalize computes OverallConfidence and IsReadyForSite from the slots
func (s *OrchestrationState) Finalize() {
	slots := s.Slots()
	succeeded := 0
	for _, slot := range slots {
		if slot.Succeeded() {
			succeeded++
		}
	}
	s.OverallConfidence = float64(succeeded) / float64(len(slots))
	s.IsReadyForSite = succeeded >= ReadyThreshold
}

// EmbeddingKind classifies a stored embedding
type EmbeddingKind string

const (
	EmbeddingBrief        EmbeddingKind = "brief"
	EmbeddingConversation EmbeddingKind = "conversation"
	EmbeddingPreference   EmbeddingKind = "preference"
)

// Embedding is a stored vector for a brief
type Embedding struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	BriefID    string         `json:"brief_id"`
	Vector     []float32      `json:"vector"`
	Text       string         `json:"text"`
	Kind       EmbeddingKind  `json:"kind"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Similarity float64        `json:"similarity"` // set by searches
}

// Subscription plans
const (
	PlanTrial      = "trial"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// NormalizePlan maps unknown plan names to the trial plan
func NormalizePlan(plan string) string {
	switch plan {
	case PlanTrial, PlanBasic, PlanPro, PlanEnterprise:
		return plan
	}
	return PlanTrial
}

// Subscription is the account-system view of a user's plan and usage
type Subscription struct {
	UserID       string    `json:"user_id"`
	Plan         string    `json:"plan"`
	Status       string    `json:"status"` // active, canceled
	CurrentUsage int       `json:"current_usage"`
	PeriodStart  time.Time `json:"period_start"`
}
