// Package coach runs the five-step business-definition dialogue:
// vision, mission, clientele, differentiation, offer, then synthesis.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

const (
	// CompletionThreshold is the minimum validation confidence to complete a step
	CompletionThreshold = 0.6
	// ReformulateMinLength is the rune count below which text is never reformulated
	ReformulateMinLength = 20
)

var (
	// ErrValidation is returned for input the current step cannot accept
	ErrValidation = errors.New("validation error")
	// ErrSessionNotFound is returned for missing sessions and sessions owned by someone else
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore persists live sessions. vfs.FS implements it.
type SessionStore interface {
	WriteSession(ctx context.Context, s *models.Session) error
	ResolveSession(ctx context.Context, sessionID, userID string) (*models.Session, error)
}

// Coach drives one user's coaching dialogue
type Coach struct {
	store      SessionStore
	llm        provider.LLM
	classifier *SectorClassifier
	now        func() time.Time
}

// New creates a coach over a session store and the user's plan LLM
func New(store SessionStore, llm provider.LLM) *Coach {
	return &Coach{
		store:      store,
		llm:        llm,
		classifier: NewSectorClassifier(llm),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartResult is returned when a session is created
type StartResult struct {
	SessionID string          `json:"session_id"`
	Step      models.Step     `json:"current_step"`
	Prompt    string          `json:"coach_message"`
	Examples  []string        `json:"examples"`
	Session   *models.Session `json:"-"`
}

// StepResult is returned after each user response. Complete is set once
// the offer step succeeds and the session reaches synthesis.
type StepResult struct {
	CurrentStep     models.Step     `json:"current_step"`
	CoachMessage    string          `json:"coach_message"`
	IsStepComplete  bool            `json:"is_step_complete"`
	ConfidenceScore float64         `json:"confidence_score"`
	Examples        []string        `json:"examples,omitempty"`
	Complete        bool            `json:"coaching_complete"`
	Session         *models.Session `json:"-"`
}

// Start creates a session at the vision step. onboarding may be nil.
func (c *Coach) Start(ctx context.Context, userID string, onboarding *models.Onboarding, initialMessage string) (*StartResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	now := c.now()
	id := uuid.NewString()
	s := &models.Session{
		ID:             id,
		UserID:         userID,
		BriefID:        id,
		CurrentStep:    models.StepVision,
		CompletedSteps: map[models.Step]bool{},
		Brief:          map[models.Step]string{},
		Status:         models.StatusInitialized,
		Onboarding:     onboarding,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if onboarding != nil {
		s.Location = models.Location{CountryCode: onboarding.CountryCode, City: onboarding.City, District: onboarding.District}
		if onboarding.Sector != "" {
			s.Sector = catalog.NormalizeSector(onboarding.Sector)
		}
	}
	if msg := strings.TrimSpace(initialMessage); msg != "" {
		s.Messages = append(s.Messages, models.Message{Role: "user", Text: msg, Step: models.StepVision, Timestamp: now})
		if s.Sector == "" || s.Sector == catalog.SectorGeneric {
			s.Sector = c.classifier.Classify(ctx, msg).Sector
		}
	}

	prompt := catalog.Prompt(models.StepVision).Question
	s.Messages = append(s.Messages, models.Message{Role: "coach", Text: prompt, Step: models.StepVision, Timestamp: now})

	if err := c.store.WriteSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	slog.Info("Coach.Start: session created", "session_id", id, "user_id", userID)

	return &StartResult{
		SessionID: id,
		Step:      models.StepVision,
		Prompt:    prompt,
		Examples:  catalog.StepExamples(s.Sector, models.StepVision),
		Session:   s,
	}, nil
}

// Session resolves a session on behalf of userID
func (c *Coach) Session(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	s, err := c.store.ResolveSession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// activeSession resolves a session that can still be coached
func (c *Coach) activeSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	s, err := c.Session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.CurrentStep == models.StepSynthesis || s.Status.Terminal() {
		return nil, fmt.Errorf("%w: coaching already complete", ErrValidation)
	}
	if !s.CurrentStep.Valid() {
		return nil, fmt.Errorf("%w: unknown step %q", ErrValidation, s.CurrentStep)
	}
	return s, nil
}

// Advance validates the user's answer for the current step and moves to
// the next step when it is accepted
func (c *Coach) Advance(ctx context.Context, userID, sessionID, text string) (*StepResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrValidation)
	}
	s, err := c.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	step := s.CurrentStep
	s.Messages = append(s.Messages, models.Message{Role: "user", Text: text, Step: step, Timestamp: now})

	v := c.validate(ctx, s, text)
	result := &StepResult{ConfidenceScore: v.ConfidenceScore}

	if v.IsValid && v.ConfidenceScore >= CompletionThreshold {
		if s.Brief == nil {
			s.Brief = map[models.Step]string{}
		}
		if s.CompletedSteps == nil {
			s.CompletedSteps = map[models.Step]bool{}
		}
		s.Brief[step] = firstNonEmpty(v.ReformulatedResponse, text)
		s.CompletedSteps[step] = true
		s.CurrentStep = step.Next()
		s.Status = models.StatusInProgress

		if s.Sector == "" || s.Sector == catalog.SectorGeneric {
			s.Sector = c.classifier.Classify(ctx, accumulated(s)).Sector
		}

		result.IsStepComplete = true
		result.CoachMessage = catalog.Prompt(s.CurrentStep).Question
		if s.CurrentStep == models.StepSynthesis {
			s.Status = models.StatusCoachingComplete
			result.Complete = true
		} else {
			result.Examples = catalog.StepExamples(s.Sector, s.CurrentStep)
		}
	} else {
		result.CoachMessage = firstNonEmpty(v.ClarificationQuestion, catalog.Prompt(step).Clarification)
		result.Examples = catalog.StepExamples(s.Sector, step)
		if s.Status == models.StatusInitialized {
			s.Status = models.StatusInProgress
		}
	}
	result.CurrentStep = s.CurrentStep

	s.Messages = append(s.Messages, models.Message{Role: "coach", Text: result.CoachMessage, Step: s.CurrentStep, Timestamp: now})
	s.UpdatedAt = now
	if err := c.store.WriteSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	result.Session = s

	slog.Debug("Coach.Advance: processed response",
		"session_id", s.ID,
		"step", step,
		"accepted", result.IsStepComplete,
		"confidence", v.ConfidenceScore)
	return result, nil
}

// SetStatus updates the lifecycle status of a session
func (c *Coach) SetStatus(ctx context.Context, s *models.Session, status models.SessionStatus) error {
	s.Status = status
	s.UpdatedAt = c.now()
	if err := c.store.WriteSession(ctx, s); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// accumulated joins onboarding and answered steps for sector detection
func accumulated(s *models.Session) string {
	var parts []string
	if s.Onboarding != nil {
		parts = append(parts, s.Onboarding.BusinessName, s.Onboarding.Sector)
	}
	for _, step := range models.CoachingSteps {
		if text := s.Brief[step]; text != "" {
			parts = append(parts, text)
		}
	}
	for _, m := range s.Messages {
		if m.Role == "user" {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
