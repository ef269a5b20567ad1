package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

const coachSystem = `Tu es un coach d'entreprise bienveillant qui aide des entrepreneurs africains
à formuler leur projet. Tu réponds en français, avec des phrases courtes et concrètes.`

var validationSchema = provider.Object(map[string]*provider.Schema{
	"extracted_data":         provider.Strings("informations clés extraites de la réponse"),
	"is_valid":               provider.Bool("la réponse répond à la question de l'étape"),
	"confidence_score":       provider.Num("entre 0 et 1"),
	"clarification_needed":   provider.Bool("une précision est nécessaire"),
	"clarification_question": provider.Str("question de relance si nécessaire"),
	"reformulated_response":  provider.Str("réponse reformulée de façon professionnelle"),
})

// Validation is the LLM's assessment of one answer
type Validation struct {
	ExtractedData         []string `json:"extracted_data"`
	IsValid               bool     `json:"is_valid"`
	ConfidenceScore       float64  `json:"confidence_score"`
	ClarificationNeeded   bool     `json:"clarification_needed"`
	ClarificationQuestion string   `json:"clarification_question"`
	ReformulatedResponse  string   `json:"reformulated_response"`
}

func (c *Coach) validate(ctx context.Context, s *models.Session, text string) Validation {
	obj, err := c.llm.GenerateStructured(ctx, provider.StructuredRequest{
		System:      coachSystem,
		Prompt:      validationPrompt(s, text),
		Schema:      validationSchema,
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err == nil {
		var v Validation
		if v, err = provider.Decode[Validation](obj); err == nil {
			v.ConfidenceScore = clamp01(v.ConfidenceScore)
			if v.ClarificationNeeded && v.ClarificationQuestion != "" {
				v.IsValid = false
			}
			return v
		}
	}
	slog.Warn("Coach.validate: LLM unavailable, using length heuristic", "session_id", s.ID, "step", s.CurrentStep, "error", err)
	return fallbackValidation(s.CurrentStep, text)
}

// fallbackValidation accepts any reasonably detailed answer
func fallbackValidation(step models.Step, text string) Validation {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) >= ReformulateMinLength {
		return Validation{IsValid: true, ConfidenceScore: CompletionThreshold, ReformulatedResponse: text}
	}
	return Validation{
		ClarificationNeeded:   true,
		ClarificationQuestion: catalog.Prompt(step).Clarification,
	}
}

func validationPrompt(s *models.Session, text string) string {
	return fmt.Sprintf(`Étape du coaching : %s
Question posée : %s
Contexte déjà recueilli :
%s

Réponse de l'entrepreneur :
%s

Évalue si la réponse est suffisante pour cette étape. Si elle est trop vague,
propose une question de relance. Sinon reformule-la en une ou deux phrases.`,
		s.CurrentStep, catalog.Prompt(s.CurrentStep).Question, sessionContext(s), text)
}

// sessionContext summarises what the session already knows
func sessionContext(s *models.Session) string {
	var b strings.Builder
	if o := s.Onboarding; o != nil {
		if o.BusinessName != "" {
			fmt.Fprintf(&b, "- Entreprise : %s\n", o.BusinessName)
		}
		if o.Sector != "" {
			fmt.Fprintf(&b, "- Secteur : %s\n", o.Sector)
		}
	}
	if loc := catalog.FormatLocation(s.Location); loc != "" {
		fmt.Fprintf(&b, "- Lieu : %s\n", loc)
	}
	for _, step := range models.CoachingSteps {
		if text := s.Brief[step]; text != "" {
			fmt.Fprintf(&b, "- %s : %s\n", step, text)
		}
	}
	if b.Len() == 0 {
		return "(aucun)"
	}
	return b.String()
}

var helpSchema = provider.Object(map[string]*provider.Schema{
	"questions":  provider.Strings("deux ou trois questions pour guider la réflexion"),
	"suggestion": provider.Str("une piste de réponse"),
})

type helpAnswer struct {
	Questions  []string `json:"questions"`
	Suggestion string   `json:"suggestion"`
}

// HelpResult guides a user stuck on a step
type HelpResult struct {
	Step       models.Step `json:"current_step"`
	Questions  []string    `json:"questions"`
	Suggestion string      `json:"suggestion"`
	Examples   []string    `json:"examples"`
}

// Help returns guiding questions for the session's current step
func (c *Coach) Help(ctx context.Context, userID, sessionID string) (*HelpResult, error) {
	s, err := c.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	result := &HelpResult{Step: s.CurrentStep, Examples: catalog.StepExamples(s.Sector, s.CurrentStep)}

	obj, err := c.llm.GenerateStructured(ctx, provider.StructuredRequest{
		System: coachSystem,
		Prompt: fmt.Sprintf(`Étape : %s
Question : %s
Contexte :
%s
L'entrepreneur a besoin d'aide pour répondre. Propose deux ou trois questions
simples et une piste de réponse.`, s.CurrentStep, catalog.Prompt(s.CurrentStep).Question, sessionContext(s)),
		Schema:      helpSchema,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err == nil {
		var h helpAnswer
		if h, err = provider.Decode[helpAnswer](obj); err == nil {
			result.Questions = nonEmpty(h.Questions, 3)
			result.Suggestion = strings.TrimSpace(h.Suggestion)
		}
	}
	if err != nil {
		slog.Warn("Coach.Help: LLM unavailable, using catalog prompts", "session_id", s.ID, "error", err)
	}

	prompt := catalog.Prompt(s.CurrentStep)
	for _, q := range []string{prompt.Question, prompt.Clarification} {
		if len(result.Questions) >= 2 {
			break
		}
		result.Questions = append(result.Questions, q)
	}
	if result.Suggestion == "" && len(result.Examples) > 0 {
		result.Suggestion = result.Examples[0]
	}
	return result, nil
}

// Reformulate rewrites an answer in a professional register. Short text
// and provider failures return the input unchanged.
func (c *Coach) Reformulate(ctx context.Context, userID, sessionID, text string) (string, error) {
	s, err := c.Session(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < ReformulateMinLength {
		return text, nil
	}

	out, err := c.llm.Generate(ctx, provider.GenerateRequest{
		System: coachSystem,
		Prompt: fmt.Sprintf(`Reformule ce texte de façon claire et professionnelle, en gardant le sens
et la langue d'origine. Réponds uniquement avec le texte reformulé.

Étape : %s
Texte : %s`, s.CurrentStep, text),
		Temperature: 0.4,
		MaxTokens:   400,
	})
	if err != nil {
		slog.Warn("Coach.Reformulate: LLM unavailable, returning input", "session_id", s.ID, "error", err)
		return text, nil
	}
	if out = strings.TrimSpace(out); out == "" {
		return text, nil
	}
	return out, nil
}

// ProposalCount is the number of proposals returned for a step
const ProposalCount = 3

var proposalSchema = provider.Object(map[string]*provider.Schema{
	"proposals": provider.Strings("trois propositions de réponse"),
})

type proposalAnswer struct {
	Proposals []string `json:"proposals"`
}

// Proposals suggests exactly three candidate answers for the current step
func (c *Coach) Proposals(ctx context.Context, userID, sessionID string) ([]string, error) {
	s, err := c.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	var proposals []string
	obj, err := c.llm.GenerateStructured(ctx, provider.StructuredRequest{
		System: coachSystem,
		Prompt: fmt.Sprintf(`Étape : %s
Question : %s
Contexte :
%s
Propose trois réponses possibles, adaptées à cette entreprise.`, s.CurrentStep, catalog.Prompt(s.CurrentStep).Question, sessionContext(s)),
		Schema:      proposalSchema,
		Temperature: 0.8,
		MaxTokens:   500,
	})
	if err == nil {
		var p proposalAnswer
		if p, err = provider.Decode[proposalAnswer](obj); err == nil {
			proposals = nonEmpty(p.Proposals, ProposalCount)
		}
	}
	if err != nil {
		slog.Warn("Coach.Proposals: LLM unavailable, using examples", "session_id", s.ID, "error", err)
	}

	var examples []string
	examples = append(examples, catalog.StepExamples(s.Sector, s.CurrentStep)...)
	examples = append(examples, catalog.StepExamples(catalog.SectorGeneric, s.CurrentStep)...)
	for _, ex := range examples {
		if len(proposals) >= ProposalCount {
			break
		}
		if !contains(proposals, ex) {
			proposals = append(proposals, ex)
		}
	}
	for i := len(proposals); i < ProposalCount; i++ {
		proposals = append(proposals, fmt.Sprintf("%s (piste %d)", catalog.Prompt(s.CurrentStep).Clarification, i+1))
	}
	return proposals, nil
}

// Brief assembles the business brief from onboarding data and the answered steps
func Brief(s *models.Session) models.BusinessBrief {
	b := models.BusinessBrief{
		ID:              s.BriefID,
		SessionID:       s.ID,
		UserID:          s.UserID,
		Sector:          s.Sector,
		Location:        s.Location,
		Vision:          s.Brief[models.StepVision],
		Mission:         s.Brief[models.StepMission],
		TargetMarket:    s.Brief[models.StepClientele],
		Differentiation: s.Brief[models.StepDifferentiation],
		Offer:           s.Brief[models.StepOffer],
	}
	if b.ID == "" {
		b.ID = s.ID
	}
	if o := s.Onboarding; o != nil {
		b.BusinessName = strings.TrimSpace(o.BusinessName)
		if b.Sector == "" {
			b.Sector = catalog.NormalizeSector(o.Sector)
		}
		b.Services = nonEmpty(o.Services, 0)
	}
	if b.Sector == "" {
		b.Sector = catalog.SectorGeneric
	}
	if len(b.Services) == 0 {
		b.Services = splitOffer(b.Offer)
	}
	if b.Vision != "" {
		b.Goals = []string{b.Vision}
	}
	return b
}

// splitOffer splits a free-text offer on commas, semicolons and line breaks
func splitOffer(offer string) []string {
	parts := strings.FieldsFunc(offer, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), "."))
		p = strings.TrimSpace(strings.TrimPrefix(p, "et "))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

// nonEmpty trims values and drops blanks; limit <= 0 means no limit
func nonEmpty(values []string, limit int) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
