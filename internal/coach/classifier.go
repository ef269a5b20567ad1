package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/provider"
)

const classifierSystem = `Tu classes des entreprises africaines dans une liste fermée de secteurs.
Réponds uniquement avec l'un des secteurs proposés. En cas de doute, choisis "generic".`

var classifierSchema = &provider.Schema{
	Type: "object",
	Properties: map[string]*provider.Schema{
		"sector":     {Type: "string", Enum: catalog.Sectors},
		"confidence": provider.Num("entre 0 et 1"),
		"reasoning":  provider.Str("explication courte"),
	},
	Required: []string{"confidence", "reasoning", "sector"},
}

// SectorDecision is the classifier's answer
type SectorDecision struct {
	Sector     string  `json:"sector"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SectorClassifier detects the business sector from accumulated text
type SectorClassifier struct {
	llm provider.LLM
}

// NewSectorClassifier creates an LLM-backed sector classifier
func NewSectorClassifier(llm provider.LLM) *SectorClassifier {
	return &SectorClassifier{llm: llm}
}

// Classify returns a sector on the closed list. When the LLM fails or
// answers generic, keyword matching on the text decides.
func (c *SectorClassifier) Classify(ctx context.Context, text string) SectorDecision {
	obj, err := c.llm.GenerateStructured(ctx, provider.StructuredRequest{
		System:      classifierSystem,
		Prompt:      c.buildPrompt(text),
		Schema:      classifierSchema,
		Temperature: 0,
		MaxTokens:   200,
	})
	if err == nil {
		var decision SectorDecision
		if decision, err = provider.Decode[SectorDecision](obj); err == nil {
			decision.Sector = normalizeSector(decision.Sector)
			decision.Confidence = clamp01(decision.Confidence)
			if decision.Sector != catalog.SectorGeneric {
				return decision
			}
		}
	}
	if err != nil {
		slog.Debug("SectorClassifier.Classify: LLM failed, matching keywords", "error", err)
	}

	sector := catalog.NormalizeSector(text)
	confidence := 0.5
	if sector == catalog.SectorGeneric {
		confidence = 0.2
	}
	return SectorDecision{Sector: sector, Confidence: confidence, Reasoning: "keyword match"}
}

func (c *SectorClassifier) buildPrompt(text string) string {
	return fmt.Sprintf(`Secteurs possibles : %s

Description de l'entreprise :
%s

Quel est le secteur de cette entreprise ?`, strings.Join(catalog.Sectors, ", "), text)
}

// normalizeSector keeps answers on the closed list; anything else is generic
func normalizeSector(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if catalog.IsSector(s) {
		return s
	}
	return catalog.SectorGeneric
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
