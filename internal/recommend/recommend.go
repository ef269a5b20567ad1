// Package recommend ranks catalog themes against a business brief.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

const (
	// RoutedScore is the minimum score of the theme built for the brief's sector
	RoutedScore = 90
	// FallbackScore is the uniform score used when the LLM is unavailable
	FallbackScore = 50
	// FallbackCount is the number of themes returned by the fallback
	FallbackCount = 3
)

// Recommendation is one scored theme
type Recommendation struct {
	Slug      string `json:"theme_slug"`
	Name      string `json:"name,omitempty"`
	Score     int    `json:"match_score"`
	Reasoning string `json:"reasoning"`
}

// Result is the ranked list; FallbackMode is set when no LLM ranking was used
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	FallbackMode    bool             `json:"fallback_mode"`
	Error           string           `json:"error,omitempty"`
}

// Recommender scores themes with one structured LLM call
type Recommender struct {
	llm provider.LLM
}

// New creates a recommender
func New(llm provider.LLM) *Recommender {
	return &Recommender{llm: llm}
}

type answer struct {
	Recommendations []struct {
		Slug      string  `json:"theme_slug"`
		Score     float64 `json:"match_score"`
		Reasoning string  `json:"reasoning"`
	} `json:"recommendations"`
}

func schemaFor(themes []catalog.Theme) *provider.Schema {
	slugs := make([]string, 0, len(themes))
	for _, t := range themes {
		slugs = append(slugs, t.Slug)
	}
	return provider.Object(map[string]*provider.Schema{
		"recommendations": provider.ArrayOf(provider.Object(map[string]*provider.Schema{
			"theme_slug":  {Type: "string", Enum: slugs},
			"match_score": provider.Int("0 à 100"),
			"reasoning":   provider.Str("justification courte"),
		})),
	})
}

// Recommend ranks the active themes for a brief. Unknown slugs are dropped,
// scores clamped to 0..100 and the list sorted by score then slug.
func (r *Recommender) Recommend(ctx context.Context, brief models.BusinessBrief, themes []catalog.Theme) *Result {
	var active []catalog.Theme
	for _, t := range themes {
		if t.Active {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return &Result{FallbackMode: true, Error: "no active themes"}
	}

	obj, err := r.llm.GenerateStructured(ctx, provider.StructuredRequest{
		System:      systemPrompt(active),
		Prompt:      briefPrompt(brief),
		Schema:      schemaFor(active),
		Temperature: 0.2,
		MaxTokens:   800,
	})
	var a answer
	if err == nil {
		a, err = provider.Decode[answer](obj)
	}
	if err != nil {
		slog.Warn("Recommender.Recommend: LLM unavailable, using uniform scores", "error", err)
		return Fallback(active, err)
	}

	bySlug := make(map[string]catalog.Theme, len(active))
	for _, t := range active {
		bySlug[t.Slug] = t
	}
	best := make(map[string]Recommendation)
	for _, raw := range a.Recommendations {
		t, ok := bySlug[strings.TrimSpace(raw.Slug)]
		if !ok {
			continue
		}
		rec := Recommendation{
			Slug:      t.Slug,
			Name:      t.Name,
			Score:     clampScore(int(math.Round(raw.Score))),
			Reasoning: strings.TrimSpace(raw.Reasoning),
		}
		if prev, seen := best[rec.Slug]; !seen || rec.Score > prev.Score {
			best[rec.Slug] = rec
		}
	}

	if routed, ok := routedTheme(brief.Sector, active); ok {
		rec := best[routed.Slug]
		if rec.Score < RoutedScore {
			rec = Recommendation{
				Slug:      routed.Slug,
				Name:      routed.Name,
				Score:     RoutedScore,
				Reasoning: firstNonEmpty(rec.Reasoning, fmt.Sprintf("Thème conçu pour le secteur %s", routed.Category)),
			}
			best[routed.Slug] = rec
		}
	}

	if len(best) == 0 {
		return Fallback(active, fmt.Errorf("no known theme in the answer"))
	}

	result := &Result{Recommendations: make([]Recommendation, 0, len(best))}
	for _, rec := range best {
		result.Recommendations = append(result.Recommendations, rec)
	}
	sortRecommendations(result.Recommendations)
	return result
}

// Fallback returns the first active themes with a uniform score
func Fallback(themes []catalog.Theme, cause error) *Result {
	result := &Result{FallbackMode: true}
	if cause != nil {
		result.Error = cause.Error()
	}
	for _, t := range themes {
		if !t.Active {
			continue
		}
		result.Recommendations = append(result.Recommendations, Recommendation{
			Slug:      t.Slug,
			Name:      t.Name,
			Score:     FallbackScore,
			Reasoning: "Recommandation par défaut",
		})
		if len(result.Recommendations) == FallbackCount {
			break
		}
	}
	return result
}

// routedTheme is the active theme whose category is the brief's sector
func routedTheme(sector string, themes []catalog.Theme) (catalog.Theme, bool) {
	sector = catalog.NormalizeSector(sector)
	if sector == catalog.SectorGeneric {
		return catalog.Theme{}, false
	}
	for _, t := range themes {
		if t.Category == sector {
			return t, true
		}
	}
	return catalog.Theme{}, false
}

func sortRecommendations(recs []Recommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Slug < recs[j].Slug
	})
}

func systemPrompt(themes []catalog.Theme) string {
	var b strings.Builder
	b.WriteString("Tu recommandes des thèmes de site web pour des entreprises africaines.\n")
	b.WriteString("Règles fixes :\n")
	for _, t := range themes {
		if t.Category != catalog.SectorGeneric {
			fmt.Fprintf(&b, "- une entreprise du secteur %s doit donner au thème %s un score d'au moins %d\n", t.Category, t.Slug, RoutedScore)
		}
	}
	b.WriteString("Thèmes disponibles :\n")
	for _, t := range themes {
		fmt.Fprintf(&b, "- %s (%s) : %s\n", t.Slug, t.Category, strings.Join(t.Tags, ", "))
	}
	return b.String()
}

func briefPrompt(b models.BusinessBrief) string {
	return fmt.Sprintf(`Entreprise : %s
Secteur : %s
Lieu : %s
Vision : %s
Clientèle : %s
Offre : %s

Attribue un score de 0 à 100 aux thèmes les plus adaptés.`,
		b.BusinessName, b.Sector, catalog.FormatLocation(b.Location), b.Vision, b.TargetMarket, b.Offer)
}

func clampScore(s int) int {
	return min(max(s, 0), 100)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
