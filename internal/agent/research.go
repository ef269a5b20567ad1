package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

const researchSystem = `Tu es un analyste de marché spécialisé dans les petites entreprises en Afrique francophone.
À partir des extraits de recherche fournis, produis une analyse concise, factuelle et exploitable.
N'invente pas de chiffres précis absents des extraits ; privilégie des fourchettes et des tendances.`

var researchSchema = provider.Object(map[string]*provider.Schema{
	"market_size": provider.Str("taille et dynamique du marché local"),
	"competitors": provider.ArrayOf(provider.Object(map[string]*provider.Schema{
		"name":        provider.Str(""),
		"description": provider.Str(""),
		"url":         provider.Str(""),
	}, "description", "url")),
	"opportunities":    provider.Strings("opportunités concrètes"),
	"pricing":          provider.Str("niveaux de prix pratiqués"),
	"differentiators":  provider.Strings("axes de différenciation possibles"),
	"cultural_factors": provider.Str("facteurs culturels à prendre en compte"),
	"risks":            provider.Strings(""),
	"success_keys":     provider.Strings("facteurs clés de succès"),
})

// searchTopic is one of the four research queries
type searchTopic struct {
	name  string
	query string
}

// ResearchAgent runs market research for a brief
type ResearchAgent struct {
	llm     provider.LLM
	search  provider.Search
	depth   provider.SearchDepth
	backoff time.Duration
	limit   int
}

// NewResearchAgent creates a research agent
func NewResearchAgent(llm provider.LLM, search provider.Search, config *Config) *ResearchAgent {
	if config == nil {
		config = DefaultConfig()
	}
	return &ResearchAgent{
		llm:     llm,
		search:  search,
		depth:   provider.DepthAdvanced,
		backoff: config.RetryBackoff,
		limit:   config.ResearchConcurrency,
	}
}

func researchTopics(b models.BusinessBrief) []searchTopic {
	sector := firstNonEmpty(b.Sector, "entreprise")
	city := firstNonEmpty(b.Location.City, catalog.CountryName(b.Location.CountryCode))
	country := catalog.CountryName(b.Location.CountryCode)
	return []searchTopic{
		{"competitors", fmt.Sprintf("principaux concurrents %s %s", sector, city)},
		{"trends", fmt.Sprintf("tendances du marché %s %s %d", sector, country, time.Now().Year())},
		{"pricing", fmt.Sprintf("prix moyens %s %s", sector, city)},
		{"opportunities", fmt.Sprintf("opportunités de croissance %s %s", sector, country)},
	}
}

// Run fans out the four searches, then asks the LLM for the analysis
func (a *ResearchAgent) Run(ctx context.Context, b models.BusinessBrief) models.AgentResult[models.ResearchData] {
	start := time.Now()
	result := models.AgentResult[models.ResearchData]{
		Agent:    models.AgentResearch,
		Provider: a.llm.Name(),
		Model:    a.llm.Model(),
	}
	defer func() { result.Duration = time.Since(start) }()

	topics := researchTopics(b)
	domains := catalog.RegionalDomains(b.Location.CountryCode)

	var (
		mu      sync.Mutex
		results []provider.SearchResult
		failed  []string
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			resp, err := withRetry(gctx, a.backoff, models.AgentResearch, func(ctx context.Context) (*provider.SearchResponse, error) {
				return a.search.Search(ctx, provider.SearchRequest{
					Query:          topic.query,
					Depth:          a.depth,
					MaxResults:     5,
					IncludeDomains: domains,
				})
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// a failed topic is dropped, the others still count
				failed = append(failed, topic.name)
				errs = append(errs, err)
				return nil
			}
			results = append(results, resp.Results...)
			return nil
		})
	}
	g.Wait()

	result.Metadata = map[string]any{
		"search_provider": a.search.Name(),
		"failed_searches": failed,
		"snippets":        len(results),
	}

	if len(failed) == len(topics) {
		slog.Warn("ResearchAgent.Run: all searches failed, using sector fallback", "brief_id", b.ID, "error", errors.Join(errs...))
		result.Payload = ResearchFallback(b)
		result.FallbackMode = true
		result.Error = fmt.Sprintf("all searches failed: %v", errors.Join(errs...))
		return result
	}

	obj, err := withRetry(ctx, a.backoff, models.AgentResearch, func(ctx context.Context) (map[string]any, error) {
		return a.llm.GenerateStructured(ctx, provider.StructuredRequest{
			System:      researchSystem,
			Prompt:      researchPrompt(b, results),
			Schema:      researchSchema,
			Temperature: 0.3,
			MaxTokens:   1500,
		})
	})
	if err == nil {
		var data models.ResearchData
		if data, err = provider.Decode[models.ResearchData](obj); err == nil {
			data.Sources = sources(results)
			result.Payload = data
			return result
		}
	}

	slog.Warn("ResearchAgent.Run: analysis failed, assembling from snippets", "brief_id", b.ID, "error", err)
	result.Payload = researchFromSnippets(b, results)
	result.FallbackMode = true
	result.Error = errString(err)
	return result
}

func researchPrompt(b models.BusinessBrief, results []provider.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entreprise : %s\nSecteur : %s\nLocalisation : %s\n", b.BusinessName, b.Sector, catalog.FormatLocation(b.Location))
	if b.TargetMarket != "" {
		fmt.Fprintf(&sb, "Clientèle cible : %s\n", b.TargetMarket)
	}
	if b.Vision != "" {
		fmt.Fprintf(&sb, "Vision : %s\n", b.Vision)
	}
	if b.Mission != "" {
		fmt.Fprintf(&sb, "Mission : %s\n", b.Mission)
	}
	sb.WriteString("\nExtraits de recherche :\n")
	for i, r := range results {
		if i == 20 {
			break
		}
		fmt.Fprintf(&sb, "- %s (%s) : %s\n", r.Title, r.URL, truncate(r.Content, 400))
	}
	return sb.String()
}

func sources(results []provider.SearchResult) []string {
	var urls []string
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	urls = dedupe(urls)
	if len(urls) > 10 {
		urls = urls[:10]
	}
	return urls
}

// researchFromSnippets assembles the analysis without the LLM
func researchFromSnippets(b models.BusinessBrief, results []provider.SearchResult) models.ResearchData {
	m := provider.MarketFromSnippets(businessContext(b), results)
	fb := ResearchFallback(b)
	return models.ResearchData{
		MarketSize:      m.MarketSize,
		Competitors:     m.Competitors,
		Opportunities:   append(m.Opportunities, m.Trends...),
		Pricing:         m.Pricing,
		Differentiators: fb.Differentiators,
		CulturalFactors: fb.CulturalFactors,
		Risks:           m.Risks,
		SuccessKeys:     fb.SuccessKeys,
		Sources:         sources(results),
	}
}

// ResearchFallback is the conservative sector-only analysis
func ResearchFallback(b models.BusinessBrief) models.ResearchData {
	sector := firstNonEmpty(b.Sector, "votre secteur")
	where := firstNonEmpty(catalog.FormatLocation(b.Location), "votre zone")
	return models.ResearchData{
		MarketSize:    fmt.Sprintf("Données de marché indisponibles pour le secteur %s à %s", sector, where),
		Competitors:   []models.Competitor{},
		Opportunities: []string{fmt.Sprintf("Présence en ligne encore limitée des acteurs %s à %s", sector, where)},
		Pricing:       "À valider par une étude terrain auprès des concurrents directs",
		Differentiators: []string{
			"Qualité de service constante",
			"Relation client de proximité",
		},
		CulturalFactors: "Importance du bouche-à-oreille et de la confiance personnelle",
		Risks:           []string{"Concurrence informelle", "Sensibilité des clients au prix"},
		SuccessKeys:     []string{"Visibilité locale", "Fidélisation des premiers clients"},
	}
}
