package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

// SEO bounds
const (
	MinPrimaryKeywords   = 3
	MaxPrimaryKeywords   = 5
	MinSecondaryKeywords = 5
	MaxSecondaryKeywords = 8
	MinMetaTitle         = 50
	MaxMetaTitle         = 60
	MinMetaDescription   = 150
	MaxMetaDescription   = 160
	MinH2Sections        = 3
	MaxH2Sections        = 5
)

const seoSystem = `Tu es un expert SEO local pour les petites entreprises d'Afrique francophone.
Propose des mots-clés réalistes, recherchés localement, et des balises conformes aux longueurs demandées.`

var seoSchema = provider.Object(map[string]*provider.Schema{
	"primary_keywords":   provider.Strings("3 à 5 mots-clés principaux"),
	"secondary_keywords": provider.Strings("5 à 8 mots-clés secondaires"),
	"meta_title":         provider.Str("50 à 60 caractères"),
	"meta_description":   provider.Str("150 à 160 caractères"),
	"heading_structure": provider.Object(map[string]*provider.Schema{
		"h1":          provider.Str(""),
		"h2_sections": provider.Strings("3 à 5 titres de sections"),
	}),
	"local_seo": provider.Str("recommandations de référencement local"),
})

// SEORequest is the SEO agent input
type SEORequest struct {
	BusinessName     string
	Description      string
	Sector           string
	Location         models.Location
	ValueProposition string
	Services         []string
}

// SEORequestFor builds the SEO input from a brief
func SEORequestFor(b models.BusinessBrief) SEORequest {
	return SEORequest{
		BusinessName:     b.BusinessName,
		Description:      firstNonEmpty(b.Mission, b.Offer, b.Vision),
		Sector:           b.Sector,
		Location:         b.Location,
		ValueProposition: b.ValueProposition,
		Services:         b.Services,
	}
}

// SEOAgent produces the SEO package
type SEOAgent struct {
	llm     provider.LLM
	search  provider.Search
	backoff time.Duration
}

// NewSEOAgent creates an SEO agent
func NewSEOAgent(llm provider.LLM, search provider.Search, config *Config) *SEOAgent {
	if config == nil {
		config = DefaultConfig()
	}
	return &SEOAgent{llm: llm, search: search, backoff: config.RetryBackoff}
}

// Run runs one competitive search and one structured LLM call
func (a *SEOAgent) Run(ctx context.Context, req SEORequest) models.AgentResult[models.SEOData] {
	start := time.Now()
	result := models.AgentResult[models.SEOData]{
		Agent:    models.AgentSEO,
		Provider: a.llm.Name(),
		Model:    a.llm.Model(),
	}
	defer func() { result.Duration = time.Since(start) }()

	var snippets []provider.SearchResult
	query := strings.TrimSpace(fmt.Sprintf("%s %s meilleurs sites", firstNonEmpty(req.Sector, req.BusinessName), req.Location.City))
	resp, err := withRetry(ctx, a.backoff, models.AgentSEO, func(ctx context.Context) (*provider.SearchResponse, error) {
		return a.search.Search(ctx, provider.SearchRequest{Query: query, Depth: provider.DepthBasic, MaxResults: 5})
	})
	if err != nil {
		slog.Warn("SEOAgent.Run: competitive search failed", "error", err)
	} else {
		snippets = resp.Results
	}

	obj, err := withRetry(ctx, a.backoff, models.AgentSEO, func(ctx context.Context) (map[string]any, error) {
		return a.llm.GenerateStructured(ctx, provider.StructuredRequest{
			System:      seoSystem,
			Prompt:      seoPrompt(req, snippets),
			Schema:      seoSchema,
			Temperature: 0.4,
			MaxTokens:   1000,
		})
	})
	if err == nil {
		var data models.SEOData
		if data, err = provider.Decode[models.SEOData](obj); err == nil {
			result.Payload = NormalizeSEO(data, req)
			result.Metadata = map[string]any{"competitor_snippets": len(snippets)}
			return result
		}
	}

	slog.Warn("SEOAgent.Run: LLM failed, assembling from inputs", "business", req.BusinessName, "error", err)
	result.Payload = SEOFallback(req)
	result.FallbackMode = true
	result.Error = errString(err)
	return result
}

func seoPrompt(req SEORequest, snippets []provider.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entreprise : %s\nSecteur : %s\nLocalisation : %s\nDescription : %s\n",
		req.BusinessName, req.Sector, catalog.FormatLocation(req.Location), req.Description)
	if req.ValueProposition != "" {
		fmt.Fprintf(&sb, "Proposition de valeur : %s\n", req.ValueProposition)
	}
	if len(req.Services) > 0 {
		fmt.Fprintf(&sb, "Services : %s\n", strings.Join(req.Services, ", "))
	}
	if len(snippets) > 0 {
		sb.WriteString("\nSites concurrents :\n")
		for _, s := range snippets {
			fmt.Fprintf(&sb, "- %s : %s\n", s.Title, truncate(s.Content, 200))
		}
	}
	return sb.String()
}

// keywordPool derives candidate keywords from the inputs
func keywordPool(req SEORequest) []string {
	sector := firstNonEmpty(req.Sector, "entreprise")
	city := req.Location.City
	country := catalog.CountryName(req.Location.CountryCode)
	pool := []string{req.BusinessName, sector}
	if city != "" {
		pool = append(pool, sector+" "+city, "meilleur "+sector+" "+city, req.BusinessName+" "+city)
	}
	if country != "" {
		pool = append(pool, sector+" "+country)
	}
	for _, s := range req.Services {
		pool = append(pool, s)
		if city != "" {
			pool = append(pool, s+" "+city)
		}
	}
	pool = append(pool,
		"avis "+req.BusinessName,
		req.BusinessName+" contact",
		sector+" de qualité",
		sector+" près de chez moi",
		sector+" prix",
		sector+" en ligne",
		"site officiel "+req.BusinessName,
	)
	return dedupe(pool)
}

// NormalizeSEO forces keyword counts, meta lengths and heading counts into bounds
func NormalizeSEO(data models.SEOData, req SEORequest) models.SEOData {
	pool := keywordPool(req)
	used := map[string]bool{}

	data.PrimaryKeywords = fitKeywords(data.PrimaryKeywords, MinPrimaryKeywords, MaxPrimaryKeywords, pool, used)
	data.SecondaryKeywords = fitKeywords(data.SecondaryKeywords, MinSecondaryKeywords, MaxSecondaryKeywords, pool, used)

	name := firstNonEmpty(req.BusinessName, "Notre entreprise")
	where := firstNonEmpty(catalog.FormatLocation(req.Location), "Afrique")
	sector := firstNonEmpty(req.Sector, "services")

	data.MetaTitle = fitLength(firstNonEmpty(data.MetaTitle, name), MinMetaTitle, MaxMetaTitle, " | ",
		[]string{sector, where, "Site officiel"})
	data.MetaDescription = fitLength(firstNonEmpty(data.MetaDescription, req.Description), MinMetaDescription, MaxMetaDescription, " ",
		[]string{
			fmt.Sprintf("Découvrez %s, %s à %s.", name, sector, where),
			"Contactez-nous dès aujourd'hui pour en savoir plus.",
			"Un accueil chaleureux et un service de qualité.",
		})

	data.HeadingStructure.H1 = truncate(firstNonEmpty(data.HeadingStructure.H1, req.ValueProposition, name), 70)
	h2 := dedupe(data.HeadingStructure.H2Sections)
	for _, d := range []string{"Nos services", "Pourquoi nous choisir", "Contactez-nous", "À propos", "Témoignages"} {
		if len(h2) >= MinH2Sections {
			break
		}
		h2 = dedupe(append(h2, d))
	}
	if len(h2) > MaxH2Sections {
		h2 = h2[:MaxH2Sections]
	}
	data.HeadingStructure.H2Sections = h2

	if strings.TrimSpace(data.LocalSEO) == "" {
		data.LocalSEO = localSEOAdvice(name, where)
	}
	return data
}

// fitKeywords dedupes against used, trims to max and pads from pool up to min
func fitKeywords(keywords []string, min, max int, pool []string, used map[string]bool) []string {
	var out []string
	add := func(k string) {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || used[key] || len(out) >= max {
			return
		}
		used[key] = true
		out = append(out, strings.TrimSpace(k))
	}
	for _, k := range keywords {
		add(k)
	}
	for _, k := range pool {
		if len(out) >= min {
			break
		}
		add(k)
	}
	for i := 1; len(out) < min; i++ {
		add(fmt.Sprintf("%s %d", firstNonEmpty(pool...), i))
	}
	return out
}

// fitLength pads s with fillers joined by sep until it reaches min runes,
// then cuts it to max, preferring a word boundary.
func fitLength(s string, min, max int, sep string, fillers []string) string {
	s = strings.TrimSpace(s)
	for i := 0; runeLen(s) < min; i++ {
		f := fillers[i%len(fillers)]
		if s == "" {
			s = f
			continue
		}
		s += sep + f
	}
	if runeLen(s) <= max {
		return s
	}
	cut := string([]rune(s)[:max])
	if i := strings.LastIndex(cut, " "); i >= 0 {
		if w := strings.TrimRight(cut[:i], " |,;-"); runeLen(w) >= min {
			return w
		}
	}
	if w := strings.TrimRight(cut, " |,;-"); runeLen(w) >= min {
		return w
	}
	return cut
}

func localSEOAdvice(name, where string) string {
	return fmt.Sprintf("Créer une fiche Google Business Profile pour %s à %s, harmoniser nom, adresse et téléphone sur les annuaires locaux, et encourager les avis clients.", name, where)
}

// SEOFallback builds a minimal SEO package from the inputs
func SEOFallback(req SEORequest) models.SEOData {
	return NormalizeSEO(models.SEOData{}, req)
}
