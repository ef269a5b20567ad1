package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

// Content jobs
const (
	jobHomepage = "homepage"
	jobAbout    = "about"
	jobServices = "services"
	jobContact  = "contact"
	jobSEO      = "seo"
)

// llmJobs are the content jobs that call the LLM
var llmJobs = []string{jobHomepage, jobAbout, jobServices}

const contentSystem = `Tu es un rédacteur web spécialisé dans les sites vitrines de petites entreprises africaines.
Écris un texte chaleureux, clair et professionnel, sans superlatifs creux ni promesses invérifiables.`

var (
	homepageSchema = provider.Object(map[string]*provider.Schema{
		"hero_title":        provider.Str("titre d'accroche, 8 mots maximum"),
		"hero_subtitle":     provider.Str("sous-titre, une phrase"),
		"value_proposition": provider.Str("proposition de valeur, une phrase"),
		"trust_signals":     provider.Strings("3 éléments de réassurance"),
		"cta_text":          provider.Str("texte du bouton principal"),
		"features": provider.ArrayOf(provider.Object(map[string]*provider.Schema{
			"title":       provider.Str(""),
			"description": provider.Str(""),
		})),
		"brand_colors": provider.Object(map[string]*provider.Schema{
			"primary":   provider.Str("couleur hexadécimale #RRGGBB"),
			"secondary": provider.Str("couleur hexadécimale #RRGGBB"),
			"accent":    provider.Str("couleur hexadécimale #RRGGBB"),
		}),
	}, "features", "brand_colors")

	aboutSchema = provider.Object(map[string]*provider.Schema{
		"title":   provider.Str(""),
		"story":   provider.Str("histoire de l'entreprise, 3 à 5 phrases"),
		"mission": provider.Str(""),
		"vision":  provider.Str(""),
	})

	servicesSchema = provider.Object(map[string]*provider.Schema{
		"services": provider.ArrayOf(provider.Object(map[string]*provider.Schema{
			"title":       provider.Str(""),
			"description": provider.Str("2 phrases"),
			"price":       provider.Str("prix indicatif si pertinent"),
		}, "price")),
	})
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ContentAgent writes the site copy
type ContentAgent struct {
	llm     provider.LLM
	backoff time.Duration
	limit   int
}

// NewContentAgent creates a content agent
func NewContentAgent(llm provider.LLM, config *Config) *ContentAgent {
	if config == nil {
		config = DefaultConfig()
	}
	return &ContentAgent{llm: llm, backoff: config.RetryBackoff, limit: config.ContentConcurrency}
}

// Run generates the five content jobs in parallel
func (a *ContentAgent) Run(ctx context.Context, b models.BusinessBrief, research *models.ResearchData) models.AgentResult[models.ContentData] {
	start := time.Now()
	result := models.AgentResult[models.ContentData]{
		Agent:    models.AgentContent,
		Provider: a.llm.Name(),
		Model:    a.llm.Model(),
	}
	defer func() { result.Duration = time.Since(start) }()

	data := models.ContentData{Languages: catalog.Languages(b.Location.CountryCode)}
	brief := contentBrief(b, research, data.Languages)

	var (
		mu     sync.Mutex
		failed = map[string]error{}
	)
	fail := func(job string, err error) {
		mu.Lock()
		failed[job] = err
		mu.Unlock()
		slog.Warn("ContentAgent.Run: job failed, using fallback copy", "job", job, "brief_id", b.ID, "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	g.Go(func() error {
		home, colors, err := a.homepage(gctx, brief)
		if err != nil {
			fail(jobHomepage, err)
			home = HomepageFallback(b)
		}
		mu.Lock()
		data.Homepage, data.BrandColors = home, colors
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		about, err := a.about(gctx, brief)
		if err != nil {
			fail(jobAbout, err)
			about = AboutFallback(b)
		}
		mu.Lock()
		data.About = about
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		services, err := a.services(gctx, brief, b.Services)
		if err != nil {
			fail(jobServices, err)
			services = ServicesFallback(b)
		}
		mu.Lock()
		data.Services = services
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		contact := ContactContent(b)
		mu.Lock()
		data.Contact = contact
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		seo := SEOMetadataFor(b)
		mu.Lock()
		data.SEO = seo
		mu.Unlock()
		return nil
	})
	g.Wait()

	for _, job := range llmJobs {
		if _, ok := failed[job]; ok {
			data.FallbackJobs = append(data.FallbackJobs, job)
		}
	}
	result.Payload = data
	result.Metadata = map[string]any{"fallback_jobs": data.FallbackJobs}

	if len(data.FallbackJobs) == len(llmJobs) {
		result.FallbackMode = true
		result.Error = fmt.Sprintf("all content jobs failed: %v", failed[jobHomepage])
	}
	return result
}

func contentBrief(b models.BusinessBrief, research *models.ResearchData, languages []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entreprise : %s\nSecteur : %s\nLocalisation : %s\n", b.BusinessName, b.Sector, catalog.FormatLocation(b.Location))
	fmt.Fprintf(&sb, "Vision : %s\nMission : %s\nClientèle : %s\nDifférenciation : %s\nOffre : %s\n",
		b.Vision, b.Mission, b.TargetMarket, b.Differentiation, b.Offer)
	if len(b.Services) > 0 {
		fmt.Fprintf(&sb, "Services : %s\n", strings.Join(b.Services, ", "))
	}
	if research != nil && len(research.Differentiators) > 0 {
		fmt.Fprintf(&sb, "Différenciateurs identifiés sur le marché : %s\n", strings.Join(research.Differentiators, " ; "))
	}
	fmt.Fprintf(&sb, "Langue de rédaction : français. Langues locales du public : %s.\n", strings.Join(languages, ", "))
	return sb.String()
}

func (a *ContentAgent) structured(ctx context.Context, prompt string, schema *provider.Schema) (map[string]any, error) {
	return withRetry(ctx, a.backoff, models.AgentContent, func(ctx context.Context) (map[string]any, error) {
		return a.llm.GenerateStructured(ctx, provider.StructuredRequest{
			System:      contentSystem,
			Prompt:      prompt,
			Schema:      schema,
			Temperature: 0.7,
			MaxTokens:   1200,
		})
	})
}

func (a *ContentAgent) homepage(ctx context.Context, brief string) (models.HomepageContent, *models.Palette, error) {
	obj, err := a.structured(ctx, brief+"\nRédige le contenu de la page d'accueil.", homepageSchema)
	if err != nil {
		return models.HomepageContent{}, nil, err
	}
	home, err := provider.Decode[models.HomepageContent](obj)
	if err != nil {
		return models.HomepageContent{}, nil, err
	}
	colors, _ := provider.Decode[brandColors](obj)
	return home, validPalette(colors.BrandColors), nil
}

type brandColors struct {
	BrandColors *models.Palette `json:"brand_colors"`
}

// validPalette keeps suggested brand colors only when every color is a hex code
func validPalette(p *models.Palette) *models.Palette {
	if p == nil {
		return nil
	}
	for _, c := range []string{p.Primary, p.Secondary, p.Accent} {
		if !hexColor.MatchString(c) {
			return nil
		}
	}
	return &models.Palette{Primary: p.Primary, Secondary: p.Secondary, Accent: p.Accent}
}

func (a *ContentAgent) about(ctx context.Context, brief string) (models.AboutContent, error) {
	obj, err := a.structured(ctx, brief+"\nRédige la page « À propos ».", aboutSchema)
	if err != nil {
		return models.AboutContent{}, err
	}
	return provider.Decode[models.AboutContent](obj)
}

func (a *ContentAgent) services(ctx context.Context, brief string, names []string) ([]models.ServiceCopy, error) {
	prompt := brief + "\nDécris chaque service proposé."
	if len(names) > 0 {
		prompt += fmt.Sprintf(" Respecte exactement cette liste, dans cet ordre : %s.", strings.Join(names, ", "))
	}
	obj, err := a.structured(ctx, prompt, servicesSchema)
	if err != nil {
		return nil, err
	}
	out, err := provider.Decode[struct {
		Services []models.ServiceCopy `json:"services"`
	}](obj)
	if err != nil {
		return nil, err
	}
	return out.Services, nil
}

// HomepageFallback builds homepage copy from the brief fields
func HomepageFallback(b models.BusinessBrief) models.HomepageContent {
	name := firstNonEmpty(b.BusinessName, "Notre entreprise")
	home := models.HomepageContent{
		HeroTitle:        name,
		HeroSubtitle:     firstNonEmpty(b.Mission, b.Vision, fmt.Sprintf("%s, à votre service", name)),
		ValueProposition: firstNonEmpty(b.ValueProposition, b.Differentiation, b.Offer, b.Mission),
		TrustSignals:     []string{"Équipe locale engagée", "Service de proximité", "Satisfaction client"},
		CTAText:          catalog.CTAText(b.Sector),
	}
	for _, s := range splitSentences(b.Differentiation) {
		if len(home.Features) == 3 {
			break
		}
		home.Features = append(home.Features, models.FeatureCopy{Title: truncate(s, 60), Description: s})
	}
	return home
}

// AboutFallback builds about copy from the brief fields
func AboutFallback(b models.BusinessBrief) models.AboutContent {
	name := firstNonEmpty(b.BusinessName, "Notre entreprise")
	story := fmt.Sprintf("%s est une entreprise du secteur %s", name, firstNonEmpty(b.Sector, "des services"))
	if where := catalog.FormatLocation(b.Location); where != "" {
		story += " basée à " + where
	}
	story += "."
	if b.Vision != "" {
		story += " " + strings.TrimSpace(b.Vision)
	}
	return models.AboutContent{
		Title:   "À propos de " + name,
		Story:   story,
		Mission: b.Mission,
		Vision:  b.Vision,
	}
}

// ServicesFallback lists the brief's services with a generic description
func ServicesFallback(b models.BusinessBrief) []models.ServiceCopy {
	names := b.Services
	if len(names) == 0 && b.Offer != "" {
		names = []string{truncate(b.Offer, 80)}
	}
	out := make([]models.ServiceCopy, 0, len(names))
	for _, n := range names {
		out = append(out, models.ServiceCopy{
			Title:       n,
			Description: fmt.Sprintf("%s proposé par %s.", n, firstNonEmpty(b.BusinessName, "notre équipe")),
		})
	}
	return out
}

var sectorHours = map[string]string{
	catalog.SectorRestaurant: "Tous les jours : 11h - 23h",
	catalog.SectorRetail:     "Lundi - Samedi : 9h - 20h",
	catalog.SectorHealth:     "Lundi - Vendredi : 8h - 18h, Samedi : 8h - 12h",
	catalog.SectorBeauty:     "Mardi - Samedi : 9h - 19h",
}

// ContactContent is computed from the brief without an LLM
func ContactContent(b models.BusinessBrief) models.ContactContent {
	hours, ok := sectorHours[sectorOf(b)]
	if !ok {
		hours = "Lundi - Vendredi : 8h - 18h"
	}
	return models.ContactContent{
		Title:   "Contactez-nous",
		Address: catalog.FormatLocation(b.Location),
		Hours:   hours,
	}
}

// SEOMetadataFor computes page metadata from the brief without an LLM
func SEOMetadataFor(b models.BusinessBrief) models.SEOMetadata {
	name := firstNonEmpty(b.BusinessName, "Notre entreprise")
	title := name
	if b.Sector != "" {
		title += " | " + b.Sector
	}
	if b.Location.City != "" {
		title += " à " + b.Location.City
	}
	keywords := []string{name, b.Sector}
	if b.Location.City != "" {
		keywords = append(keywords, fmt.Sprintf("%s %s", b.Sector, b.Location.City))
	}
	keywords = append(keywords, b.Services...)
	return models.SEOMetadata{
		Title:       truncate(title, 60),
		Description: truncate(firstNonEmpty(b.Mission, b.Vision, b.Offer), 160),
		Keywords:    dedupe(keywords),
	}
}
