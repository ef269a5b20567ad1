package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

// Request is one orchestration run
type Request struct {
	UserID           string
	BriefID          string
	Brief            models.BusinessBrief
	PreselectedTheme string
}

// node is one step of the agent graph
type node struct {
	name     models.AgentName
	run      func(ctx context.Context, r *run)
	fallback func(r *run, reason string)
}

// run carries the per-request state through the graph
type run struct {
	state *models.OrchestrationState
	set   *provider.Set
}

// Orchestrator walks the agent graph for a brief
type Orchestrator struct {
	config     *Config
	cache      Cache
	downloader Downloader
	nodes      []node
}

// NewOrchestrator creates an orchestrator. cache and downloader may be nil.
func NewOrchestrator(config *Config, cache Cache, downloader Downloader) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	o := &Orchestrator{config: config, cache: cache, downloader: downloader}
	o.nodes = []node{
		{models.AgentResearch, o.runResearch, fallbackResearch},
		{models.AgentContent, o.runContent, fallbackContent},
		{models.AgentLogo, o.runLogo, fallbackLogo},
		{models.AgentImages, o.runImages, o.fallbackImages},
		{models.AgentSEO, o.runSEO, fallbackSEO},
		{models.AgentTemplate, o.runTemplate, fallbackTemplate},
	}
	return o
}

// Run executes every node in order and never fails. Nodes that panic or
// are reached after the deadline get fallback results.
func (o *Orchestrator) Run(ctx context.Context, set *provider.Set, req Request) *models.OrchestrationState {
	start := time.Now()
	r := &run{
		set: set,
		state: &models.OrchestrationState{
			UserID:           req.UserID,
			BriefID:          req.BriefID,
			Brief:            req.Brief,
			PreselectedTheme: req.PreselectedTheme,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	for _, n := range o.nodes {
		if err := ctx.Err(); err != nil {
			slog.Warn("Orchestrator.Run: deadline reached, skipping node", "agent", n.name, "brief_id", req.BriefID)
			n.fallback(r, "deadline exceeded")
			r.state.Error = "orchestration deadline exceeded"
			continue
		}
		o.runNode(ctx, n, r)
	}

	st := r.state
	if st.Brief.ValueProposition == "" {
		st.Brief.ValueProposition = st.Content.Payload.Homepage.ValueProposition
	}
	st.SelectedTheme = st.Template.Payload.Slug
	st.Finalize()

	slog.Info("Orchestrator.Run: completed",
		"brief_id", req.BriefID,
		"plan", set.Plan,
		"confidence", st.OverallConfidence,
		"ready", st.IsReadyForSite,
		"duration", time.Since(start))
	return st
}

func (o *Orchestrator) runNode(ctx context.Context, n node, r *run) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Orchestrator.runNode: agent panicked", "agent", n.name, "panic", rec)
			n.fallback(r, fmt.Sprintf("panic: %v", rec))
		}
	}()
	slog.Debug("Orchestrator.runNode: running", "agent", n.name, "brief_id", r.state.BriefID)
	n.run(ctx, r)
}

func (o *Orchestrator) runResearch(ctx context.Context, r *run) {
	r.state.Research = NewResearchAgent(r.set.LLM, r.set.Search, o.config).Run(ctx, r.state.Brief)
}

func (o *Orchestrator) runContent(ctx context.Context, r *run) {
	var research *models.ResearchData
	if r.state.Research.Succeeded() {
		research = &r.state.Research.Payload
	}
	r.state.Content = NewContentAgent(r.set.LLM, o.config).Run(ctx, r.state.Brief, research)
}

func (o *Orchestrator) runLogo(ctx context.Context, r *run) {
	b := r.state.Brief
	r.state.Logo = NewLogoAgent(r.set.Image, o.cache, o.downloader, o.config).Run(ctx, LogoRequest{
		BusinessName: b.BusinessName,
		Industry:     b.Sector,
		Slogan:       r.state.Content.Payload.Homepage.HeroTitle,
		Colors:       logoColors(r.state),
	})
}

func logoColors(st *models.OrchestrationState) []string {
	p := st.Content.Payload.BrandColors
	if p == nil {
		palette, _ := catalog.SectorPalette(st.Brief.Sector)
		p = &palette
	}
	return []string{p.Primary, p.Secondary, p.Accent}
}

func (o *Orchestrator) runImages(ctx context.Context, r *run) {
	r.state.Images = NewImagesAgent(r.set.Image, o.cache, o.downloader, o.config).Run(ctx, imagesRequest(r.state))
}

// imagesRequest takes service and feature titles from the content slot,
// falling back to the brief
func imagesRequest(st *models.OrchestrationState) ImagesRequest {
	b := st.Brief
	req := ImagesRequest{BusinessName: b.BusinessName, Sector: b.Sector, Location: b.Location, Services: b.Services}
	if len(req.Services) == 0 {
		for _, s := range st.Content.Payload.Services {
			req.Services = append(req.Services, s.Title)
		}
	}
	for _, f := range st.Content.Payload.Homepage.Features {
		req.Features = append(req.Features, f.Title)
	}
	if len(req.Features) == 0 {
		req.Features = splitSentences(b.Differentiation)
	}
	return req
}

func (o *Orchestrator) runSEO(ctx context.Context, r *run) {
	req := SEORequestFor(r.state.Brief)
	if req.ValueProposition == "" {
		req.ValueProposition = r.state.Content.Payload.Homepage.ValueProposition
	}
	r.state.SEO = NewSEOAgent(r.set.LLM, r.set.Search, o.config).Run(ctx, req)
}

func (o *Orchestrator) runTemplate(ctx context.Context, r *run) {
	r.state.Template = TemplateAgent{}.Run(r.state.Brief.Sector, r.state.PreselectedTheme)
}

func fallbackResearch(r *run, reason string) {
	r.state.Research = models.AgentResult[models.ResearchData]{
		Agent: models.AgentResearch, Payload: ResearchFallback(r.state.Brief), FallbackMode: true, Error: reason,
	}
}

func fallbackContent(r *run, reason string) {
	b := r.state.Brief
	r.state.Content = models.AgentResult[models.ContentData]{
		Agent: models.AgentContent,
		Payload: models.ContentData{
			Languages:    catalog.Languages(b.Location.CountryCode),
			Homepage:     HomepageFallback(b),
			About:        AboutFallback(b),
			Services:     ServicesFallback(b),
			Contact:      ContactContent(b),
			SEO:          SEOMetadataFor(b),
			FallbackJobs: append([]string(nil), llmJobs...),
		},
		FallbackMode: true,
		Error:        reason,
	}
}

func fallbackLogo(r *run, reason string) {
	r.state.Logo = models.AgentResult[models.LogoData]{
		Agent:        models.AgentLogo,
		Payload:      LogoFallback(catalog.LogoStyle(r.state.Brief.Sector, "")),
		FallbackMode: true,
		Error:        reason,
	}
}

func (o *Orchestrator) fallbackImages(r *run, reason string) {
	req := imagesRequest(r.state)
	r.state.Images = models.AgentResult[models.ImagesData]{
		Agent:        models.AgentImages,
		Payload:      ImagesFallback(req.Sector, min(len(req.Services), o.config.MaxServiceImages), min(len(req.Features), o.config.MaxFeatureImages)),
		FallbackMode: true,
		Error:        reason,
	}
}

func fallbackSEO(r *run, reason string) {
	r.state.SEO = models.AgentResult[models.SEOData]{
		Agent: models.AgentSEO, Payload: SEOFallback(SEORequestFor(r.state.Brief)), FallbackMode: true, Error: reason,
	}
}

func fallbackTemplate(r *run, reason string) {
	sel := TemplateFallback()
	if r.state.PreselectedTheme != "" {
		sel = models.ThemeSelection{Slug: r.state.PreselectedTheme, Source: ThemeSourcePreselected}
	}
	r.state.Template = models.AgentResult[models.ThemeSelection]{
		Agent: models.AgentTemplate, Payload: sel, FallbackMode: true, Error: reason,
	}
}
