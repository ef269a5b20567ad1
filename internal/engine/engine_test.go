package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/genesis/genesis/internal/agent"
	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/coach"
	"github.com/genesis/genesis/internal/memory"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/quota"
	"github.com/genesis/genesis/internal/store"
	"github.com/genesis/genesis/internal/vfs"
)

type mockProviders struct{}

func (mockProviders) ForPlan(plan string) *provider.Set {
	return &provider.Set{
		Plan:     models.NormalizePlan(plan),
		LLM:      provider.MockLLM{},
		Search:   provider.MockSearch{},
		Image:    provider.MockImage{},
		Embedder: provider.NewHashEmbedder(provider.EmbeddingDimensions),
	}
}

type localDownloader struct{}

func (localDownloader) Download(ctx context.Context, sourceURL, cacheKey string) (string, error) {
	return "/static/generated/" + cacheKey + ".png", nil
}

type testEnv struct {
	engine *Engine
	fs     *vfs.FS
	store  *store.Store
	memory *memory.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend, err := vfs.NewBadgerBackend("")
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	st, err := store.Open(store.WithDriver(store.DriverSQLite), store.WithDSN(":memory:"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fs := vfs.New(backend, nil)
	mem := memory.NewService(provider.NewHashEmbedder(provider.EmbeddingDimensions), memory.NewSQLVectorStore(st, provider.EmbeddingDimensions), nil)
	config := agent.DefaultConfig()
	config.RetryBackoff = time.Millisecond

	e := New(Deps{
		Providers:  mockProviders{},
		FS:         fs,
		Store:      st,
		Memory:     mem,
		Quota:      quota.NewManager(st, &quota.Config{UpgradeURL: "/pricing"}),
		Accounts:   st,
		Downloader: localDownloader{},
	}, config)
	return &testEnv{engine: e, fs: fs, store: st, memory: mem}
}

func (env *testEnv) subscribe(t *testing.T, userID, plan string) {
	t.Helper()
	if err := env.store.UpsertSubscription(context.Background(), userID, plan, ""); err != nil {
		t.Fatal(err)
	}
}

func maquisOnboarding() *models.Onboarding {
	return &models.Onboarding{
		BusinessName: "Le Maquis Moderne",
		Sector:       "Restauration",
		CountryCode:  "CI",
		City:         "Abidjan",
		District:     "Cocody",
		Services:     []string{"Déjeuner", "Brunch", "Catering"},
	}
}

var answers = []string{
	"Devenir le maquis de référence de la cuisine ivoirienne moderne à Abidjan.",
	"Servir des plats locaux frais, rapides et à prix juste chaque midi.",
	"Les jeunes actifs de Cocody entre 25 et 40 ans et les entreprises voisines.",
	"Des produits du marché livrés chaque matin et une terrasse climatisée.",
	"Déjeuner, brunch du dimanche, service traiteur pour événements.",
}

// coachThrough answers every step and returns the final result
func coachThrough(t *testing.T, e *Engine, userID, sessionID string) (*AdvanceResult, error) {
	t.Helper()
	ctx := context.Background()
	var (
		res *AdvanceResult
		err error
	)
	for i, answer := range answers {
		res, err = e.AdvanceStep(ctx, userID, sessionID, answer)
		if err != nil {
			return nil, err
		}
		if i < len(answers)-1 && res.Brief != nil {
			t.Fatalf("brief generated after step %d", i)
		}
	}
	return res, nil
}

func TestEngineHappyPath(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.subscribe(t, "user-1", models.PlanBasic)

	start, err := env.engine.StartSession(ctx, "user-1", maquisOnboarding(), "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, err := env.engine.Site(ctx, "user-1", start.SessionID); !errors.Is(err, ErrSiteNotReady) {
		t.Errorf("site should not exist before coaching ends, got %v", err)
	}

	res, err := coachThrough(t, env.engine, "user-1", start.SessionID)
	if err != nil {
		t.Fatalf("coaching failed: %v", err)
	}
	if !res.Complete || res.Brief == nil || res.SiteData == nil {
		t.Fatalf("expected a generated brief, got %+v", res)
	}

	brief := res.Brief
	if brief.OverallConfidence < 0.8 || !brief.IsReadyForSite {
		t.Errorf("confidence %.2f ready %v", brief.OverallConfidence, brief.IsReadyForSite)
	}
	for _, a := range brief.Agents {
		if !a.Succeeded() {
			t.Errorf("agent %s fell back: %s", a.Agent, a.Error)
		}
	}
	if brief.SelectedTheme != "savor" {
		t.Errorf("theme %s", brief.SelectedTheme)
	}

	def := res.SiteData
	palette, _ := catalog.SectorPalette(catalog.SectorRestaurant)
	if def.Theme.Colors.Primary != palette.Primary {
		t.Errorf("primary %s, want %s", def.Theme.Colors.Primary, palette.Primary)
	}
	if got, want := def.FirstPage().SectionTypes(), catalog.SectionOrder(catalog.SectorRestaurant); !reflect.DeepEqual(got, want) {
		t.Errorf("sections %v, want %v", got, want)
	}
	if def.Metadata.OGImage == "" || !strings.HasPrefix(def.Metadata.OGImage, "/static/generated/") {
		t.Errorf("hero image should be local, got %q", def.Metadata.OGImage)
	}

	stored, err := env.engine.Site(ctx, "user-1", start.SessionID)
	if err != nil {
		t.Fatalf("Site failed: %v", err)
	}
	if types := stored.FirstPage().SectionTypes(); types[0] != catalog.SectionHero || types[len(types)-1] != catalog.SectionFooter {
		t.Errorf("stored sections %v", types)
	}
	if _, err := env.engine.Site(ctx, "user-2", start.SessionID); !errors.Is(err, coach.ErrSessionNotFound) {
		t.Errorf("foreign site: %v", err)
	}

	s, _ := env.fs.ResolveSession(ctx, start.SessionID, "user-1")
	if s.Status != models.StatusBriefReady || s.SelectedTheme != "savor" {
		t.Errorf("session %s theme %s", s.Status, s.SelectedTheme)
	}
	if s.Onboarding == nil || s.Onboarding.BusinessName != "Le Maquis Moderne" {
		t.Errorf("onboarding lost: %+v", s.Onboarding)
	}

	archived, err := env.store.ArchivedSession(ctx, "user-1", start.SessionID)
	if err != nil || archived.Status != models.StatusBriefReady {
		t.Errorf("session not archived: %v", err)
	}
	rec, err := env.store.GetBrief(ctx, "user-1", start.SessionID)
	if err != nil || !rec.Ready || len(rec.Site) == 0 {
		t.Errorf("brief not stored: %v", err)
	}
	runs, err := env.store.AgentRuns(ctx, start.SessionID)
	if err != nil || len(runs) != 6 {
		t.Errorf("expected 6 agent runs, got %d (%v)", len(runs), err)
	}
	if n, _ := env.store.UsageSince(ctx, "user-1", store.PeriodStart(time.Now())); n != 1 {
		t.Errorf("usage %d, want 1", n)
	}
	hits, err := env.memory.SearchSimilar(ctx, "maquis cuisine ivoirienne", memory.Query{UserID: "user-1", Limit: 5, Threshold: -1})
	if err != nil || len(hits) != 1 || hits[0].BriefID != start.SessionID {
		t.Errorf("brief embedding not stored: %v %d", err, len(hits))
	}

	sessions, err := env.engine.ListSessions(ctx, "user-1")
	if err != nil || len(sessions) != 1 {
		t.Errorf("sessions %d %v", len(sessions), err)
	}
	if _, err := env.engine.AdvanceStep(ctx, "user-1", start.SessionID, answers[0]); !errors.Is(err, coach.ErrValidation) {
		t.Errorf("a finished session must reject answers, got %v", err)
	}
}

func TestEngineQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.subscribe(t, "user-1", models.PlanBasic)
	for i := 0; i < 10; i++ {
		if err := env.store.IncrementUsage(ctx, "user-1", fmt.Sprintf("old-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	_, err := env.engine.StartSession(ctx, "user-1", maquisOnboarding(), "")
	var exceeded *quota.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected a quota error, got %v", err)
	}
	if exceeded.CurrentUsage != 10 || exceeded.MaxAllowed != 10 || exceeded.Plan != "basic" || exceeded.UpgradeURL == "" {
		t.Errorf("unexpected payload %+v", exceeded)
	}

	_, err = env.engine.GenerateBrief(ctx, GenerateBriefRequest{
		UserID:       "user-1",
		BusinessInfo: BusinessInfo{CompanyName: "Le Maquis Moderne", Industry: "restaurant"},
	})
	if !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Errorf("GenerateBrief should be refused, got %v", err)
	}
	if runs, _ := env.store.AgentRuns(ctx, "old-0"); len(runs) != 0 {
		t.Error("no orchestration should have run")
	}
}

func TestEngineFinishAfterUpgrade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	start, err := env.engine.StartSession(ctx, "user-1", maquisOnboarding(), "")
	if err != nil {
		t.Fatal(err)
	}
	// the trial brief is used up elsewhere while the user is coaching
	if _, err := env.engine.GenerateBrief(ctx, GenerateBriefRequest{
		UserID:       "user-1",
		BusinessInfo: BusinessInfo{CompanyName: "Autre Projet", Industry: "tech"},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := coachThrough(t, env.engine, "user-1", start.SessionID); !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Fatalf("expected quota refusal at completion, got %v", err)
	}
	s, _ := env.fs.ResolveSession(ctx, start.SessionID, "user-1")
	if s.Status != models.StatusCoachingComplete {
		t.Errorf("status %s", s.Status)
	}

	env.subscribe(t, "user-1", models.PlanPro)
	brief, err := env.engine.FinishSession(ctx, "user-1", start.SessionID)
	if err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	if !brief.IsReadyForSite || brief.Quota == nil || brief.Quota.Plan != models.PlanPro {
		t.Errorf("unexpected brief %+v", brief)
	}
	if _, err := env.engine.FinishSession(ctx, "user-1", start.SessionID); !errors.Is(err, coach.ErrValidation) {
		t.Errorf("a finished session cannot be generated twice, got %v", err)
	}
}

func TestEngineThemeSelection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.subscribe(t, "user-1", models.PlanPro)

	if _, err := env.engine.SelectTheme(ctx, "user-1", "missing", "nope"); !errors.Is(err, coach.ErrValidation) {
		t.Errorf("unknown theme: %v", err)
	}

	start, err := env.engine.StartSession(ctx, "user-1", maquisOnboarding(), "")
	if err != nil {
		t.Fatal(err)
	}
	def, err := env.engine.SelectTheme(ctx, "user-1", start.SessionID, "luxe")
	if err != nil || def != nil {
		t.Fatalf("preselection should store the slug only: %v %v", def, err)
	}

	res, err := coachThrough(t, env.engine, "user-1", start.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	luxe, _ := catalog.ThemeBySlug("luxe")
	want := []string{"hero", "about", "services", "features", "contact", "footer"}
	if got := res.SiteData.FirstPage().SectionTypes(); !reflect.DeepEqual(got, want) {
		t.Errorf("sections %v, want %v", got, want)
	}
	if res.SiteData.Theme.Colors != luxe.Features.Colors || res.SiteData.Theme.Fonts != luxe.Features.Fonts {
		t.Errorf("luxe not applied: %+v", res.SiteData.Theme)
	}

	def, err = env.engine.SelectTheme(ctx, "user-1", start.SessionID, "savor")
	if err != nil || def == nil {
		t.Fatalf("re-render failed: %v", err)
	}
	if got := def.FirstPage().SectionTypes(); !reflect.DeepEqual(got, catalog.SectionOrder(catalog.SectorRestaurant)) {
		t.Errorf("sections after switching %v", got)
	}
	stored, err := env.engine.Site(ctx, "user-1", start.SessionID)
	if err != nil || stored.Theme.Slug != "savor" {
		t.Errorf("stored site not updated: %v", err)
	}
	rec, _ := env.store.GetBrief(ctx, "user-1", start.SessionID)
	if rec == nil || rec.SelectedTheme != "savor" {
		t.Errorf("brief theme not updated: %+v", rec)
	}
}

func TestEngineGenerateBrief(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.subscribe(t, "svc-user", models.PlanEnterprise)

	if _, err := env.engine.GenerateBrief(ctx, GenerateBriefRequest{UserID: "svc-user"}); !errors.Is(err, coach.ErrValidation) {
		t.Errorf("missing company name: %v", err)
	}

	res, err := env.engine.GenerateBrief(ctx, GenerateBriefRequest{
		UserID:       "svc-user",
		BusinessInfo: BusinessInfo{CompanyName: "Salon Awa", Industry: "Coiffure", Description: "Salon de coiffure pour femmes à Dakar."},
		MarketInfo:   MarketInfo{TargetAudience: "Femmes actives", Competitors: []string{"Salon Diva"}, Goals: []string{"Ouvrir un second salon"}},
		Location:     models.Location{CountryCode: "SN", City: "Dakar"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Brief.Sector != catalog.SectorBeauty || res.BriefID == "" || len(res.Agents) != 6 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Site == nil || res.Quota == nil || res.Quota.MaxAllowed != quota.Unlimited {
		t.Errorf("expected site and quota status, got %+v", res)
	}
}

func TestEngineRecommendThemes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	start, err := env.engine.StartSession(ctx, "user-1", maquisOnboarding(), "")
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.engine.RecommendThemes(ctx, "user-1", start.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Recommendations) == 0 || res.Recommendations[0].Slug != "savor" {
		t.Errorf("restaurant should be routed to savor: %+v", res.Recommendations)
	}
	if _, err := env.engine.RecommendThemes(ctx, "user-2", start.SessionID); !errors.Is(err, coach.ErrSessionNotFound) {
		t.Errorf("foreign session: %v", err)
	}
}

func TestEngineHealth(t *testing.T) {
	env := newTestEnv(t)
	for name, ok := range env.engine.Health(context.Background()) {
		if !ok {
			t.Errorf("%s unhealthy", name)
		}
	}
}

var errDown = errors.New("down")

type downLLM struct{ provider.MockLLM }

func (downLLM) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	return "", provider.NewError(provider.KindUnavailable, "down", errDown)
}

func (downLLM) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (map[string]any, error) {
	return nil, provider.NewError(provider.KindUnavailable, "down", errDown)
}

type downSearch struct{ provider.MockSearch }

func (downSearch) Search(ctx context.Context, req provider.SearchRequest) (*provider.SearchResponse, error) {
	return nil, provider.NewError(provider.KindUnavailable, "down", errDown)
}

func (downSearch) AnalyzeMarket(ctx context.Context, bc provider.BusinessContext) (*provider.MarketAnalysis, error) {
	return nil, provider.NewError(provider.KindUnavailable, "down", errDown)
}

type downImage struct{ provider.MockImage }

func (downImage) GenerateLogo(ctx context.Context, req provider.LogoRequest) (*provider.ImageResult, error) {
	return nil, provider.NewError(provider.KindUnavailable, "down", errDown)
}

func (downImage) GenerateImage(ctx context.Context, req provider.ImageRequest) (*provider.ImageResult, error) {
	return nil, provider.NewError(provider.KindUnavailable, "down", errDown)
}

type downProviders struct{}

func (downProviders) ForPlan(plan string) *provider.Set {
	return &provider.Set{
		Plan:     models.NormalizePlan(plan),
		LLM:      downLLM{},
		Search:   downSearch{},
		Image:    downImage{},
		Embedder: provider.NewHashEmbedder(provider.EmbeddingDimensions),
	}
}

func TestEngineFailedBriefIsNotCounted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.engine.deps.Providers = downProviders{}
	env.subscribe(t, "svc-user", models.PlanBasic)

	res, err := env.engine.GenerateBrief(ctx, GenerateBriefRequest{
		UserID:       "svc-user",
		BusinessInfo: BusinessInfo{CompanyName: "Salon Awa", Industry: "Coiffure", Description: "Salon de coiffure pour femmes à Dakar."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsReadyForSite || res.Site != nil {
		t.Fatalf("every provider failed, brief should not be ready (confidence %.2f)", res.OverallConfidence)
	}
	if n, _ := env.store.UsageSince(ctx, "svc-user", store.PeriodStart(time.Now())); n != 0 {
		t.Errorf("failed brief counted, usage %d", n)
	}
	rec, err := env.store.GetBrief(ctx, "svc-user", res.BriefID)
	if err != nil || rec.Ready {
		t.Errorf("failed brief should still be stored as not ready: %v", err)
	}
}

// brandedLLM answers like the mock but with valid brand colors
type brandedLLM struct{ provider.MockLLM }

var brandPalette = models.Palette{Primary: "#123456", Secondary: "#abcdef", Accent: "#fedcba"}

func (l brandedLLM) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (map[string]any, error) {
	obj, err := l.MockLLM.GenerateStructured(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, ok := obj["brand_colors"]; ok {
		obj["brand_colors"] = map[string]any{"primary": brandPalette.Primary, "secondary": brandPalette.Secondary, "accent": brandPalette.Accent}
	}
	return obj, nil
}

type brandedProviders struct{ mockProviders }

func (p brandedProviders) ForPlan(plan string) *provider.Set {
	set := p.mockProviders.ForPlan(plan)
	set.LLM = brandedLLM{}
	return set
}

func TestEngineBrandColors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.engine.deps.Providers = brandedProviders{}
	env.subscribe(t, "svc-user", models.PlanEnterprise)
	req := GenerateBriefRequest{
		UserID:       "svc-user",
		BusinessInfo: BusinessInfo{CompanyName: "Le Maquis Moderne", Industry: "Restauration", Description: "Cuisine ivoirienne moderne à Abidjan."},
	}

	res, err := env.engine.GenerateBrief(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if res.SelectedTheme != "savor" || res.Site == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if c := res.Site.Theme.Colors; c.Primary != brandPalette.Primary || c.Accent != brandPalette.Accent {
		t.Errorf("auto-matched theme should leave the brand colors, got %+v", c)
	}

	req.SelectedTheme = "luxe"
	res, err = env.engine.GenerateBrief(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	luxe, _ := catalog.ThemeBySlug("luxe")
	if res.Site == nil || res.Site.Theme.Colors != luxe.Features.Colors {
		t.Errorf("preselected theme colors should win, got %+v", res.Site)
	}
}
