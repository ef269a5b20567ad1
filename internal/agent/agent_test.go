package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/vfs"
)

func testConfig() *Config {
	config := DefaultConfig()
	config.RetryBackoff = time.Millisecond
	return config
}

func testBrief() models.BusinessBrief {
	return models.BusinessBrief{
		ID:              "brief-1",
		UserID:          "user-1",
		BusinessName:    "Le Maquis Moderne",
		Sector:          "Restauration",
		Location:        models.Location{CountryCode: "CI", City: "Abidjan", District: "Cocody"},
		Vision:          "Devenir le maquis de référence à Abidjan.",
		Mission:         "Servir une cuisine ivoirienne généreuse dans un cadre moderne.",
		TargetMarket:    "Jeunes actifs et familles de Cocody",
		Differentiation: "Produits frais du marché. Service rapide. Terrasse climatisée. Musique live le vendredi.",
		Offer:           "Déjeuner, brunch et service traiteur",
		Services:        []string{"Déjeuner", "Brunch", "Catering"},
	}
}

// funcLLM answers structured calls with fn
type funcLLM struct {
	fn    func(req provider.StructuredRequest) (map[string]any, error)
	calls atomic.Int32
}

func (f *funcLLM) Name() string  { return "fake" }
func (f *funcLLM) Model() string { return "fake-1" }
func (f *funcLLM) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	return "", errors.New("not implemented")
}
func (f *funcLLM) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (map[string]any, error) {
	f.calls.Add(1)
	return f.fn(req)
}
func (f *funcLLM) HealthCheck(ctx context.Context) bool { return true }

func failingLLM(kind provider.Kind) *funcLLM {
	return &funcLLM{fn: func(provider.StructuredRequest) (map[string]any, error) {
		return nil, provider.NewError(kind, "fake", errors.New("injected"))
	}}
}

// failingSearch always fails
type failingSearch struct{ provider.MockSearch }

func (failingSearch) Search(ctx context.Context, req provider.SearchRequest) (*provider.SearchResponse, error) {
	return nil, provider.NewError(provider.KindUnavailable, "fake-search", errors.New("down"))
}

// countingImage wraps the mock image provider, failing when fail returns true
type countingImage struct {
	provider.MockImage
	fail  func(prompt string) bool
	calls atomic.Int32
}

func (c *countingImage) GenerateLogo(ctx context.Context, req provider.LogoRequest) (*provider.ImageResult, error) {
	c.calls.Add(1)
	if c.fail != nil && c.fail(req.BusinessName) {
		return nil, provider.NewError(provider.KindRateLimited, "fake-image", nil)
	}
	return c.MockImage.GenerateLogo(ctx, req)
}

func (c *countingImage) GenerateImage(ctx context.Context, req provider.ImageRequest) (*provider.ImageResult, error) {
	c.calls.Add(1)
	if c.fail != nil && c.fail(req.Prompt) {
		return nil, provider.NewError(provider.KindRateLimited, "fake-image", nil)
	}
	return c.MockImage.GenerateImage(ctx, req)
}

func rateLimitedImage() *countingImage {
	return &countingImage{fail: func(string) bool { return true }}
}

// fakeDownloader records downloads and serves them under /static/generated
type fakeDownloader struct {
	mu   sync.Mutex
	keys []string
}

func (d *fakeDownloader) Download(ctx context.Context, sourceURL, cacheKey string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, cacheKey)
	return "/static/generated/" + cacheKey + ".png", nil
}

func newTestCache(t *testing.T) *vfs.FS {
	t.Helper()
	backend, err := vfs.NewBadgerBackend("")
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return vfs.New(backend, nil)
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	got, err := withRetry(ctx, time.Millisecond, models.AgentResearch, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", provider.NewError(provider.KindRateLimited, "p", nil)
		}
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 2 {
		t.Errorf("rate limited call: got %q, %v after %d calls", got, err, calls)
	}

	calls = 0
	_, err = withRetry(ctx, time.Millisecond, models.AgentResearch, func(context.Context) (string, error) {
		calls++
		return "", provider.NewError(provider.KindContentPolicy, "p", nil)
	})
	if err == nil || calls != 1 {
		t.Errorf("content policy must not be retried: %d calls", calls)
	}
}

func TestResearchAgent(t *testing.T) {
	ctx := context.Background()
	b := testBrief()

	t.Run("happy path", func(t *testing.T) {
		res := NewResearchAgent(provider.MockLLM{}, provider.MockSearch{}, testConfig()).Run(ctx, b)
		if !res.Succeeded() {
			t.Fatalf("expected success, got error %q", res.Error)
		}
		if len(res.Payload.Sources) == 0 {
			t.Error("expected sources from search results")
		}
	})

	t.Run("all searches fail", func(t *testing.T) {
		llm := &funcLLM{fn: func(provider.StructuredRequest) (map[string]any, error) { return map[string]any{}, nil }}
		res := NewResearchAgent(llm, failingSearch{}, testConfig()).Run(ctx, b)
		if !res.FallbackMode || res.Error == "" {
			t.Fatalf("expected fallback, got %+v", res)
		}
		if llm.calls.Load() != 0 {
			t.Error("LLM must not be called without snippets")
		}
		if !strings.Contains(res.Payload.MarketSize, "Restauration") {
			t.Errorf("sector fallback should mention the sector: %q", res.Payload.MarketSize)
		}
	})

	t.Run("llm fails", func(t *testing.T) {
		res := NewResearchAgent(failingLLM(provider.KindUnavailable), provider.MockSearch{}, testConfig()).Run(ctx, b)
		if !res.FallbackMode {
			t.Fatal("expected fallback")
		}
		if len(res.Payload.Sources) == 0 || res.Payload.MarketSize == "" {
			t.Errorf("expected analysis assembled from snippets, got %+v", res.Payload)
		}
	})
}

func TestContentAgent(t *testing.T) {
	ctx := context.Background()
	b := testBrief()

	t.Run("mock provider", func(t *testing.T) {
		res := NewContentAgent(provider.MockLLM{}, testConfig()).Run(ctx, b, nil)
		if !res.Succeeded() {
			t.Fatalf("expected success: %s", res.Error)
		}
		if res.Payload.BrandColors != nil {
			t.Errorf("non-hex colors must be dropped: %+v", res.Payload.BrandColors)
		}
		if res.Payload.Languages[0] != "fr" {
			t.Errorf("French must come first: %v", res.Payload.Languages)
		}
		if res.Payload.Contact.Title != "Contactez-nous" || res.Payload.Contact.Email != "" {
			t.Errorf("unexpected contact %+v", res.Payload.Contact)
		}
		if res.Payload.Contact.Address != "Cocody, Abidjan, Côte d'Ivoire" {
			t.Errorf("unexpected address %q", res.Payload.Contact.Address)
		}
	})

	t.Run("hex colors kept", func(t *testing.T) {
		llm := &funcLLM{fn: func(req provider.StructuredRequest) (map[string]any, error) {
			return map[string]any{
				"hero_title":        "Bienvenue",
				"value_proposition": "La cuisine d'ici",
				"brand_colors":      map[string]any{"primary": "#112233", "secondary": "#445566", "accent": "#778899"},
			}, nil
		}}
		res := NewContentAgent(llm, testConfig()).Run(ctx, b, nil)
		if res.Payload.BrandColors == nil || res.Payload.BrandColors.Primary != "#112233" {
			t.Errorf("expected brand colors, got %+v", res.Payload.BrandColors)
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		llm := &funcLLM{fn: func(req provider.StructuredRequest) (map[string]any, error) {
			if strings.Contains(req.Prompt, "À propos") {
				return nil, provider.NewError(provider.KindInvalidStructuredOutput, "fake", nil)
			}
			return provider.MockLLM{}.GenerateStructured(context.Background(), req)
		}}
		res := NewContentAgent(llm, testConfig()).Run(ctx, b, nil)
		if res.FallbackMode {
			t.Error("a single failed job must not mark the slot as fallback")
		}
		if len(res.Payload.FallbackJobs) != 1 || res.Payload.FallbackJobs[0] != jobAbout {
			t.Errorf("unexpected fallback jobs %v", res.Payload.FallbackJobs)
		}
		if res.Payload.About.Title != "À propos de Le Maquis Moderne" {
			t.Errorf("unexpected fallback about %+v", res.Payload.About)
		}
	})

	t.Run("all jobs fail", func(t *testing.T) {
		res := NewContentAgent(failingLLM(provider.KindUnavailable), testConfig()).Run(ctx, b, nil)
		if !res.FallbackMode || res.Error == "" {
			t.Fatal("expected fallback")
		}
		if res.Payload.Homepage.HeroTitle != b.BusinessName {
			t.Errorf("unexpected hero title %q", res.Payload.Homepage.HeroTitle)
		}
		if len(res.Payload.Services) != 3 || res.Payload.Services[2].Title != "Catering" {
			t.Errorf("unexpected services %+v", res.Payload.Services)
		}
		if len(res.Payload.Homepage.Features) != 3 {
			t.Errorf("expected features from differentiation, got %d", len(res.Payload.Homepage.Features))
		}
	})
}

func TestLogoAgentCache(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	image := &countingImage{}
	agent := NewLogoAgent(image, cache, nil, testConfig())

	req := LogoRequest{BusinessName: "Le Maquis Moderne", Industry: "restaurant", Style: "minimal"}
	first := agent.Run(ctx, req)
	if !first.Succeeded() || first.Payload.Cached {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.Payload.Style != "elegant" {
		t.Errorf("industry style must win, got %s", first.Payload.Style)
	}

	second := agent.Run(ctx, req)
	if !second.Payload.Cached || second.Payload.ImageURL != first.Payload.ImageURL {
		t.Errorf("expected cache hit, got %+v", second.Payload)
	}
	if image.calls.Load() != 1 {
		t.Errorf("provider called %d times", image.calls.Load())
	}

	if LogoCacheKey("a", "b", "c") != md5Hex("a", "b", "c") {
		t.Error("cache key must hash name|industry|style")
	}
}

func TestLogoAgentFallback(t *testing.T) {
	image := rateLimitedImage()
	res := NewLogoAgent(image, nil, nil, testConfig()).Run(context.Background(), LogoRequest{BusinessName: "X", Industry: "tech"})
	if !res.FallbackMode || res.Payload.ImageURL != catalog.PlaceholderLogoURL {
		t.Errorf("expected placeholder fallback, got %+v", res)
	}
	if image.calls.Load() != 2 {
		t.Errorf("rate-limited call must be retried once, got %d calls", image.calls.Load())
	}
}

func TestImagesAgent(t *testing.T) {
	ctx := context.Background()
	req := ImagesRequest{
		BusinessName: "Le Maquis Moderne",
		Sector:       "restaurant",
		Services:     []string{"a", "b", "c", "d", "e", "f"},
		Features:     []string{"x", "y", "z", "w"},
	}

	t.Run("downloads every image", func(t *testing.T) {
		dl := &fakeDownloader{}
		res := NewImagesAgent(&countingImage{}, newTestCache(t), dl, testConfig()).Run(ctx, req)
		if !res.Succeeded() {
			t.Fatalf("expected success: %s", res.Error)
		}
		if res.Payload.Hero == nil || !strings.HasPrefix(res.Payload.Hero.URL, "/static/generated/") {
			t.Fatalf("hero must be local, got %+v", res.Payload.Hero)
		}
		if res.Payload.Hero.Size != SizeHero {
			t.Errorf("hero size %s", res.Payload.Hero.Size)
		}
		if len(res.Payload.Services) != 4 || len(res.Payload.Features) != 3 {
			t.Errorf("got %d services, %d features", len(res.Payload.Services), len(res.Payload.Features))
		}
		for i, img := range res.Payload.Services {
			if img.Index != i || img.Size != SizeContent {
				t.Errorf("service %d: %+v", i, img)
			}
		}
		if len(dl.keys) != 8 {
			t.Errorf("expected 8 downloads, got %d", len(dl.keys))
		}
	})

	t.Run("per image failure uses stock", func(t *testing.T) {
		image := &countingImage{fail: func(p string) bool { return strings.Contains(p, "service") }}
		res := NewImagesAgent(image, nil, nil, testConfig()).Run(ctx, req)
		if res.FallbackMode {
			t.Error("slot must not be fallback when some images were generated")
		}
		for _, img := range res.Payload.Services {
			if !img.Stock {
				t.Errorf("failed service image must be stock: %+v", img)
			}
		}
		if res.Payload.Hero.Stock {
			t.Error("hero was generated")
		}
	})

	t.Run("all fail", func(t *testing.T) {
		res := NewImagesAgent(rateLimitedImage(), nil, nil, testConfig()).Run(ctx, req)
		if !res.FallbackMode || res.Error == "" {
			t.Fatal("expected fallback")
		}
		if !res.Payload.Hero.Stock || res.Payload.Hero.URL != catalog.StockImage("restaurant", ImageHero, 0) {
			t.Errorf("unexpected hero %+v", res.Payload.Hero)
		}
	})
}

func checkSEOBounds(t *testing.T, data models.SEOData) {
	t.Helper()
	if n := len(data.PrimaryKeywords); n < MinPrimaryKeywords || n > MaxPrimaryKeywords {
		t.Errorf("primary keywords: %d", n)
	}
	if n := len(data.SecondaryKeywords); n < MinSecondaryKeywords || n > MaxSecondaryKeywords {
		t.Errorf("secondary keywords: %d", n)
	}
	if n := runeLen(data.MetaTitle); n < MinMetaTitle || n > MaxMetaTitle {
		t.Errorf("meta title %q has %d runes", data.MetaTitle, n)
	}
	if n := runeLen(data.MetaDescription); n < MinMetaDescription || n > MaxMetaDescription {
		t.Errorf("meta description %q has %d runes", data.MetaDescription, n)
	}
	if n := len(data.HeadingStructure.H2Sections); n < MinH2Sections || n > MaxH2Sections {
		t.Errorf("h2 sections: %d", n)
	}
	if data.HeadingStructure.H1 == "" || data.LocalSEO == "" {
		t.Error("missing h1 or local seo")
	}
}

func TestSEOAgent(t *testing.T) {
	req := SEORequestFor(testBrief())

	res := NewSEOAgent(provider.MockLLM{}, provider.MockSearch{}, testConfig()).Run(context.Background(), req)
	if !res.Succeeded() {
		t.Fatalf("expected success: %s", res.Error)
	}
	checkSEOBounds(t, res.Payload)

	fb := NewSEOAgent(failingLLM(provider.KindTimeout), failingSearch{}, testConfig()).Run(context.Background(), req)
	if !fb.FallbackMode {
		t.Fatal("expected fallback")
	}
	checkSEOBounds(t, fb.Payload)
}

func TestNormalizeSEOTrimsOversizedOutput(t *testing.T) {
	data := models.SEOData{
		PrimaryKeywords:   []string{"a", "b", "c", "d", "e", "f", "g"},
		SecondaryKeywords: []string{"a", "h", "i", "j", "k", "l", "m", "n", "o", "p"},
		MetaTitle:         strings.Repeat("Maquis moderne ", 10),
		MetaDescription:   strings.Repeat("Cuisine ivoirienne généreuse ", 12),
		HeadingStructure:  models.HeadingStructure{H1: "Titre", H2Sections: []string{"1", "2", "3", "4", "5", "6"}},
	}
	got := NormalizeSEO(data, SEORequestFor(testBrief()))
	checkSEOBounds(t, got)
	for _, k := range got.SecondaryKeywords {
		if k == "a" {
			t.Error("secondary keywords must not repeat primary ones")
		}
	}
}

func TestFitLength(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		min, max int
	}{
		{"empty", "", 50, 60},
		{"short", "Le Maquis", 50, 60},
		{"long", strings.Repeat("mot ", 40), 50, 60},
		{"unbroken", strings.Repeat("x", 200), 150, 160},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fitLength(tt.in, tt.min, tt.max, " | ", []string{"restaurant", "Abidjan"})
			if n := runeLen(got); n < tt.min || n > tt.max {
				t.Errorf("got %d runes: %q", n, got)
			}
		})
	}
}

func TestTemplateAgent(t *testing.T) {
	tests := []struct {
		name, sector, preselected string
		slug, source              string
	}{
		{"preselected verbatim", "restaurant", "luxe", "luxe", ThemeSourcePreselected},
		{"unknown preselected kept", "restaurant", "custom-theme", "custom-theme", ThemeSourcePreselected},
		{"sector match", "Restauration", "", "savor", ThemeSourceSector},
		{"default", "", "", catalog.DefaultThemeSlug, ThemeSourceDefault},
		{"unknown sector", "plomberie", "", catalog.DefaultThemeSlug, ThemeSourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TemplateAgent{}.Run(tt.sector, tt.preselected)
			if res.Payload.Slug != tt.slug || res.Payload.Source != tt.source {
				t.Errorf("got %+v", res.Payload)
			}
			if !res.Succeeded() {
				t.Error("template agent never fails")
			}
		})
	}
}
