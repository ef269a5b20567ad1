package provider

import (
	"log/slog"

	"github.com/genesis/genesis/internal/models"
)

// Spec names a provider and the model it should use
type Spec struct {
	Provider string
	Model    string
}

// PlanSpec is the provider selection for one plan
type PlanSpec struct {
	LLM       Spec
	Search    Spec
	Image     Spec
	Embedding Spec
}

// PlanProviders is the static plan -> provider map
var PlanProviders = map[string]PlanSpec{
	models.PlanTrial: {
		LLM:       Spec{"ollama", "qwen2.5:7b"},
		Search:    Spec{"tavily", "basic"},
		Image:     Spec{"mock", "mock"},
		Embedding: Spec{"openai", "text-embedding-3-small"},
	},
	models.PlanBasic: {
		LLM:       Spec{"openai", "gpt-4o-mini"},
		Search:    Spec{"tavily", "basic"},
		Image:     Spec{"openai", "dall-e-2"},
		Embedding: Spec{"openai", "text-embedding-3-small"},
	},
	models.PlanPro: {
		LLM:       Spec{"openai", "gpt-4o"},
		Search:    Spec{"tavily", "advanced"},
		Image:     Spec{"openai", "dall-e-3"},
		Embedding: Spec{"openai", "text-embedding-3-small"},
	},
	models.PlanEnterprise: {
		LLM:       Spec{"gemini", "gemini-1.5-pro"},
		Search:    Spec{"tavily", "advanced"},
		Image:     Spec{"openai", "dall-e-3"},
		Embedding: Spec{"openai", "text-embedding-3-small"},
	},
}

// Credentials are the keys and endpoints the constructors draw from
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
	OllamaURL     string
	TavilyKey     string
	SearchBaseURL string
}

// Constructors return ok=false when their credentials are absent
type (
	llmConstructor      func(c Credentials, model string) (LLM, bool)
	searchConstructor   func(c Credentials, model string) (Search, bool)
	imageConstructor    func(c Credentials, model string) (Image, bool)
	embedderConstructor func(c Credentials, model string) (Embedder, bool)
)

var llmConstructors = map[string]llmConstructor{
	"openai": func(c Credentials, model string) (LLM, bool) {
		return NewOpenAILLM(OpenAIConfig{APIKey: c.OpenAIKey, BaseURL: c.OpenAIBaseURL, Model: model}), c.OpenAIKey != ""
	},
	"gemini": func(c Credentials, model string) (LLM, bool) {
		return NewGemini(GeminiConfig{APIKey: c.GeminiKey, Model: model}), c.GeminiKey != ""
	},
	"ollama": func(c Credentials, model string) (LLM, bool) {
		cfg := DefaultOllamaConfig()
		cfg.URL = c.OllamaURL
		cfg.Model = model
		return NewOllama(cfg), c.OllamaURL != ""
	},
	"mock": func(Credentials, string) (LLM, bool) { return MockLLM{}, true },
}

var searchConstructors = map[string]searchConstructor{
	"tavily": func(c Credentials, _ string) (Search, bool) {
		return NewTavily(TavilyConfig{APIKey: c.TavilyKey, BaseURL: c.SearchBaseURL}), c.TavilyKey != ""
	},
	"mock": func(Credentials, string) (Search, bool) { return MockSearch{}, true },
}

var imageConstructors = map[string]imageConstructor{
	"openai": func(c Credentials, model string) (Image, bool) {
		return NewOpenAIImage(OpenAIConfig{APIKey: c.OpenAIKey, BaseURL: c.OpenAIBaseURL, Model: model}), c.OpenAIKey != ""
	},
	"mock": func(Credentials, string) (Image, bool) { return MockImage{}, true },
}

var embedderConstructors = map[string]embedderConstructor{
	"openai": func(c Credentials, model string) (Embedder, bool) {
		return NewOpenAIEmbedder(OpenAIConfig{APIKey: c.OpenAIKey, BaseURL: c.OpenAIBaseURL, Model: model}), c.OpenAIKey != ""
	},
}

// Factory resolves providers per plan. Unknown names and missing
// credentials resolve to the mock providers (the hashing embedder for
// embeddings).
type Factory struct {
	creds    Credentials
	limiter  *RateLimiter
	timeouts Timeouts
}

// NewFactory creates a provider factory
func NewFactory(creds Credentials, limiter *RateLimiter, timeouts Timeouts) *Factory {
	return &Factory{creds: creds, limiter: limiter, timeouts: timeouts}
}

func planSpec(plan string) PlanSpec {
	return PlanProviders[models.NormalizePlan(plan)]
}

// LLM returns the guarded LLM for a plan
func (f *Factory) LLM(plan string) LLM {
	spec := planSpec(plan).LLM
	ctor, ok := llmConstructors[spec.Provider]
	var p LLM
	if ok {
		p, ok = ctor(f.creds, spec.Model)
	}
	if !ok {
		slog.Debug("Factory.LLM: substituting mock", "plan", plan, "provider", spec.Provider)
		p = MockLLM{}
	}
	return GuardLLM(p, f.limiter, f.timeouts.LLM)
}

// Search returns the guarded search provider for a plan
func (f *Factory) Search(plan string) Search {
	spec := planSpec(plan).Search
	ctor, ok := searchConstructors[spec.Provider]
	var p Search
	if ok {
		p, ok = ctor(f.creds, spec.Model)
	}
	if !ok {
		slog.Debug("Factory.Search: substituting mock", "plan", plan, "provider", spec.Provider)
		p = MockSearch{}
	}
	return GuardSearch(p, f.limiter, f.timeouts.Search)
}

// Image returns the guarded image provider for a plan
func (f *Factory) Image(plan string) Image {
	spec := planSpec(plan).Image
	ctor, ok := imageConstructors[spec.Provider]
	var p Image
	if ok {
		p, ok = ctor(f.creds, spec.Model)
	}
	if !ok {
		slog.Debug("Factory.Image: substituting mock", "plan", plan, "provider", spec.Provider)
		p = MockImage{}
	}
	return GuardImage(p, f.limiter, f.timeouts.Image)
}

// Embedder returns the guarded embedder for a plan
func (f *Factory) Embedder(plan string) Embedder {
	spec := planSpec(plan).Embedding
	ctor, ok := embedderConstructors[spec.Provider]
	var p Embedder
	if ok {
		p, ok = ctor(f.creds, spec.Model)
	}
	if !ok {
		p = NewHashEmbedder(EmbeddingDimensions)
	}
	return GuardEmbedder(p, f.limiter, f.timeouts.Embedding)
}

// ForPlan resolves the full provider set for a plan
func (f *Factory) ForPlan(plan string) *Set {
	plan = models.NormalizePlan(plan)
	return &Set{
		Plan:     plan,
		LLM:      f.LLM(plan),
		Search:   f.Search(plan),
		Image:    f.Image(plan),
		Embedder: f.Embedder(plan),
	}
}
