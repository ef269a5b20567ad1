package provider

import (
	"context"
	"log/slog"
	"time"
)

// Timeouts are the per-call deadlines applied by the guards
type Timeouts struct {
	LLM       time.Duration
	Image     time.Duration
	Search    time.Duration
	Embedding time.Duration
}

// DefaultTimeouts returns the default per-call deadlines
func DefaultTimeouts() Timeouts {
	return Timeouts{
		LLM:       30 * time.Second,
		Image:     60 * time.Second,
		Search:    30 * time.Second,
		Embedding: 30 * time.Second,
	}
}

// guard applies the rate limit and deadline, then classifies the error
func guard[T any](ctx context.Context, limiter *RateLimiter, name, op string, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := limiter.Wait(ctx, name); err != nil {
		return zero, NewError(KindTimeout, name, err)
	}

	out, err := call(ctx)
	if err != nil {
		err = Classify(name, err)
		slog.Debug("provider.guard: call failed", "provider", name, "op", op, "kind", KindOf(err), "latency", time.Since(start))
		return zero, err
	}
	slog.Debug("provider.guard: call completed", "provider", name, "op", op, "latency", time.Since(start))
	return out, nil
}

type guardedLLM struct {
	inner   LLM
	limiter *RateLimiter
	timeout time.Duration
}

// GuardLLM wraps an LLM with rate limiting, a per-call timeout and error classification
func GuardLLM(inner LLM, limiter *RateLimiter, timeout time.Duration) LLM {
	return &guardedLLM{inner: inner, limiter: limiter, timeout: timeout}
}

func (g *guardedLLM) Name() string  { return g.inner.Name() }
func (g *guardedLLM) Model() string { return g.inner.Model() }

func (g *guardedLLM) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return guard(ctx, g.limiter, g.inner.Name(), "generate", g.timeout, func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, req)
	})
}

func (g *guardedLLM) GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, error) {
	// the structured retry makes up to two calls
	return guard(ctx, g.limiter, g.inner.Name(), "generate_structured", 2*g.timeout, func(ctx context.Context) (map[string]any, error) {
		return g.inner.GenerateStructured(ctx, req)
	})
}

func (g *guardedLLM) HealthCheck(ctx context.Context) bool { return g.inner.HealthCheck(ctx) }

type guardedSearch struct {
	inner   Search
	limiter *RateLimiter
	timeout time.Duration
}

// GuardSearch wraps a search provider
func GuardSearch(inner Search, limiter *RateLimiter, timeout time.Duration) Search {
	return &guardedSearch{inner: inner, limiter: limiter, timeout: timeout}
}

func (g *guardedSearch) Name() string { return g.inner.Name() }

func (g *guardedSearch) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return guard(ctx, g.limiter, g.inner.Name(), "search", g.timeout, func(ctx context.Context) (*SearchResponse, error) {
		return g.inner.Search(ctx, req)
	})
}

func (g *guardedSearch) AnalyzeMarket(ctx context.Context, bc BusinessContext) (*MarketAnalysis, error) {
	return guard(ctx, g.limiter, g.inner.Name(), "analyze_market", g.timeout, func(ctx context.Context) (*MarketAnalysis, error) {
		return g.inner.AnalyzeMarket(ctx, bc)
	})
}

func (g *guardedSearch) HealthCheck(ctx context.Context) bool { return g.inner.HealthCheck(ctx) }

type guardedImage struct {
	inner   Image
	limiter *RateLimiter
	timeout time.Duration
}

// GuardImage wraps an image provider
func GuardImage(inner Image, limiter *RateLimiter, timeout time.Duration) Image {
	return &guardedImage{inner: inner, limiter: limiter, timeout: timeout}
}

func (g *guardedImage) Name() string  { return g.inner.Name() }
func (g *guardedImage) Model() string { return g.inner.Model() }

func (g *guardedImage) GenerateLogo(ctx context.Context, req LogoRequest) (*ImageResult, error) {
	return guard(ctx, g.limiter, g.inner.Name(), "generate_logo", g.timeout, func(ctx context.Context) (*ImageResult, error) {
		return g.inner.GenerateLogo(ctx, req)
	})
}

func (g *guardedImage) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	return guard(ctx, g.limiter, g.inner.Name(), "generate_image", g.timeout, func(ctx context.Context) (*ImageResult, error) {
		return g.inner.GenerateImage(ctx, req)
	})
}

func (g *guardedImage) HealthCheck(ctx context.Context) bool { return g.inner.HealthCheck(ctx) }

type guardedEmbedder struct {
	inner   Embedder
	limiter *RateLimiter
	timeout time.Duration
}

// GuardEmbedder wraps an embedder
func GuardEmbedder(inner Embedder, limiter *RateLimiter, timeout time.Duration) Embedder {
	return &guardedEmbedder{inner: inner, limiter: limiter, timeout: timeout}
}

func (g *guardedEmbedder) Name() string    { return g.inner.Name() }
func (g *guardedEmbedder) Dimensions() int { return g.inner.Dimensions() }

func (g *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return guard(ctx, g.limiter, g.inner.Name(), "embed", g.timeout, func(ctx context.Context) ([]float32, error) {
		return g.inner.Embed(ctx, text)
	})
}
