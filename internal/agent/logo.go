package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/vfs"
)

// LogoRequest is the logo agent input
type LogoRequest struct {
	BusinessName string
	Industry     string
	Style        string
	Slogan       string
	Colors       []string
}

// LogoAgent generates a cached logo
type LogoAgent struct {
	image      provider.Image
	cache      Cache
	downloader Downloader
	backoff    time.Duration
}

// NewLogoAgent creates a logo agent. cache and downloader may be nil.
func NewLogoAgent(image provider.Image, cache Cache, downloader Downloader, config *Config) *LogoAgent {
	if config == nil {
		config = DefaultConfig()
	}
	return &LogoAgent{image: image, cache: cache, downloader: downloader, backoff: config.RetryBackoff}
}

// LogoCacheKey is md5(name|industry|style) over the effective style
func LogoCacheKey(name, industry, style string) string {
	return md5Hex(name, industry, style)
}

// Run returns the cached logo or generates a new one
func (a *LogoAgent) Run(ctx context.Context, req LogoRequest) models.AgentResult[models.LogoData] {
	start := time.Now()
	result := models.AgentResult[models.LogoData]{
		Agent:    models.AgentLogo,
		Provider: a.image.Name(),
		Model:    a.image.Model(),
	}
	defer func() { result.Duration = time.Since(start) }()

	style := catalog.LogoStyle(req.Industry, req.Style)
	key := LogoCacheKey(req.BusinessName, req.Industry, style)

	if a.cache != nil {
		var cached models.LogoData
		found, err := a.cache.CacheGet(ctx, vfs.CacheLogo, key, &cached)
		if err != nil {
			slog.Warn("LogoAgent.Run: cache read failed", "error", err)
		}
		if found {
			slog.Debug("LogoAgent.Run: cache hit", "key", key)
			cached.Cached = true
			result.Payload = cached
			result.Metadata = map[string]any{"cache_key": key}
			return result
		}
	}

	res, err := withRetry(ctx, a.backoff, models.AgentLogo, func(ctx context.Context) (*provider.ImageResult, error) {
		return a.image.GenerateLogo(ctx, provider.LogoRequest{
			BusinessName: req.BusinessName,
			Industry:     req.Industry,
			Style:        style,
			Colors:       req.Colors,
		})
	})
	if err != nil {
		slog.Warn("LogoAgent.Run: generation failed, using placeholder", "business", req.BusinessName, "error", err)
		result.Payload = LogoFallback(style)
		result.FallbackMode = true
		result.Error = err.Error()
		return result
	}

	logo := models.LogoData{ImageURL: res.ImageURL, PromptUsed: res.PromptUsed, Style: style}
	if a.downloader != nil {
		local, err := a.downloader.Download(ctx, res.ImageURL, "logo_"+key)
		if err != nil {
			slog.Warn("LogoAgent.Run: download failed, keeping provider URL", "error", err)
		} else {
			logo.ImageURL = local
		}
	}

	if a.cache != nil {
		if err := a.cache.CachePut(ctx, vfs.CacheLogo, key, logo); err != nil {
			slog.Warn("LogoAgent.Run: cache write failed", "error", err)
		}
	}
	result.Payload = logo
	result.Metadata = map[string]any{"cache_key": key}
	return result
}

// LogoFallback is the static placeholder logo
func LogoFallback(style string) models.LogoData {
	return models.LogoData{ImageURL: catalog.PlaceholderLogoURL, Style: style}
}
