// Package agent holds the specialist sub-agents that enrich a business
// brief and the orchestrator that runs them. Agents never return errors:
// every failure path yields a result with FallbackMode set.
package agent

import (
	"context"
	"time"
)

// Cache is the generator cache the logo and image agents share. Keys are
// content hashes, so entries are shared across users.
type Cache interface {
	CacheGet(ctx context.Context, category, hash string, v any) (bool, error)
	CachePut(ctx context.Context, category, hash string, v any) error
}

// Downloader persists a generated image locally and returns the URL it is
// served under
type Downloader interface {
	Download(ctx context.Context, sourceURL, cacheKey string) (string, error)
}

// Config holds agent and orchestrator configuration
type Config struct {
	// Timeout is the orchestration deadline
	Timeout time.Duration
	// RetryBackoff is waited once before retrying a rate-limited call
	RetryBackoff time.Duration

	ResearchConcurrency int
	ContentConcurrency  int
	ImageConcurrency    int

	MaxServiceImages int
	MaxFeatureImages int
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:             120 * time.Second,
		RetryBackoff:        2 * time.Second,
		ResearchConcurrency: 4,
		ContentConcurrency:  5,
		ImageConcurrency:    8,
		MaxServiceImages:    4,
		MaxFeatureImages:    3,
	}
}
