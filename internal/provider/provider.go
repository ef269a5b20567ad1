// Package provider is the uniform interface over the external LLM, web
// search, image generation and embedding services.
package provider

import (
	"context"

	"github.com/genesis/genesis/internal/models"
)

// GenerateRequest is a free-text generation call
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// StructuredRequest asks for an object matching Schema
type StructuredRequest struct {
	Prompt      string
	System      string
	Schema      *Schema
	Temperature float64
	MaxTokens   int
}

// LLM is a text generation provider
type LLM interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, error)
	HealthCheck(ctx context.Context) bool
}

// SearchDepth controls how thorough a web search is
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// SearchRequest is a web search query
type SearchRequest struct {
	Query          string
	Depth          SearchDepth
	MaxResults     int
	IncludeDomains []string
	ExcludeDomains []string
}

// SearchResult is one hit
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResponse holds the results of a search
type SearchResponse struct {
	Query    string         `json:"query"`
	Results  []SearchResult `json:"results"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BusinessContext describes the business being researched
type BusinessContext struct {
	Name         string
	Sector       string
	Location     models.Location
	TargetMarket string
	Vision       string
	Mission      string
}

// MarketAnalysis is the output of Search.AnalyzeMarket
type MarketAnalysis struct {
	MarketSize    string              `json:"market_size"`
	Competitors   []models.Competitor `json:"competitors"`
	Opportunities []string            `json:"opportunities"`
	Pricing       string              `json:"pricing"`
	Trends        []string            `json:"trends"`
	Risks         []string            `json:"risks"`
}

// Search is a web search provider
type Search interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	AnalyzeMarket(ctx context.Context, bc BusinessContext) (*MarketAnalysis, error)
	HealthCheck(ctx context.Context) bool
}

// LogoRequest describes a logo to generate
type LogoRequest struct {
	BusinessName string
	Industry     string
	Style        string
	Colors       []string
}

// ImageRequest is a free-form image generation call
type ImageRequest struct {
	Prompt  string
	Size    string // e.g. 1024x1024
	Quality string // standard, hd
}

// ImageResult is the output of an image provider
type ImageResult struct {
	ImageURL   string         `json:"image_url"`
	PromptUsed string         `json:"prompt_used"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Image is an image generation provider
type Image interface {
	Name() string
	Model() string
	GenerateLogo(ctx context.Context, req LogoRequest) (*ImageResult, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	HealthCheck(ctx context.Context) bool
}

// Embedder turns text into a fixed-width vector
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// EmbeddingDimensions is the vector width used across the system
const EmbeddingDimensions = 1536

// Set is the provider triple (plus embedder) resolved for one plan
type Set struct {
	Plan     string
	LLM      LLM
	Search   Search
	Image    Image
	Embedder Embedder
}
