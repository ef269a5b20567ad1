package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
)

// TavilyConfig holds credentials for the Tavily search API
type TavilyConfig struct {
	APIKey  string
	BaseURL string // Default: https://api.tavily.com
	Timeout time.Duration
}

// Tavily is a web search provider
type Tavily struct {
	config     TavilyConfig
	httpClient *http.Client
}

// NewTavily creates a Tavily search provider
func NewTavily(cfg TavilyConfig) *Tavily {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Tavily{config: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

// Search runs one query
func (t *Tavily) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Depth == "" {
		req.Depth = DepthBasic
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	body, err := json.Marshal(tavilyRequest{
		Query:          req.Query,
		SearchDepth:    string(req.Depth),
		MaxResults:     req.MaxResults,
		IncludeDomains: req.IncludeDomains,
		ExcludeDomains: req.ExcludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.config.APIKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, Classify(t.Name(), fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, Classify(t.Name(), &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)})
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, NewError(KindUnavailable, t.Name(), fmt.Errorf("failed to decode response: %w", err))
	}

	slog.Debug("Tavily.Search: completed", "query", req.Query, "results", len(tr.Results))
	return &SearchResponse{
		Query:   req.Query,
		Results: tr.Results,
		Metadata: map[string]any{
			"provider":      t.Name(),
			"depth":         string(req.Depth),
			"response_time": tr.ResponseTime,
		},
	}, nil
}

// AnalyzeMarket runs one advanced regional search and assembles an analysis from the snippets
func (t *Tavily) AnalyzeMarket(ctx context.Context, bc BusinessContext) (*MarketAnalysis, error) {
	resp, err := t.Search(ctx, SearchRequest{
		Query:          fmt.Sprintf("marché %s %s %s concurrents prix tendances", bc.Sector, bc.Location.City, catalog.CountryName(bc.Location.CountryCode)),
		Depth:          DepthAdvanced,
		MaxResults:     8,
		IncludeDomains: catalog.RegionalDomains(bc.Location.CountryCode),
	})
	if err != nil {
		return nil, err
	}
	return MarketFromSnippets(bc, resp.Results), nil
}

// HealthCheck runs a minimal query
func (t *Tavily) HealthCheck(ctx context.Context) bool {
	_, err := t.Search(ctx, SearchRequest{Query: "health check", MaxResults: 1})
	return err == nil
}

var (
	marketWords  = []string{"marché", "market", "secteur", "industry"}
	pricingWords = []string{"prix", "price", "fcfa", "tarif", "€", "$", "coût", "cost"}
	trendWords   = []string{"tendance", "trend", "croissance", "growth", "essor", "hausse"}
)

// MarketFromSnippets assembles a market analysis from raw search results
// without any LLM call. Output is deterministic for a given input.
func MarketFromSnippets(bc BusinessContext, results []SearchResult) *MarketAnalysis {
	where := catalog.FormatLocation(bc.Location)
	if where == "" {
		where = "la zone ciblée"
	}
	analysis := &MarketAnalysis{
		MarketSize: fmt.Sprintf("Marché %s actif à %s", bc.Sector, where),
		Pricing:    fmt.Sprintf("Prix alignés sur les pratiques locales du secteur %s", bc.Sector),
		Risks:      []string{"Concurrence établie", "Sensibilité des clients au prix"},
	}

	seen := make(map[string]bool)
	var sentences []string
	for _, r := range results {
		title := strings.TrimSpace(r.Title)
		if title != "" && !seen[title] && len(analysis.Competitors) < 5 {
			seen[title] = true
			analysis.Competitors = append(analysis.Competitors, models.Competitor{Name: title, URL: r.URL, Description: firstSentence(r.Content)})
		}
		if s := firstSentence(r.Content); s != "" {
			sentences = append(sentences, s)
		}
	}

	if s := findSentence(sentences, marketWords); s != "" {
		analysis.MarketSize = s
	}
	if s := findSentence(sentences, pricingWords); s != "" {
		analysis.Pricing = s
	}
	for _, s := range sentences {
		if containsAny(s, trendWords) && len(analysis.Trends) < 3 {
			analysis.Trends = append(analysis.Trends, s)
		}
	}
	for _, s := range sentences {
		if len(analysis.Opportunities) == 3 {
			break
		}
		analysis.Opportunities = append(analysis.Opportunities, s)
	}
	if len(analysis.Opportunities) == 0 {
		analysis.Opportunities = []string{fmt.Sprintf("Présence en ligne encore faible des acteurs %s à %s", bc.Sector, where)}
	}
	return analysis
}

func firstSentence(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		s = s[:i+1]
	}
	if len([]rune(s)) > 240 {
		s = string([]rune(s)[:240])
	}
	return strings.TrimSpace(s)
}

func findSentence(sentences, words []string) string {
	for _, s := range sentences {
		if containsAny(s, words) {
			return s
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
