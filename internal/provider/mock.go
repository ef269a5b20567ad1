package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// MockLLM is the deterministic placeholder LLM. It never fails.
type MockLLM struct{}

func (MockLLM) Name() string  { return "mock" }
func (MockLLM) Model() string { return "mock" }

// Generate echoes a short digest of the prompt
func (MockLLM) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return fmt.Sprintf("Réponse indicative pour : %s", truncateRunes(firstLine(req.Prompt), 120)), nil
}

// GenerateStructured synthesises an object from the schema
func (MockLLM) GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, error) {
	obj, _ := synthesize("", req.Schema).(map[string]any)
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

func (MockLLM) HealthCheck(ctx context.Context) bool { return true }

// synthesize builds a placeholder value for a schema. Enums take their last
// value, booleans named like a problem flag are false.
func synthesize(field string, s *Schema) any {
	if s == nil {
		return nil
	}
	switch s.Type {
	case "object":
		obj := make(map[string]any, len(s.Properties))
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			obj[name] = synthesize(name, s.Properties[name])
		}
		return obj
	case "array":
		items := make([]any, 3)
		for i := range items {
			v := synthesize(field, s.Items)
			if str, ok := v.(string); ok {
				v = fmt.Sprintf("%s %d", str, i+1)
			}
			items[i] = v
		}
		return items
	case "string":
		if len(s.Enum) > 0 {
			return s.Enum[len(s.Enum)-1]
		}
		return humanize(field)
	case "number":
		return 0.8
	case "integer":
		return float64(4)
	case "boolean":
		lower := strings.ToLower(field)
		return !(strings.Contains(lower, "needed") || strings.Contains(lower, "error") || strings.HasPrefix(lower, "is_not"))
	}
	return nil
}

func humanize(field string) string {
	if field == "" {
		return "Exemple"
	}
	s := strings.ReplaceAll(field, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:] + " (exemple)"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MockSearch returns deterministic placeholder results
type MockSearch struct{}

func (MockSearch) Name() string { return "mock" }

func (MockSearch) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	n := req.MaxResults
	if n <= 0 || n > 3 {
		n = 3
	}
	results := make([]SearchResult, n)
	for i := range results {
		results[i] = SearchResult{
			Title:   fmt.Sprintf("%s - résultat %d", req.Query, i+1),
			URL:     fmt.Sprintf("https://example.com/%s/%d", shortHash(req.Query), i+1),
			Content: fmt.Sprintf("Le marché lié à « %s » présente une croissance régulière. Les prix restent accessibles.", req.Query),
			Score:   1 - float64(i)*0.1,
		}
	}
	return &SearchResponse{Query: req.Query, Results: results, Metadata: map[string]any{"provider": "mock"}}, nil
}

func (m MockSearch) AnalyzeMarket(ctx context.Context, bc BusinessContext) (*MarketAnalysis, error) {
	resp, _ := m.Search(ctx, SearchRequest{Query: fmt.Sprintf("%s %s", bc.Sector, bc.Location.City)})
	return MarketFromSnippets(bc, resp.Results), nil
}

func (MockSearch) HealthCheck(ctx context.Context) bool { return true }

// MockImage returns placeholder image URLs
type MockImage struct{}

func (MockImage) Name() string  { return "mock" }
func (MockImage) Model() string { return "mock" }

func (m MockImage) GenerateLogo(ctx context.Context, req LogoRequest) (*ImageResult, error) {
	res, _ := m.GenerateImage(ctx, ImageRequest{Prompt: LogoPrompt(req), Size: "1024x1024"})
	res.ImageURL = fmt.Sprintf("https://placehold.co/1024x1024/png?text=%s", url.QueryEscape(initials(req.BusinessName)))
	return res, nil
}

func (MockImage) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}
	return &ImageResult{
		ImageURL:   fmt.Sprintf("https://placehold.co/%s/png?text=%s", size, shortHash(req.Prompt)),
		PromptUsed: req.Prompt,
		Metadata:   map[string]any{"model": "mock", "size": size},
	}, nil
}

func (MockImage) HealthCheck(ctx context.Context) bool { return true }

func initials(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		b.WriteString(strings.ToUpper(string([]rune(w)[:1])))
		if b.Len() >= 3 {
			break
		}
	}
	if b.Len() == 0 {
		return "LOGO"
	}
	return b.String()
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
