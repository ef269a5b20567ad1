package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiConfig holds credentials for the Gemini provider
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini is an LLM provider backed by Google's Generative AI API. A client
// is opened per call and closed afterwards.
type Gemini struct {
	config GeminiConfig
}

// NewGemini creates a Gemini provider
func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	return &Gemini{config: cfg}
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.config.Model }

// Generate runs a single-turn generation
func (g *Gemini) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	start := time.Now()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.config.APIKey))
	if err != nil {
		return "", NewError(KindUnavailable, g.Name(), fmt.Errorf("failed to create client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(g.config.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classifyGemini(g.Name(), err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", NewError(KindUnavailable, g.Name(), errors.New("empty response"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	if text.Len() == 0 {
		return "", NewError(KindUnavailable, g.Name(), errors.New("no text in response"))
	}

	slog.Debug("Gemini.Generate: completed", "model", g.config.Model, "latency", time.Since(start))
	return strings.TrimSpace(text.String()), nil
}

// GenerateStructured asks for JSON matching the schema
func (g *Gemini) GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, error) {
	return StructuredVia(ctx, g.Name(), g.Generate, req)
}

// HealthCheck verifies the model can be described with the configured key
func (g *Gemini) HealthCheck(ctx context.Context) bool {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.config.APIKey))
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.GenerativeModel(g.config.Model).Info(ctx)
	if err != nil {
		slog.Debug("Gemini.HealthCheck: failed", "error", err)
	}
	return err == nil
}

func classifyGemini(name string, err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return NewError(KindContentPolicy, name, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return NewError(KindForStatus(apiErr.Code), name, err)
	}
	return Classify(name, err)
}
