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
)

// OllamaConfig holds the local inference client configuration
type OllamaConfig struct {
	URL         string // Default: http://localhost:11434
	Model       string // Default: qwen2.5:7b
	ContextSize int    // Default: 8192
	Timeout     time.Duration
}

// DefaultOllamaConfig returns the default configuration
func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		URL:         "http://localhost:11434",
		Model:       "qwen2.5:7b",
		ContextSize: 8192,
		Timeout:     2 * time.Minute,
	}
}

// Ollama is an LLM provider backed by a local Ollama server
type Ollama struct {
	config     *OllamaConfig
	httpClient *http.Client
}

// NewOllama creates a new Ollama provider
func NewOllama(config *OllamaConfig) *Ollama {
	if config == nil {
		config = DefaultOllamaConfig()
	}
	return &Ollama{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest represents a request to Ollama's /api/chat endpoint
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model     string        `json:"model"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	EvalCount int           `json:"eval_count,omitempty"`
}

func (o *Ollama) Name() string  { return "ollama" }
func (o *Ollama) Model() string { return o.config.Model }

// Generate performs a synchronous (non-streaming) chat completion
func (o *Ollama) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	start := time.Now()

	messages := make([]ollamaMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	options := map[string]any{"num_ctx": o.config.ContextSize}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    o.config.Model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.URL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", Classify(o.Name(), fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", Classify(o.Name(), &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)})
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", NewError(KindUnavailable, o.Name(), fmt.Errorf("failed to decode response: %w", err))
	}

	slog.Debug("Ollama.Generate: completed", "model", o.config.Model, "tokens", chatResp.EvalCount, "latency", time.Since(start))
	return strings.TrimSpace(chatResp.Message.Content), nil
}

// GenerateStructured asks for JSON matching the schema
func (o *Ollama) GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, error) {
	return StructuredVia(ctx, o.Name(), o.Generate, req)
}

// HealthCheck reports whether the server answers and has the configured model
func (o *Ollama) HealthCheck(ctx context.Context) bool {
	models, err := o.ListModels(ctx)
	if err != nil {
		slog.Debug("Ollama.HealthCheck: failed", "error", err)
		return false
	}
	for _, m := range models {
		if m == o.config.Model {
			return true
		}
	}
	return false
}

// ListModels lists available models
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.URL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}
