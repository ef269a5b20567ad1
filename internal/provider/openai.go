package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig holds credentials for the OpenAI-compatible providers
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func newOpenAIClient(cfg OpenAIConfig) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

// chatCompletions is the subset of the SDK chat service used here
type chatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type modelGetter interface {
	Get(ctx context.Context, model string, opts ...option.RequestOption) (*openai.Model, error)
}

type imageGenerator interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

type embeddingCreator interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// classifyOpenAI maps SDK errors onto provider error kinds
func classifyOpenAI(name string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return Classify(name, err)
	}
	switch {
	case strings.Contains(apiErr.Code, "content_policy") || strings.Contains(apiErr.Code, "content_filter"):
		return NewError(KindContentPolicy, name, err)
	case apiErr.StatusCode == 429 && apiErr.Code == "insufficient_quota":
		return NewError(KindUnavailable, name, err)
	default:
		return NewError(KindForStatus(apiErr.StatusCode), name, err)
	}
}

// OpenAILLM is a chat-completions LLM provider
type OpenAILLM struct {
	chat   chatCompletions
	models modelGetter
	model  string
}

// NewOpenAILLM creates an OpenAI chat provider
func NewOpenAILLM(cfg OpenAIConfig) *OpenAILLM {
	cli := newOpenAIClient(cfg)
	return &OpenAILLM{chat: &cli.Chat.Completions, models: &cli.Models, model: cfg.Model}
}

func (p *OpenAILLM) Name() string  { return "openai" }
func (p *OpenAILLM) Model() string { return p.model }

// Generate sends a system + user message pair and returns the reply text
func (p *OpenAILLM) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	start := time.Now()

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(p.model),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.chat.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(p.Name(), err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", NewError(KindUnavailable, p.Name(), errors.New("no choices returned"))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", NewError(KindContentPolicy, p.Name(), errors.New("completion blocked by content filter"))
	}

	slog.Debug("OpenAILLM.Generate: completed", "model", p.model, "latency", time.Since(start))
	return strings.TrimSpace(choice.Message.Content), nil
}

// GenerateStructured asks for JSON matching the schema
func (p *OpenAILLM) GenerateStructured(ctx context.Context, req StructuredRequest) (map[string]any, error) {
	return StructuredVia(ctx, p.Name(), p.Generate, req)
}

// HealthCheck verifies the credentials can see the configured model
func (p *OpenAILLM) HealthCheck(ctx context.Context) bool {
	_, err := p.models.Get(ctx, p.model)
	if err != nil {
		slog.Debug("OpenAILLM.HealthCheck: failed", "error", err)
	}
	return err == nil
}

// OpenAIImage is a DALL·E image provider
type OpenAIImage struct {
	images imageGenerator
	models modelGetter
	model  string
}

// NewOpenAIImage creates an OpenAI image provider
func NewOpenAIImage(cfg OpenAIConfig) *OpenAIImage {
	cli := newOpenAIClient(cfg)
	return &OpenAIImage{images: &cli.Images, models: &cli.Models, model: cfg.Model}
}

func (p *OpenAIImage) Name() string  { return "openai" }
func (p *OpenAIImage) Model() string { return p.model }

// GenerateLogo renders the logo prompt as a square image
func (p *OpenAIImage) GenerateLogo(ctx context.Context, req LogoRequest) (*ImageResult, error) {
	res, err := p.GenerateImage(ctx, ImageRequest{Prompt: LogoPrompt(req), Size: "1024x1024", Quality: "standard"})
	if err != nil {
		return nil, err
	}
	res.Metadata["style"] = req.Style
	return res, nil
}

// GenerateImage generates one image and returns its provider URL
func (p *OpenAIImage) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	size := req.Size
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(p.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if p.model == "dall-e-2" {
		// dall-e-2 only renders squares
		if size != "256x256" && size != "512x512" {
			size = "1024x1024"
		}
	} else if req.Quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(req.Quality)
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}

	resp, err := p.images.Generate(ctx, params)
	if err != nil {
		return nil, classifyOpenAI(p.Name(), err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, NewError(KindUnavailable, p.Name(), errors.New("no image returned"))
	}

	return &ImageResult{
		ImageURL:   resp.Data[0].URL,
		PromptUsed: req.Prompt,
		Metadata: map[string]any{
			"model":          p.model,
			"size":           size,
			"revised_prompt": resp.Data[0].RevisedPrompt,
		},
	}, nil
}

// HealthCheck verifies the credentials can see the configured model
func (p *OpenAIImage) HealthCheck(ctx context.Context) bool {
	_, err := p.models.Get(ctx, p.model)
	return err == nil
}

// OpenAIEmbedder produces text-embedding-3-small vectors
type OpenAIEmbedder struct {
	embeddings embeddingCreator
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an OpenAI embedder
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	cli := newOpenAIClient(cfg)
	model := cfg.Model
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &OpenAIEmbedder{embeddings: &cli.Embeddings, model: model, dimensions: EmbeddingDimensions}
}

func (e *OpenAIEmbedder) Name() string    { return "openai" }
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Embed returns the embedding of text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dimensions)),
	})
	if err != nil {
		return nil, classifyOpenAI(e.Name(), err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, NewError(KindUnavailable, e.Name(), errors.New("no embedding returned"))
	}

	values := resp.Data[0].Embedding
	if len(values) != e.dimensions {
		return nil, NewError(KindUnavailable, e.Name(), fmt.Errorf("expected %d dimensions, got %d", e.dimensions, len(values)))
	}
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v)
	}
	return vec, nil
}

// LogoPrompt builds the templated logo prompt shared by image providers
func LogoPrompt(req LogoRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Professional %s logo for \"%s\", a %s business. ", req.Style, req.BusinessName, req.Industry)
	b.WriteString("Square format, centered emblem, no text or letters in the image, transparent background, ")
	b.WriteString("clean vector style suitable for a website header and favicon")
	if len(req.Colors) > 0 {
		fmt.Fprintf(&b, ", color palette: %s", strings.Join(req.Colors, ", "))
	}
	b.WriteString(".")
	return b.String()
}
