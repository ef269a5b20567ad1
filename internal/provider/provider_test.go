package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/genesis/genesis/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"429", &StatusError{Code: 429}, KindRateLimited},
		{"503", &StatusError{Code: 503}, KindUnavailable},
		{"451", &StatusError{Code: 451}, KindContentPolicy},
		{"typed passes through", NewError(KindContentPolicy, "x", nil), KindContentPolicy},
		{"other", errors.New("boom"), KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(Classify("p", tt.err)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: " bonjour "}, Done: true})
	}))
	defer server.Close()

	o := NewOllama(&OllamaConfig{URL: server.URL, Model: "qwen2.5:7b", Timeout: 5 * time.Second})
	got, err := o.Generate(context.Background(), GenerateRequest{Prompt: "hi", System: "sys"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "bonjour" {
		t.Errorf("got %q", got)
	}
}

func TestOllamaRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	o := NewOllama(&OllamaConfig{URL: server.URL, Model: "m", Timeout: 5 * time.Second})
	_, err := o.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if !IsKind(err, KindRateLimited) {
		t.Fatalf("expected rate-limited, got %v", err)
	}
}

func TestTavilySearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req tavilyRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(tavilyResponse{
			Query: req.Query,
			Results: []SearchResult{
				{Title: "Maquis Chez Tante", URL: "https://a.ci", Content: "Le marché de la restauration à Abidjan est en croissance. Autre phrase."},
				{Title: "Grill 225", URL: "https://b.ci", Content: "Les prix moyens sont de 3000 FCFA par repas."},
			},
		})
	}))
	defer server.Close()

	tv := NewTavily(TavilyConfig{APIKey: "key", BaseURL: server.URL})
	analysis, err := tv.AnalyzeMarket(context.Background(), BusinessContext{
		Name: "Le Maquis Moderne", Sector: "restaurant",
		Location: models.Location{CountryCode: "CI", City: "Abidjan"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(analysis.Competitors) != 2 {
		t.Errorf("competitors = %+v", analysis.Competitors)
	}
	if analysis.Pricing != "Les prix moyens sont de 3000 FCFA par repas." {
		t.Errorf("pricing = %q", analysis.Pricing)
	}
	if len(analysis.Trends) != 1 {
		t.Errorf("trends = %v", analysis.Trends)
	}
}

type fakeChat struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (f *fakeChat) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = body
	return f.resp, f.err
}

func TestOpenAILLMGenerate(t *testing.T) {
	chat := &fakeChat{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Hello World"}}},
	}}
	p := &OpenAILLM{chat: chat, model: "gpt-4o-mini"}

	got, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi", System: "sys", MaxTokens: 10})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello World" {
		t.Errorf("got %q", got)
	}
	if len(chat.params.Messages) != 2 {
		t.Errorf("expected system + user messages, got %d", len(chat.params.Messages))
	}
}

func TestOpenAILLMContentFilter(t *testing.T) {
	chat := &fakeChat{resp: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{FinishReason: "content_filter"}},
	}}
	p := &OpenAILLM{chat: chat, model: "gpt-4o"}

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if !IsKind(err, KindContentPolicy) {
		t.Fatalf("expected content-policy, got %v", err)
	}
}

func TestOpenAILLMNoChoices(t *testing.T) {
	p := &OpenAILLM{chat: &fakeChat{resp: &openai.ChatCompletion{}}, model: "gpt-4o"}
	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if !IsKind(err, KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestFactoryFallsBackToMock(t *testing.T) {
	f := NewFactory(Credentials{}, NewRateLimiter(0, 1), DefaultTimeouts())

	set := f.ForPlan("platinum")
	if set.Plan != models.PlanTrial {
		t.Errorf("plan = %s", set.Plan)
	}
	if set.LLM.Name() != "mock" || set.Search.Name() != "mock" || set.Image.Name() != "mock" {
		t.Errorf("expected mocks, got %s/%s/%s", set.LLM.Name(), set.Search.Name(), set.Image.Name())
	}
	if set.Embedder.Name() != "hash" {
		t.Errorf("embedder = %s", set.Embedder.Name())
	}
}

func TestFactoryUsesCredentials(t *testing.T) {
	f := NewFactory(Credentials{OpenAIKey: "sk-test", TavilyKey: "tv"}, nil, DefaultTimeouts())

	set := f.ForPlan(models.PlanPro)
	if set.LLM.Name() != "openai" || set.LLM.Model() != "gpt-4o" {
		t.Errorf("llm = %s/%s", set.LLM.Name(), set.LLM.Model())
	}
	if set.Image.Model() != "dall-e-3" {
		t.Errorf("image = %s", set.Image.Model())
	}
	if set.Search.Name() != "tavily" {
		t.Errorf("search = %s", set.Search.Name())
	}

	// enterprise wants gemini, which has no key here
	if got := f.LLM(models.PlanEnterprise).Name(); got != "mock" {
		t.Errorf("enterprise llm = %s", got)
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(EmbeddingDimensions)
	ctx := context.Background()

	pizza, _ := e.Embed(ctx, "Restaurant italien pizza")
	tech, _ := e.Embed(ctx, "Tech startup ai")
	query, _ := e.Embed(ctx, "pizza place")

	if len(query) != EmbeddingDimensions {
		t.Fatalf("dimensions = %d", len(query))
	}
	if CosineSimilarity(query, pizza) <= CosineSimilarity(query, tech) {
		t.Errorf("expected restaurant to be closer: %f vs %f", CosineSimilarity(query, pizza), CosineSimilarity(query, tech))
	}
	again, _ := e.Embed(ctx, "pizza place")
	if CosineSimilarity(query, again) < 0.9999 {
		t.Error("embedding is not deterministic")
	}
}

func TestGuardTimesOut(t *testing.T) {
	slow := GuardLLM(slowLLM{}, nil, 10*time.Millisecond)
	_, err := slow.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

type slowLLM struct{ MockLLM }

func (slowLLM) Name() string { return "slow" }

func (slowLLM) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx, "openai"); err != nil {
			t.Fatal(err)
		}
	}

	rl.Register("tight", 0.001, 1)
	rl.Wait(ctx, "tight")
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(short, "tight"); err == nil {
		t.Error("expected the second call to exceed the deadline")
	}
}
