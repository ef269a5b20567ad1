package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/genesis/genesis/internal/agent"
	"github.com/genesis/genesis/internal/engine"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/quota"
	"github.com/genesis/genesis/internal/store"
	"github.com/genesis/genesis/internal/vfs"
)

const testSecret = "s3cret"

type mockProviders struct{}

func (mockProviders) ForPlan(plan string) *provider.Set {
	return &provider.Set{
		Plan:   models.NormalizePlan(plan),
		LLM:    provider.MockLLM{},
		Search: provider.MockSearch{},
		Image:  provider.MockImage{},
	}
}

type server struct {
	handler http.Handler
	store   *store.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	backend, err := vfs.NewBadgerBackend("")
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	st, err := store.Open(store.WithDriver(store.DriverSQLite), store.WithDSN(":memory:"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	config := agent.DefaultConfig()
	config.RetryBackoff = time.Millisecond
	e := engine.New(engine.Deps{
		Providers: mockProviders{},
		FS:        vfs.New(backend, nil),
		Store:     st,
		Quota:     quota.NewManager(st, nil),
		Accounts:  st,
	}, config)
	return &server{handler: NewRouter(e, testSecret), store: st}
}

func (s *server) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return got
}

func (s *server) start(t *testing.T, userID string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/sessions", userID, StartSessionRequest{
		Onboarding: &models.Onboarding{BusinessName: "Le Maquis Moderne", Sector: "restaurant", CountryCode: "CI", City: "Abidjan"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start returned %d: %s", w.Code, w.Body.String())
	}
	id, _ := decodeBody(t, w)["session_id"].(string)
	if id == "" {
		t.Fatal("missing session_id")
	}
	return id
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "ok" {
		t.Errorf("status %v", got)
	}
}

func TestRequiresUser(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/sessions", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCoachingOverHTTP(t *testing.T) {
	s := newServer(t)
	id := s.start(t, "user-1")

	answers := []string{
		"Devenir le maquis de référence de la cuisine ivoirienne moderne à Abidjan.",
		"Servir des plats locaux frais, rapides et à prix juste chaque midi.",
		"Les jeunes actifs de Cocody entre 25 et 40 ans et les entreprises voisines.",
		"Des produits du marché livrés chaque matin et une terrasse climatisée.",
		"Déjeuner, brunch du dimanche, service traiteur pour événements.",
	}
	var last map[string]any
	for _, answer := range answers {
		w := s.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", "user-1", MessageRequest{Text: answer})
		if w.Code != http.StatusOK {
			t.Fatalf("message returned %d: %s", w.Code, w.Body.String())
		}
		last = decodeBody(t, w)
	}
	if last["current_step"] != string(models.StepSynthesis) || last["coaching_complete"] != true {
		t.Errorf("unexpected final step %v", last)
	}
	if last["site_data"] == nil || last["brief"] == nil {
		t.Fatal("final answer should carry the brief and site")
	}

	w := s.do(t, http.MethodGet, "/api/sessions/"+id+"/site", "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("site returned %d", w.Code)
	}
	if pages, _ := decodeBody(t, w)["pages"].([]any); len(pages) != 1 {
		t.Errorf("expected one page, got %d", len(pages))
	}

	w = s.do(t, http.MethodGet, "/api/sessions", "user-1", nil)
	if sessions, _ := decodeBody(t, w)["sessions"].([]any); len(sessions) != 1 {
		t.Errorf("expected one session, got %d", len(sessions))
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	id := s.start(t, "user-1")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"empty answer", http.MethodPost, "/api/sessions/" + id + "/messages", "user-1", MessageRequest{}, http.StatusBadRequest, "validation_error"},
		{"foreign session", http.MethodPost, "/api/sessions/" + id + "/help", "user-2", nil, http.StatusNotFound, "not_found"},
		{"missing session", http.MethodGet, "/api/sessions/nope/recommendations", "user-1", nil, http.StatusNotFound, "not_found"},
		{"site not ready", http.MethodGet, "/api/sessions/" + id + "/site", "user-1", nil, http.StatusNotFound, "site_not_ready"},
		{"unknown theme", http.MethodPost, "/api/sessions/" + id + "/theme", "user-1", ThemeRequest{Slug: "nope"}, http.StatusBadRequest, "validation_error"},
		{"not finished", http.MethodPost, "/api/sessions/" + id + "/complete", "user-1", nil, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			got := decodeBody(t, w)
			if got["error"] != tt.code || got["hint"] == "" {
				t.Errorf("unexpected body %v", got)
			}
		})
	}
}

func TestQuotaExceededIs402(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	if err := s.store.UpsertSubscription(ctx, "user-1", models.PlanBasic, ""); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := s.store.IncrementUsage(ctx, "user-1", fmt.Sprintf("brief-%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	w := s.do(t, http.MethodPost, "/api/sessions", "user-1", StartSessionRequest{})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	got := decodeBody(t, w)
	details, _ := got["details"].(map[string]any)
	if got["error"] != "quota_exceeded" || details["current_usage"] != float64(10) || details["max_allowed"] != float64(10) || details["remaining"] != float64(0) || details["plan"] != "basic" {
		t.Errorf("unexpected payload %v", got)
	}
	if details["upgrade_url"] == "" || details["reset_date"] == nil {
		t.Errorf("missing upgrade details %v", details)
	}
}

func TestGenerateBriefRequiresSecret(t *testing.T) {
	s := newServer(t)
	body := engine.GenerateBriefRequest{
		UserID:       "svc-user",
		BusinessInfo: engine.BusinessInfo{CompanyName: "Salon Awa", Industry: "coiffure", Description: "Salon de coiffure à Dakar."},
	}

	if w := s.do(t, http.MethodPost, "/api/briefs", "", body); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without secret, got %d", w.Code)
	}

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, "/api/briefs", &buf)
	req.Header.Set(SecretHeader, testSecret)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decodeBody(t, w)
	if agents, _ := got["agents"].([]any); len(agents) != 6 {
		t.Errorf("expected 6 agent statuses, got %d", len(agents))
	}
	if got["overall_confidence"] == nil || got["brief_id"] == "" {
		t.Errorf("unexpected body %v", got)
	}
}

func TestHandlerWithoutSecretRejectsBriefs(t *testing.T) {
	h := NewHandler(nil, "")
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodPost, "/api/briefs", nil)
	req.Header.Set(SecretHeader, "")
	w := httptest.NewRecorder()
	h.requireSecret(next).ServeHTTP(w, req)
	if called || w.Code != http.StatusForbidden {
		t.Errorf("empty secret must disable the endpoint, got %d", w.Code)
	}
}
