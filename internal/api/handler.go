// Package api binds the engine to HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/genesis/genesis/internal/coach"
	"github.com/genesis/genesis/internal/engine"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/quota"
)

const (
	UserHeader    = "X-User-ID"
	SecretHeader  = "X-Service-Secret"
	maxBodyBytes  = 1 << 20
	contentTypeJS = "application/json"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the caller id set by the identity middleware
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// Handler serves the coaching and brief endpoints
type Handler struct {
	engine *engine.Engine
	secret string
}

// NewHandler creates a handler. An empty secret disables the
// service-to-service endpoint.
func NewHandler(e *engine.Engine, secret string) *Handler {
	return &Handler{engine: e, secret: secret}
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJS)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api.JSON: failed to encode response", "error", err)
	}
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error writes a JSON error response
func Error(w http.ResponseWriter, status int, body ErrorBody) {
	JSON(w, status, body)
}

// requireUser reads the caller identity. Authentication happens upstream.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			Error(w, http.StatusUnauthorized, ErrorBody{
				Error:   "unauthorized",
				Message: UserHeader + " header is required",
				Hint:    "sign in again",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// requireSecret guards service-to-service routes
func (h *Handler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			Error(w, http.StatusForbidden, ErrorBody{Error: "forbidden", Message: "invalid service secret"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail maps engine errors onto HTTP statuses
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, step string, err error) {
	var exceeded *quota.ExceededError
	switch {
	case errors.As(err, &exceeded):
		Error(w, http.StatusPaymentRequired, ErrorBody{
			Error:   "quota_exceeded",
			Message: err.Error(),
			Step:    step,
			Hint:    "upgrade your plan or wait for the monthly reset",
			Details: exceeded,
		})
	case errors.Is(err, coach.ErrValidation):
		Error(w, http.StatusBadRequest, ErrorBody{
			Error:   "validation_error",
			Message: err.Error(),
			Step:    step,
			Hint:    "check the request and try again",
		})
	case errors.Is(err, coach.ErrSessionNotFound):
		Error(w, http.StatusNotFound, ErrorBody{
			Error:   "not_found",
			Message: err.Error(),
			Step:    step,
			Hint:    "start a new session",
		})
	case errors.Is(err, engine.ErrSiteNotReady):
		Error(w, http.StatusNotFound, ErrorBody{
			Error:   "site_not_ready",
			Message: err.Error(),
			Step:    step,
			Hint:    "finish the coaching dialogue first",
		})
	default:
		slog.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "step", step, "error", err)
		Error(w, http.StatusInternalServerError, ErrorBody{
			Error:   "internal_error",
			Message: "the request could not be completed",
			Step:    step,
			Hint:    "retry in a few moments",
		})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, ErrorBody{
			Error:   "validation_error",
			Message: "invalid request body: " + err.Error(),
			Hint:    "send a JSON object",
		})
		return false
	}
	return true
}

// StartSessionRequest opens a session
type StartSessionRequest struct {
	InitialMessage string             `json:"initial_message"`
	Onboarding     *models.Onboarding `json:"onboarding,omitempty"`
}

// StartSession handles POST /api/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	res, err := h.engine.StartSession(r.Context(), UserIDFromContext(r.Context()), req.Onboarding, req.InitialMessage)
	if err != nil {
		h.fail(w, r, "start", err)
		return
	}
	JSON(w, http.StatusCreated, res)
}

// MessageRequest carries a user answer or draft
type MessageRequest struct {
	Text string `json:"user_response"`
}

// PostMessage handles POST /api/sessions/{id}/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.AdvanceStep(r.Context(), UserIDFromContext(r.Context()), sessionID(r), req.Text)
	if err != nil {
		h.fail(w, r, "advance", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Help handles POST /api/sessions/{id}/help
func (h *Handler) Help(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Help(r.Context(), UserIDFromContext(r.Context()), sessionID(r))
	if err != nil {
		h.fail(w, r, "help", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Reformulate handles POST /api/sessions/{id}/reformulate
func (h *Handler) Reformulate(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := h.engine.Reformulate(r.Context(), UserIDFromContext(r.Context()), sessionID(r), req.Text)
	if err != nil {
		h.fail(w, r, "reformulate", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"reformulated": text})
}

// Proposals handles POST /api/sessions/{id}/proposals
func (h *Handler) Proposals(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Proposals(r.Context(), UserIDFromContext(r.Context()), sessionID(r))
	if err != nil {
		h.fail(w, r, "proposals", err)
		return
	}
	JSON(w, http.StatusOK, map[string][]string{"proposals": list})
}

// Complete handles POST /api/sessions/{id}/complete, retrying generation
// for a session whose dialogue is finished
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.FinishSession(r.Context(), UserIDFromContext(r.Context()), sessionID(r))
	if err != nil {
		h.fail(w, r, "synthesis", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// ThemeRequest selects a theme
type ThemeRequest struct {
	Slug string `json:"theme_slug"`
}

// SelectTheme handles POST /api/sessions/{id}/theme
func (h *Handler) SelectTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decode(w, r, &req) {
		return
	}
	def, err := h.engine.SelectTheme(r.Context(), UserIDFromContext(r.Context()), sessionID(r), req.Slug)
	if err != nil {
		h.fail(w, r, "theme", err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"selected_theme": req.Slug, "site_data": def})
}

// Recommendations handles GET /api/sessions/{id}/recommendations
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.RecommendThemes(r.Context(), UserIDFromContext(r.Context()), sessionID(r))
	if err != nil {
		h.fail(w, r, "theme", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Site handles GET /api/sessions/{id}/site
func (h *Handler) Site(w http.ResponseWriter, r *http.Request) {
	def, err := h.engine.Site(r.Context(), UserIDFromContext(r.Context()), sessionID(r))
	if err != nil {
		h.fail(w, r, "site", err)
		return
	}
	JSON(w, http.StatusOK, def)
}

// ListSessions handles GET /api/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.ListSessions(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GenerateBrief handles POST /api/briefs
func (h *Handler) GenerateBrief(w http.ResponseWriter, r *http.Request) {
	var req engine.GenerateBriefRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.engine.GenerateBrief(r.Context(), req)
	if err != nil {
		h.fail(w, r, "brief", err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := h.engine.Health(r.Context())
	status, code := "ok", http.StatusOK
	for _, ok := range checks {
		if !ok {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	JSON(w, code, map[string]any{"status": status, "checks": checks})
}
