package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/genesis/genesis/internal/engine"
)

// NewRouter returns the HTTP handler for the API
func NewRouter(e *engine.Engine, secret string) http.Handler {
	h := NewHandler(e, secret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.With(h.requireSecret).Post("/briefs", h.GenerateBrief)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)

			r.Post("/sessions", h.StartSession)
			r.Get("/sessions", h.ListSessions)
			r.Route("/sessions/{sessionID}", func(r chi.Router) {
				r.Post("/messages", h.PostMessage)
				r.Post("/help", h.Help)
				r.Post("/reformulate", h.Reformulate)
				r.Post("/proposals", h.Proposals)
				r.Post("/complete", h.Complete)
				r.Post("/theme", h.SelectTheme)
				r.Get("/recommendations", h.Recommendations)
				r.Get("/site", h.Site)
			})
		})
	})

	return r
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}
