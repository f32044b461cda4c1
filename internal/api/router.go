package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/noteintel/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes (read-only; the vault is the source of truth).
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)

	// Search.
	r.Get("/search", h.Search)

	// Graph.
	r.Route("/graph", func(r chi.Router) {
		r.Get("/", h.Graph)
		r.Get("/metrics", h.GraphMetrics)
		r.Get("/clusters", h.Clusters)
		r.Get("/central", h.CentralNotes)
		r.Get("/path", h.ShortestPath)
		r.Get("/bridges", h.Bridges)
	})

	// Link validation and repair.
	r.Route("/links", func(r chi.Router) {
		r.Get("/validate", h.ValidateLinks)
		r.Get("/validate/*", h.ValidateNote)
		r.Get("/bidirectional", h.MissingBidirectional)
		r.Post("/repair", h.RepairLinks)
	})

	// Suggestions.
	r.Post("/suggestions/keywords", h.SuggestByKeywords)
	r.Get("/suggestions/*", h.SuggestLinks)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
