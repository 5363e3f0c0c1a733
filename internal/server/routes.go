package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestLogging)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorReq(w, r, http.StatusNotFound, makeAPIError(http.StatusNotFound, "not_found", ErrCodeRouteNotFound, fmt.Errorf("route not found")))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorReq(w, r, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.withAuth)

		r.Get("/backgrounds", s.handleListBackgrounds)
		r.Post("/backgrounds", s.handleUpload)
		r.Delete("/backgrounds", s.handleClearBackgrounds)
		r.Post("/backgrounds/url", s.handleAddURL)
		r.Get("/backgrounds/random", s.handlePick)
		r.Post("/backgrounds/delete", s.handleDeleteMany)
		r.Post("/backgrounds/backfill", s.handleBackfill)
		r.Get("/backgrounds/{id}", s.handleGetBackground)
		r.Patch("/backgrounds/{id}", s.handleUpdateBackground)
		r.Delete("/backgrounds/{id}", s.handleDeleteBackground)

		r.Get("/storage", s.handleStorage)
		r.Post("/storage/persist", s.handlePersist)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Post("/legacy", s.handleLegacyImport)

		r.Get("/events", s.handleEvents)
	})

	return r
}
