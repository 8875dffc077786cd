package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-dedupe/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Clusters
		r.Get("/clusters", s.clusters.List)
		r.Get("/clusters/{id}", s.clusters.Get)
		r.Post("/clusters/{id}/decision", s.clusters.Decide)

		// Pixels for display
		r.Get("/images", s.clusters.Image)
	})
}
