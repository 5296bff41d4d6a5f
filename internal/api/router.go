package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Printer state
		r.Get("/printer", s.handleGetPrinter)
		r.Get("/printer/thumbnail", s.handlePrinterThumbnail)

		// Entity endpoints
		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Get("/history", s.handleEntityHistory)
			})
		})

		// Print job history
		r.Get("/jobs", s.handleListJobs)

		// Camera endpoints
		r.Route("/cameras", func(r chi.Router) {
			r.Get("/", s.handleListCameras)
			r.Get("/{name}/snapshot", s.handleCameraSnapshot)
		})

		// Mutating routes require a bearer token; they drive hardware
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/printer/commands", s.handlePostCommand)
		})

		// WebSocket for real-time state
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
