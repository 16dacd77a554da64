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
	r.Use(s.corsMiddleware())
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Telemetry queries (live cache with durable-store fallback)
		r.Route("/vehicle-data", func(r chi.Router) {
			r.Get("/tracked-units", s.handleTrackedUnits)
			r.Delete("/cache", s.handleClearCache)

			r.Route("/{imei}", func(r chi.Router) {
				r.Get("/latest", s.handleLatestReading)
				r.Get("/history", s.handleReadingHistory)
				r.Get("/events", s.handleVehicleEvents)
				r.Delete("/cache", s.handleClearUnitCache)
			})
		})

		// Fleet registry
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", s.handleListVehicles)
			r.Post("/", s.handleCreateVehicle)
			r.Get("/map-data", s.handleMapData)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetVehicle)
				r.Put("/", s.handleUpdateVehicle)
				r.Delete("/", s.handleDeleteVehicle)
			})
		})

		r.Route("/tracking-units", func(r chi.Router) {
			r.Get("/", s.handleListTrackingUnits)
			r.Post("/", s.handleCreateTrackingUnit)
		})

		// Ingestion diagnostics
		r.Route("/mqtt", func(r chi.Router) {
			r.Get("/status", s.handleMQTTStatus)
			r.Post("/test-broadcast", s.handleTestBroadcast)
		})

		// WebSocket live feed
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the configured WebSocket route, relative to /api/v1.
func (s *Server) wsPath() string {
	path := s.wsCfg.Path
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
