package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds the dependency checks behind GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth required)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.Get("/audit", s.handleListAudit)

			r.Route("/printers", func(r chi.Router) {
				r.Get("/", s.handleListPrinters)
				r.Post("/", s.handleCreatePrinter)
				r.Get("/connected", s.handleGetConnectedPrinter)
				r.Get("/discover", s.handleDiscoverPrinters)
				r.Post("/test", s.handleTestPrinter)
				r.Get("/status/connected", s.handleConnectedStatus)
				r.Get("/status/{id}", s.handlePrinterStatus)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPrinter)
					r.Put("/", s.handleUpdatePrinter)
					r.Delete("/", s.handleDeletePrinter)
					r.Post("/connect", s.handleConnectPrinter)
					r.Post("/disconnect", s.handleDisconnectPrinter)
				})
			})
		})
	})

	return r
}

// handleHealth reports the server and database health. Optional services
// are reported but never make the server unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
		} else {
			resp["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		resp["mqtt"] = s.mqtt.IsConnected()
	}
	if s.influx != nil {
		resp["influxdb"] = s.influx.IsConnected()
	}

	writeJSON(w, status, resp)
}
