// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/telemetria/internal/config"
)

// NewRouter wires all routes with the middleware stack.
func NewRouter(handler *Handler, cfg *config.ServerConfig) http.Handler {
	mw := NewMiddleware(cfg)

	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Route("/health", func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Data endpoints share the standard limiter and request metrics.
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(Metrics())

		r.Post("/ingest", handler.Ingest)

		r.Get("/sessions/{sessionID}", handler.GetSession)
		r.Get("/replays/{replayID}", handler.GetReplay)
		r.Get("/projects/{projectID}/sessions", handler.ListProjectSessions)
		r.Get("/heatmaps/{projectID}/{url}", handler.GetHeatmap)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/retention", handler.GetRetention)
			r.Get("/traffic", handler.GetTraffic)
			r.Get("/overview", handler.GetOverview)
			r.Get("/top-pages", handler.GetTopPages)
		})

		r.Get("/dlq", handler.ListFailedJobs)
	})

	return r
}
