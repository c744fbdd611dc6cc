// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/logging"
	"github.com/satchelhq/satchel/internal/metrics"
)

// NewRouter assembles the HTTP surface.
func NewRouter(h *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	rateReqs := cfg.RateLimitReqs
	if rateReqs <= 0 {
		rateReqs = 100
	}
	rateWindow := cfg.RateLimitWindow
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateReqs, rateWindow))

		r.Get("/health", h.Health)
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/snapshot/children/{guid}", h.GetChildSnapshot)
		r.Get("/stats", h.GetStats)
		r.Get("/issues", h.GetIssues)
		r.Get("/diagnostics", h.GetDiagnostics)
		r.Post("/refresh", h.TriggerRefresh)

		r.Route("/setup", func(r chi.Router) {
			r.Post("/school", h.ResolveSchool)
			r.Get("/auth-url", h.GetAuthURL)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// statusRecorder captures the status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// requestLogging logs every request and feeds the HTTP metrics. Route
// patterns rather than raw paths keep the metric cardinality bounded.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordHTTPRequest(r.Method, route, rec.status, elapsed)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("Request served")
	})
}
