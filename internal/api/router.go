// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/middleware"
	"github.com/tomtom215/observa/internal/siem"
	"github.com/tomtom215/observa/internal/validation"
)

// Handler serves the ingest API.
type Handler struct {
	logger    Logger
	token     string
	startTime time.Time
}

// NewHandler creates a handler emitting through logger. An empty token
// disables authentication of POST /v1/logs.
func NewHandler(logger Logger, token string) *Handler {
	return &Handler{
		logger:    logger,
		token:     token,
		startTime: time.Now(),
	}
}

// Router builds the chi route tree.
type Router struct {
	handler   *Handler
	rateLimit int
}

// NewRouter creates a router for the service configuration.
func NewRouter(logger Logger, cfg config.ServiceConfig) *Router {
	return &Router{
		handler:   NewHandler(logger, cfg.IngestToken),
		rateLimit: cfg.RateLimit,
	}
}

// Handler returns the configured http.Handler.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.Correlation))

	r.Get("/health", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimitByIP(router.rateLimit, "/v1"))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.RequestTiming(router.handler.logger)))

		r.Get("/stats", router.handler.Stats)
		r.With(
			chiMiddleware(router.handler.Authenticate),
			chiMiddleware(middleware.Decompress),
		).Post("/logs", router.handler.Ingest)
	})

	return r
}

// Authenticate requires the shared bearer token. Failures are recorded on
// the security channel.
func (h *Handler) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			next(w, r)
			return
		}

		presented, ok := bearerToken(r)
		if ok && subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1 {
			next(w, r)
			return
		}

		reason := "invalid_token"
		if !ok {
			reason = "missing_token"
		}
		h.logger.Security(r.Context(), "auth.failure", map[string]any{
			"reason":      reason,
			"remote_addr": r.RemoteAddr,
			"path":        r.URL.Path,
		}, "medium")

		w.Header().Set("WWW-Authenticate", `Bearer realm="observa"`)
		respondError(w, r, http.StatusUnauthorized,
			&validation.APIError{Code: CodeUnauthorized, Message: "authentication required"}, nil)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Uptime      float64           `json:"uptime_seconds"`
	Breakers    map[string]string `json:"breakers,omitempty"`
}

// Health reports healthy, degraded when any SIEM breaker is open, or 503
// once the logger is shutting down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.logger.Stats()

	health := HealthStatus{
		Status:      "healthy",
		Environment: stats.Environment,
		Uptime:      time.Since(h.startTime).Seconds(),
		Breakers:    stats.Breakers,
	}
	for _, state := range stats.Breakers {
		if state == siem.StateOpen {
			health.Status = "degraded"
			break
		}
	}

	status := http.StatusOK
	if stats.ShuttingDown {
		health.Status = "shutting_down"
		status = http.StatusServiceUnavailable
	}
	respondData(w, r, status, health)
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.logger.Stats())
}
