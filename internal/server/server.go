// Package server assembles the HTTP router for the payorch admin surface.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payorch/payorch-backend-sqs/internal/api"
	"github.com/payorch/payorch-backend-sqs/internal/metrics"
	"github.com/payorch/payorch-backend-sqs/internal/routing"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// NewRouter creates and configures the HTTP router with all routes.
func NewRouter(store state.Store, routingStore *routing.Store, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(api.RequestID)
	r.Use(api.RequestLogger(logger))
	r.Use(api.ValidateContentType)

	// Optional API key authentication
	if cfg.APIKey != "" {
		r.Use(api.KeyAuth(cfg.APIKey, "/metrics", "/v1/health"))
	}

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	systemHandler := api.NewSystemHandler(store)
	routingHandler := api.NewRoutingHandler(routingStore, store)

	r.Get("/v1/health", systemHandler.Health)

	r.Get("/v1/routing/{merchant_id}", routingHandler.GetDictionary)
	r.Post("/v1/routing/{merchant_id}", routingHandler.Create)
	r.Post("/v1/routing/{merchant_id}/{algorithm_id}/activate", routingHandler.Activate)
	r.Get("/v1/routing/{merchant_id}/default", routingHandler.GetDefaults)
	r.Post("/v1/routing/{merchant_id}/default", routingHandler.UpdateDefaults)

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := metricRoutePattern(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, fmt.Sprintf("%d", ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func metricRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
