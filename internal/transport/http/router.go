package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fiscalcli/internal/config"
	custommw "fiscalcli/internal/middleware"
)

// RouterDeps bundles everything the HTTP surface needs
type RouterDeps struct {
	Snapshots SnapshotReader
	Scenarios ScenarioEvaluator
	Registry  *prometheus.Registry
	Logger    *slog.Logger
	Server    config.ServerConfig
	Version   string
}

// NewRouter assembles the full route tree with the standard middleware
// chain: request id, real IP, structured logging, recovery, compression,
// security headers, and a global rate limit.
func NewRouter(deps RouterDeps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(logger))
	r.Use(custommw.Recoverer(logger))
	r.Use(custommw.Compress(5))
	r.Use(custommw.SecurityHeaders)

	if deps.Server.RateLimitRPS > 0 {
		limiter := custommw.NewRateLimiter(deps.Server.RateLimitRPS, deps.Server.RateLimitBurst, logger)
		r.Use(limiter.Handler)
	}

	r.Route("/api", func(api chi.Router) {
		snap := NewSnapshotHandler(deps.Snapshots, logger)
		api.Get("/ratios", snap.GetRatios)
		api.Get("/drivers", snap.GetDrivers)
		api.Get("/anomalies", snap.GetAnomalies)
		api.Get("/forecasts", snap.GetForecasts)
		api.Get("/quality", snap.GetQuality)

		api.Mount("/scenario", NewScenarioHandler(deps.Scenarios, logger).Routes())

		health := NewHealthHandler(deps.Snapshots, deps.Version)
		api.Get("/health", health.Health)
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
