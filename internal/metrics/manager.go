// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/vetrina/internal/ratelimit"
)

type Manager struct {
	registry *prometheus.Registry
}

// NewManager builds a registry carrying the application counters, runtime
// collectors, and live gauges for the two rate-limit pools.
func NewManager(requestPool, catalogPool *ratelimit.Pool) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(ScrapeRequests, TMDBRequests, CatalogResolutions, MoviesNotFound, MoviesMissingIMDbID)

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vetrina_request_pool_active",
		Help: "Outbound HTTP operations currently holding a request pool slot",
	}, func() float64 { return float64(requestPool.Active()) }))

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vetrina_catalog_pool_active",
		Help: "Catalog resolutions currently holding a catalog pool slot",
	}, func() float64 { return float64(catalogPool.Active()) }))

	return &Manager{registry: registry}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// ListenAndServe exposes /metrics on its own listener. Blocks until the
// server fails.
func (m *Manager) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting metrics server")
	return srv.ListenAndServe()
}
