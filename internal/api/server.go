// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/vetrina/internal/api/handlers"
	"github.com/autobrr/vetrina/internal/api/middleware"
	"github.com/autobrr/vetrina/internal/domain"
	"github.com/autobrr/vetrina/pkg/httphelpers"
)

// Dependencies carries everything the HTTP layer needs.
type Dependencies struct {
	Config   *domain.Config
	Catalogs handlers.CatalogService
}

type Server struct {
	cfg    *domain.Config
	router chi.Router
}

// NewServer assembles the router. Addon endpoints are wide open to CORS:
// Stremio clients load the manifest and catalogs cross-origin from web
// players and apps alike.
func NewServer(deps *Dependencies) *Server {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	addonHandler := handlers.NewAddonHandler(deps.Catalogs, deps.Config)
	configHandler := handlers.NewConfigHandler(deps.Catalogs)
	healthHandler := handlers.NewHealthHandler()

	basePath := httphelpers.NormalizeBasePath(deps.Config.BaseURL)
	mount := func(r chi.Router) {
		r.Group(addonHandler.Routes)
		r.Route("/api", func(r chi.Router) {
			r.Group(healthHandler.Routes)
			r.Route("/config", configHandler.Routes)
		})
	}
	if basePath == "" {
		mount(r)
	} else {
		r.Route(basePath, mount)
	}

	return &Server{
		cfg:    deps.Config,
		router: r,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops or ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting addon server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
