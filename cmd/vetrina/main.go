// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/vetrina/internal/api"
	"github.com/autobrr/vetrina/internal/buildinfo"
	"github.com/autobrr/vetrina/internal/config"
	"github.com/autobrr/vetrina/internal/logger"
	"github.com/autobrr/vetrina/internal/metrics"
	"github.com/autobrr/vetrina/internal/ratelimit"
	"github.com/autobrr/vetrina/internal/services/catalog"
	"github.com/autobrr/vetrina/internal/services/filmtv"
	"github.com/autobrr/vetrina/internal/services/tmdb"
)

func main() {
	// A .env next to the binary is the easiest way to carry TMDB_API_KEY
	// in small deployments.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vetrina",
		Short: "FilmTV.it catalog addon backend",
		Long:  "Serves curated FilmTV.it movie lists as addon catalogs, enriched with TMDB metadata.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file or directory")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the addon server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildinfo.String())
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.New(configPath, buildinfo.Version)
	if err != nil {
		return err
	}

	logger.Setup(cfg.Config)

	log.Info().
		Str("version", buildinfo.Version).
		Int("port", cfg.Config.Port).
		Bool("tmdb_key_configured", cfg.Config.TMDBApiKey != "").
		Msg("Starting vetrina")

	cacheTTL := time.Duration(cfg.Config.CacheTTLMinutes) * time.Minute
	requestPool := ratelimit.NewPool(cfg.Config.MaxConcurrentRequests, time.Duration(cfg.Config.RequestDelayMs)*time.Millisecond)
	catalogPool := ratelimit.NewPool(cfg.Config.MaxConcurrentCatalogs, 0)

	scraper := filmtv.NewScraper(requestPool, cacheTTL)
	tmdbClient := tmdb.NewClient(cfg.Config.TMDBApiKey, requestPool, cacheTTL)
	catalogService := catalog.NewService(scraper, tmdbClient, catalogPool, cacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Config.RefreshEnabled {
		catalogService.StartRefresher(ctx, cfg.Config.CatalogFilterSpecs(), 5*time.Minute)
	}

	if cfg.Config.MetricsEnabled {
		manager := metrics.NewManager(requestPool, catalogPool)
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.Config.MetricsHost, cfg.Config.MetricsPort)
			if err := manager.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	server := api.NewServer(&api.Dependencies{
		Config:   cfg.Config,
		Catalogs: catalogService,
	})

	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info().Msg("Shutdown complete")
	return nil
}
