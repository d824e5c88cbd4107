// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"sort"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	// TMDBApiKey can be set here, via VETRINA__TMDB_API_KEY, or at runtime
	// through the configure endpoint. Catalog resolution returns empty lists
	// until a key is available.
	TMDBApiKey string `toml:"tmdbApiKey" mapstructure:"tmdbApiKey"`

	// CatalogYears are the "best of year" lists advertised in the manifest.
	CatalogYears []int `toml:"catalogYears" mapstructure:"catalogYears"`
	// CatalogFilters are extra FilmTV filter specs advertised as catalogs,
	// for example "genere-horror/anno-2024" or "decennio-1990".
	CatalogFilters []string `toml:"catalogFilters" mapstructure:"catalogFilters"`

	CacheTTLMinutes       int  `toml:"cacheTTLMinutes" mapstructure:"cacheTTLMinutes"`
	RequestDelayMs        int  `toml:"requestDelayMs" mapstructure:"requestDelayMs"`
	MaxConcurrentRequests int  `toml:"maxConcurrentRequests" mapstructure:"maxConcurrentRequests"`
	MaxConcurrentCatalogs int  `toml:"maxConcurrentCatalogs" mapstructure:"maxConcurrentCatalogs"`
	RefreshEnabled        bool `toml:"refreshEnabled" mapstructure:"refreshEnabled"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("maxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	if c.MaxConcurrentCatalogs <= 0 {
		return fmt.Errorf("maxConcurrentCatalogs must be positive, got %d", c.MaxConcurrentCatalogs)
	}
	if c.CacheTTLMinutes <= 0 {
		return fmt.Errorf("cacheTTLMinutes must be positive, got %d", c.CacheTTLMinutes)
	}
	for _, year := range c.CatalogYears {
		if year < 1900 || year > 2100 {
			return fmt.Errorf("invalid catalog year: %d", year)
		}
	}
	return nil
}

// CatalogFilterSpecs returns every filter spec the manifest advertises,
// year catalogs first (newest year first), then the extra filters in
// configured order.
func (c *Config) CatalogFilterSpecs() []string {
	years := make([]int, len(c.CatalogYears))
	copy(years, c.CatalogYears)
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	specs := make([]string, 0, len(years)+len(c.CatalogFilters))
	for _, year := range years {
		specs = append(specs, fmt.Sprintf("anno-%d", year))
	}
	specs = append(specs, c.CatalogFilters...)
	return specs
}
