// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/vetrina/internal/domain"
)

const envPrefix = "VETRINA"

// AppConfig wraps the runtime configuration together with the viper
// instance that produced it.
type AppConfig struct {
	Config *domain.Config

	viper *viper.Viper
}

// New loads configuration from the given path (or the default location when
// empty), applying defaults and VETRINA__* environment overrides.
func New(configPath, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults(version)

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.Config.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *AppConfig) defaults(version string) {
	currentYear := time.Now().Year()

	c.Config = &domain.Config{
		Version: version,
	}

	c.viper.SetDefault("host", "0.0.0.0")
	c.viper.SetDefault("port", 7000)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("tmdbApiKey", "")
	c.viper.SetDefault("catalogYears", []int{currentYear, currentYear - 1, currentYear - 2})
	c.viper.SetDefault("catalogFilters", []string{})
	c.viper.SetDefault("cacheTTLMinutes", 60)
	c.viper.SetDefault("requestDelayMs", 150)
	c.viper.SetDefault("maxConcurrentRequests", 6)
	c.viper.SetDefault("maxConcurrentCatalogs", 3)
	c.viper.SetDefault("refreshEnabled", false)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	if configPath != "" {
		if fi, err := os.Stat(configPath); err == nil && fi.IsDir() {
			configPath = filepath.Join(configPath, "config.toml")
		}
		c.viper.SetConfigFile(configPath)
	} else {
		c.viper.SetConfigName("config")
		c.viper.AddConfigPath(".")
		c.viper.AddConfigPath("$HOME/.config/vetrina")
	}

	c.viper.SetEnvPrefix(envPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	c.viper.AutomaticEnv()
	c.bindEnvOverrides()

	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			log.Debug().Msg("No config file found, using defaults and environment")
		} else {
			return err
		}
	}

	return c.viper.Unmarshal(c.Config)
}

// bindEnvOverrides maps camelCase config keys to VETRINA__SNAKE_CASE env vars.
func (c *AppConfig) bindEnvOverrides() {
	bindings := map[string]string{
		"host":                  "VETRINA__HOST",
		"port":                  "VETRINA__PORT",
		"baseUrl":               "VETRINA__BASE_URL",
		"logLevel":              "VETRINA__LOG_LEVEL",
		"logPath":               "VETRINA__LOG_PATH",
		"tmdbApiKey":            "VETRINA__TMDB_API_KEY",
		"cacheTTLMinutes":       "VETRINA__CACHE_TTL_MINUTES",
		"requestDelayMs":        "VETRINA__REQUEST_DELAY_MS",
		"maxConcurrentRequests": "VETRINA__MAX_CONCURRENT_REQUESTS",
		"maxConcurrentCatalogs": "VETRINA__MAX_CONCURRENT_CATALOGS",
		"refreshEnabled":        "VETRINA__REFRESH_ENABLED",
		"metricsEnabled":        "VETRINA__METRICS_ENABLED",
		"metricsHost":           "VETRINA__METRICS_HOST",
		"metricsPort":           "VETRINA__METRICS_PORT",
	}
	for key, env := range bindings {
		if err := c.viper.BindEnv(key, env); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to bind environment variable")
		}
	}

	// TMDB_API_KEY without prefix matches the original deployment convention.
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		c.viper.Set("tmdbApiKey", v)
	}
}
