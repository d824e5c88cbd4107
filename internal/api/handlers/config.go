// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ConfigHandler exposes runtime credential configuration: the TMDB api key
// can be supplied after startup instead of via config file or environment.
type ConfigHandler struct {
	catalogs CatalogService
}

func NewConfigHandler(catalogs CatalogService) *ConfigHandler {
	return &ConfigHandler{catalogs: catalogs}
}

func (h *ConfigHandler) Routes(r chi.Router) {
	r.Put("/tmdb-key", h.setTMDBKey)
}

type tmdbKeyRequest struct {
	APIKey string `json:"apiKey"`
}

func (h *ConfigHandler) setTMDBKey(w http.ResponseWriter, r *http.Request) {
	var req tmdbKeyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		RespondError(w, http.StatusBadRequest, "apiKey is required")
		return
	}

	h.catalogs.SetAPIKey(req.APIKey)
	log.Info().Msg("TMDB api key updated")

	RespondJSON(w, http.StatusNoContent, nil)
}
