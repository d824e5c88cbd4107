// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/vetrina/internal/domain"
	"github.com/autobrr/vetrina/internal/models"
)

const metahubLogoURL = "https://images.metahub.space/logo/medium/%s/img"

// CatalogService is the slice of the catalog resolver the addon surface
// needs.
type CatalogService interface {
	Resolve(ctx context.Context, filterSpec string) []models.Movie
	ResolveByIMDbID(ctx context.Context, imdbID string) (models.Movie, bool)
	SetAPIKey(key string)
}

// AddonHandler serves the addon protocol: manifest, catalogs, meta.
type AddonHandler struct {
	catalogs CatalogService
	cfg      *domain.Config

	// catalogFilters maps advertised catalog ids to FilmTV filter specs.
	catalogFilters map[string]string
	catalogOrder   []manifestCatalog
}

type manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Resources   []string          `json:"resources"`
	Types       []string          `json:"types"`
	Catalogs    []manifestCatalog `json:"catalogs"`
	IDPrefixes  []string          `json:"idPrefixes"`
}

type manifestCatalog struct {
	Type  string       `json:"type"`
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Extra []extraField `json:"extra,omitempty"`
}

type extraField struct {
	Name       string `json:"name"`
	IsRequired bool   `json:"isRequired"`
}

// stremioMeta is the wire shape of one catalog entry.
type stremioMeta struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Poster       string   `json:"poster,omitempty"`
	PosterShape  string   `json:"posterShape,omitempty"`
	Background   string   `json:"background,omitempty"`
	Logo         string   `json:"logo,omitempty"`
	Description  string   `json:"description,omitempty"`
	ReleaseInfo  string   `json:"releaseInfo,omitempty"`
	IMDbRating   string   `json:"imdbRating,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	Runtime      string   `json:"runtime,omitempty"`
	Country      string   `json:"country,omitempty"`
	FilmTVRating *float64 `json:"filmtvRating,omitempty"`
}

type catalogResponse struct {
	Metas []stremioMeta `json:"metas"`
}

type metaResponse struct {
	Meta *stremioMeta `json:"meta"`
}

// NewAddonHandler builds the addon surface from the configured catalogs.
func NewAddonHandler(catalogs CatalogService, cfg *domain.Config) *AddonHandler {
	h := &AddonHandler{
		catalogs:       catalogs,
		cfg:            cfg,
		catalogFilters: make(map[string]string),
	}

	extra := []extraField{{Name: "skip"}, {Name: "search"}}
	for _, spec := range cfg.CatalogFilterSpecs() {
		id, name := catalogIdentity(spec)
		h.catalogFilters[id] = spec
		h.catalogOrder = append(h.catalogOrder, manifestCatalog{
			Type:  "movie",
			ID:    id,
			Name:  name,
			Extra: extra,
		})
	}

	return h
}

// catalogIdentity derives the advertised catalog id and display name from a
// filter spec. Year filters keep the historic "filmtv-best-<year>" ids.
func catalogIdentity(filterSpec string) (id, name string) {
	if strings.HasPrefix(filterSpec, "anno-") && !strings.Contains(filterSpec, "/") {
		year := strings.TrimPrefix(filterSpec, "anno-")
		return "filmtv-best-" + year, "FilmTV.it - Best of " + year
	}
	slug := strings.NewReplacer("/", "-", "_", "-").Replace(filterSpec)
	return "filmtv-" + slug, "FilmTV.it - " + strings.ReplaceAll(slug, "-", " ")
}

func (h *AddonHandler) Routes(r chi.Router) {
	r.Get("/manifest.json", h.getManifest)
	r.Get("/catalog/{type}/{id}.json", h.getCatalog)
	r.Get("/catalog/{type}/{id}/{extra}.json", h.getCatalog)
	r.Get("/meta/{type}/{id}.json", h.getMeta)
}

func (h *AddonHandler) getManifest(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, manifest{
		ID:          "community.filmtv.it",
		Version:     h.cfg.Version,
		Name:        "FilmTV.it Lists",
		Description: "Browse curated movie lists from FilmTV.it including best movies by year",
		Resources:   []string{"catalog", "meta"},
		Types:       []string{"movie"},
		Catalogs:    h.catalogOrder,
		IDPrefixes:  []string{"tt"},
	})
}

func (h *AddonHandler) getCatalog(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "type") != "movie" {
		RespondJSON(w, http.StatusOK, catalogResponse{Metas: []stremioMeta{}})
		return
	}

	catalogID := chi.URLParam(r, "id")
	filterSpec, ok := h.catalogFilters[catalogID]
	if !ok {
		log.Debug().Str("catalog", catalogID).Msg("Unknown catalog requested")
		RespondJSON(w, http.StatusOK, catalogResponse{Metas: []stremioMeta{}})
		return
	}

	skip, search := parseExtra(chi.URLParam(r, "extra"))

	movies := h.catalogs.Resolve(r.Context(), filterSpec)

	if search != "" {
		movies = filterBySearch(movies, search)
	}
	if skip > 0 {
		if skip >= len(movies) {
			movies = nil
		} else {
			movies = movies[skip:]
		}
	}

	metas := make([]stremioMeta, 0, len(movies))
	for _, movie := range movies {
		metas = append(metas, toStremioMeta(movie))
	}
	RespondJSON(w, http.StatusOK, catalogResponse{Metas: metas})
}

func (h *AddonHandler) getMeta(w http.ResponseWriter, r *http.Request) {
	imdbID := chi.URLParam(r, "id")
	if chi.URLParam(r, "type") != "movie" || !models.ValidIMDbID(imdbID) {
		RespondJSON(w, http.StatusOK, metaResponse{})
		return
	}

	movie, found := h.catalogs.ResolveByIMDbID(r.Context(), imdbID)
	if !found {
		RespondJSON(w, http.StatusOK, metaResponse{})
		return
	}

	meta := toStremioMeta(movie)
	RespondJSON(w, http.StatusOK, metaResponse{Meta: &meta})
}

// parseExtra parses the url-encoded extra path segment ("skip=20",
// "search=corvo&skip=0").
func parseExtra(extra string) (skip int, search string) {
	if extra == "" {
		return 0, ""
	}
	if unescaped, err := url.PathUnescape(extra); err == nil {
		extra = unescaped
	}
	values, err := url.ParseQuery(extra)
	if err != nil {
		return 0, ""
	}
	skip, _ = strconv.Atoi(values.Get("skip"))
	if skip < 0 {
		skip = 0
	}
	return skip, strings.TrimSpace(values.Get("search"))
}

// filterBySearch keeps movies whose title loosely matches the query,
// catalog order preserved.
func filterBySearch(movies []models.Movie, query string) []models.Movie {
	matched := make([]models.Movie, 0, len(movies))
	for _, movie := range movies {
		if fuzzy.MatchNormalizedFold(query, movie.Title) {
			matched = append(matched, movie)
		}
	}
	return matched
}

func toStremioMeta(movie models.Movie) stremioMeta {
	meta := stremioMeta{
		ID:           movie.ImdbID,
		Type:         "movie",
		Name:         movie.Title,
		Poster:       movie.Poster,
		PosterShape:  "poster",
		Background:   movie.Backdrop,
		Logo:         fmt.Sprintf(metahubLogoURL, movie.ImdbID),
		Description:  movie.Description,
		Genres:       movie.Genres,
		Country:      movie.Country,
		FilmTVRating: movie.FilmTVRating,
	}
	if movie.ReleaseYear > 0 {
		meta.ReleaseInfo = strconv.Itoa(movie.ReleaseYear)
	}
	if movie.AverageRating > 0 {
		meta.IMDbRating = strconv.FormatFloat(movie.AverageRating, 'f', 1, 64)
	}
	if movie.RuntimeMinutes > 0 {
		meta.Runtime = fmt.Sprintf("%d min", movie.RuntimeMinutes)
	}
	return meta
}
