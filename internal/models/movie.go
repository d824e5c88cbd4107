// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "regexp"

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

// ValidIMDbID reports whether id matches the canonical IMDb identifier
// format ("tt" followed by digits).
func ValidIMDbID(id string) bool {
	return imdbIDPattern.MatchString(id)
}

// ScrapedMovie is a single entry lifted from a FilmTV.it list page. It only
// lives for the duration of one catalog resolution.
type ScrapedMovie struct {
	Title string
	// Year is the release year implied by the list filter, 0 when the
	// filter only pins a decade.
	Year int
	// DecadeStart is the first year of the decade window implied by the
	// filter, 0 when unknown.
	DecadeStart int
	// FilmTVRating is the 0-10 critic rating shown on the list page, nil
	// when the page carries none.
	FilmTVRating *float64
	// OriginalTitle is the non-Italian original title when the page shows
	// one, empty otherwise.
	OriginalTitle string
}

// Movie is a fully resolved catalog entry: a FilmTV list item reconciled
// against TMDB and keyed by its IMDb id. Movies without a valid IMDb id are
// never constructed (see catalog.Service).
type Movie struct {
	ImdbID         string   `json:"imdbId"`
	Title          string   `json:"title"`
	Poster         string   `json:"poster,omitempty"`
	Backdrop       string   `json:"backdrop,omitempty"`
	Description    string   `json:"description,omitempty"`
	ReleaseYear    int      `json:"releaseYear,omitempty"`
	AverageRating  float64  `json:"averageRating,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	RuntimeMinutes int      `json:"runtimeMinutes,omitempty"`
	Country        string   `json:"country,omitempty"`
	FilmTVRating   *float64 `json:"filmtvRating,omitempty"`
}
