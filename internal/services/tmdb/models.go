// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tmdb

import "strconv"

// SearchCandidate is a single /search/movie result.
type SearchCandidate struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	Popularity    float64 `json:"popularity"`
}

// ReleaseYear parses the year out of the release date, returning 0 when the
// date is absent or malformed.
func (c SearchCandidate) ReleaseYear() int {
	if len(c.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(c.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

type searchResponse struct {
	Results []SearchCandidate `json:"results"`
}

type findResponse struct {
	MovieResults []SearchCandidate `json:"movie_results"`
}

// MovieDetails is the full /movie/{id} record with external ids appended.
type MovieDetails struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	ReleaseDate   string  `json:"release_date"`
	VoteAverage   float64 `json:"vote_average"`
	Runtime       int     `json:"runtime"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCountries []struct {
		ISO31661 string `json:"iso_3166_1"`
	} `json:"production_countries"`
	ExternalIDs struct {
		IMDbID string `json:"imdb_id"`
	} `json:"external_ids"`
}

// IMDbID returns the movie's IMDb identifier, empty when TMDB does not know
// one. Absence is a valid outcome, not an error.
func (d MovieDetails) IMDbID() string {
	return d.ExternalIDs.IMDbID
}

// ReleaseYear parses the year out of the release date, 0 when unknown.
func (d MovieDetails) ReleaseYear() int {
	if len(d.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(d.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// GenreNames flattens the genre list.
func (d MovieDetails) GenreNames() []string {
	if len(d.Genres) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Country returns the first production country code, empty when unknown.
func (d MovieDetails) Country() string {
	if len(d.ProductionCountries) == 0 {
		return ""
	}
	return d.ProductionCountries[0].ISO31661
}
