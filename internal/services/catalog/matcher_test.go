// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/vetrina/internal/services/tmdb"
)

func TestFindBestMatchExactFirstWins(t *testing.T) {
	t.Parallel()

	// The sequel is far more popular, but the first exact title+year hit in
	// result order must win.
	candidates := []tmdb.SearchCandidate{
		{ID: 1, Title: "Il Corvo", ReleaseDate: "1994-06-10", Popularity: 1.2},
		{ID: 2, Title: "Il Corvo 2", ReleaseDate: "1996-08-30", Popularity: 88.0},
	}

	match, score, ok := findBestMatch(candidates, "Il Corvo", 1994, "", 0)
	require.True(t, ok)
	assert.Equal(t, 1, match.ID)
	assert.Greater(t, score, exactMatchBonus)
}

func TestFindBestMatchScoreFloor(t *testing.T) {
	t.Parallel()

	// Only a loose substring overlap with no year agreement: nothing clears
	// the floor, so no match is better than a wrong match.
	candidates := []tmdb.SearchCandidate{
		{ID: 1, Title: "Il Corvo 2", ReleaseDate: "1996-08-30", Popularity: 50.0},
	}

	_, _, ok := findBestMatch(candidates, "Il Corvo", 1994, "", 0)
	assert.False(t, ok)
}

func TestFindBestMatchDecadeFallback(t *testing.T) {
	t.Parallel()

	// No exact year from the list page, only a decade window. The candidate
	// inside the window must be picked over the remake outside it.
	candidates := []tmdb.SearchCandidate{
		{ID: 1, Title: "Suspiria", ReleaseDate: "2018-10-11", Popularity: 40.0},
		{ID: 2, Title: "Suspiria", ReleaseDate: "1977-02-01", Popularity: 20.0},
	}

	match, _, ok := findBestMatch(candidates, "Suspiria", 0, "", 1970)
	require.True(t, ok)
	assert.Equal(t, 2, match.ID)
}

func TestFindBestMatchSkipsNonFeature(t *testing.T) {
	t.Parallel()

	candidates := []tmdb.SearchCandidate{
		{ID: 1, Title: "Making of Dune", ReleaseDate: "2021-09-15", Popularity: 10.0},
		{ID: 2, Title: "Dune", ReleaseDate: "2021-09-15", Popularity: 90.0},
	}

	match, _, ok := findBestMatch(candidates, "Dune", 2021, "", 0)
	require.True(t, ok)
	assert.Equal(t, 2, match.ID)
}

func TestFindBestMatchOriginalTitleOutranksLocalized(t *testing.T) {
	t.Parallel()

	// When the list page carries an original title, a candidate matching it
	// exactly beats one that only matches the localized search title.
	candidates := []tmdb.SearchCandidate{
		{ID: 1, Title: "Il Corvo", OriginalTitle: "The Crow", ReleaseDate: "1994-06-10", Popularity: 3.0},
	}

	match, score, ok := findBestMatch(candidates, "Il Corvo", 1994, "The Crow", 0)
	require.True(t, ok)
	assert.Equal(t, 1, match.ID)
	assert.GreaterOrEqual(t, score, exactMatchBonus+200)
}

func TestFindBestMatchYearTolerance(t *testing.T) {
	t.Parallel()

	// Festival releases often land one year off the list's label.
	candidates := []tmdb.SearchCandidate{
		{ID: 1, Title: "Perfect Days", ReleaseDate: "2023-12-21", Popularity: 5.0},
	}

	match, _, ok := findBestMatch(candidates, "Perfect Days", 2024, "", 0)
	require.True(t, ok)
	assert.Equal(t, 1, match.ID)
}

func TestFindBestMatchEmptyCandidates(t *testing.T) {
	t.Parallel()

	_, _, ok := findBestMatch(nil, "Il Corvo", 1994, "", 0)
	assert.False(t, ok)
}

func TestFindBestMatchSubstringNeedsYearAgreement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		releaseDate string
		wantMatch   bool
	}{
		{name: "same year accepted", releaseDate: "1994-01-01", wantMatch: true},
		{name: "distant year rejected", releaseDate: "2010-01-01", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := []tmdb.SearchCandidate{
				{ID: 1, Title: "Il Corvo - Il film", ReleaseDate: tt.releaseDate, Popularity: 60.0},
			}
			_, _, ok := findBestMatch(candidates, "Il Corvo", 1994, "", 0)
			assert.Equal(t, tt.wantMatch, ok)
		})
	}
}

func TestYearScoreDecadeMidpoint(t *testing.T) {
	t.Parallel()

	// The midpoint of the decade scores higher than its edges.
	mid := yearScore(1995, 0, 1990)
	edge := yearScore(1990, 0, 1990)
	assert.Greater(t, mid, edge)
	assert.GreaterOrEqual(t, edge, 15.0)
}
