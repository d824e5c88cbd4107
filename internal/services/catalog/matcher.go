// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package catalog

import (
	"math"
	"strings"

	"github.com/autobrr/vetrina/internal/services/tmdb"
)

// nonFeatureMarkers identify search results that are companion material
// rather than the feature itself; these rarely carry IMDb ids and would
// otherwise shadow the real movie.
var nonFeatureMarkers = []string{
	"making of",
	"behind the scenes",
	"documentary",
	"trailer",
}

// minMatchScore is the floor below which a scored match is rejected. A weak
// partial match (sequel, remake, loose substring overlap) must not be
// silently accepted; returning no match lets the caller try another search
// strategy instead.
const minMatchScore = 50.0

// exactMatchBonus lifts exact-pass results above anything the scored pass
// can produce, so the resolver can compare matches from different search
// labels on score alone.
const exactMatchBonus = 500.0

// findBestMatch selects the TMDB candidate that best matches a scraped
// title, or reports no match. searchYear and decadeStart are 0 when
// unknown; originalTitle is empty when the list page showed none.
//
// The exact pass runs first and accepts the first candidate in result order
// whose title matches exactly and whose release year is plausible; this
// deliberately skips the scoring heuristic so popularity noise cannot
// misrank a perfect hit. Only when the exact pass finds nothing does the
// scored fallback run.
func findBestMatch(candidates []tmdb.SearchCandidate, searchTitle string, searchYear int, originalTitle string, decadeStart int) (tmdb.SearchCandidate, float64, bool) {
	if match, score, ok := findExactMatch(candidates, searchTitle, searchYear, originalTitle, decadeStart); ok {
		return match, score, true
	}
	return findScoredMatch(candidates, searchTitle, searchYear, originalTitle, decadeStart)
}

func findExactMatch(candidates []tmdb.SearchCandidate, searchTitle string, searchYear int, originalTitle string, decadeStart int) (tmdb.SearchCandidate, float64, bool) {
	for _, candidate := range candidates {
		if isNonFeature(candidate.Title) {
			continue
		}

		matchesOriginal := originalTitle != "" && titleEquals(candidate, originalTitle)
		if !matchesOriginal && !titleEquals(candidate, searchTitle) {
			continue
		}

		releaseYear := candidate.ReleaseYear()
		switch {
		case searchYear > 0 && releaseYear == searchYear:
		case searchYear == 0 && decadeStart > 0 && inDecade(releaseYear, decadeStart):
		case searchYear > 0 && releaseYear > 0 && abs(releaseYear-searchYear) <= 1:
		case searchYear == 0 && decadeStart == 0 && releaseYear == 0:
		default:
			continue
		}

		score := exactMatchBonus + yearScore(releaseYear, searchYear, decadeStart) + math.Min(candidate.Popularity, 5)
		if matchesOriginal {
			score += 200
		} else {
			score += 100
		}
		return candidate, score, true
	}

	return tmdb.SearchCandidate{}, 0, false
}

func findScoredMatch(candidates []tmdb.SearchCandidate, searchTitle string, searchYear int, originalTitle string, decadeStart int) (tmdb.SearchCandidate, float64, bool) {
	var best tmdb.SearchCandidate
	bestScore := -1.0

	for _, candidate := range candidates {
		if isNonFeature(candidate.Title) {
			continue
		}

		releaseYear := candidate.ReleaseYear()
		score := 0.0

		switch {
		case originalTitle != "" && titleEquals(candidate, originalTitle):
			score += 200
		case titleEquals(candidate, searchTitle):
			score += 100
		case titleContains(candidate, searchTitle):
			// A substring overlap is only meaningful when the release
			// year roughly lines up; otherwise sequels and remakes with
			// overlapping names slip through.
			switch {
			case searchYear > 0 && releaseYear > 0 && abs(releaseYear-searchYear) <= 2:
				score += 30
			case decadeStart > 0 && inDecade(releaseYear, decadeStart):
				score += 20
			default:
				continue
			}
		}

		score += yearScore(releaseYear, searchYear, decadeStart)
		score += math.Min(candidate.Popularity, 5)

		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if bestScore <= minMatchScore {
		return tmdb.SearchCandidate{}, 0, false
	}
	return best, bestScore, true
}

func yearScore(releaseYear, searchYear, decadeStart int) float64 {
	switch {
	case searchYear > 0 && releaseYear == searchYear:
		return 30
	case searchYear > 0 && releaseYear > 0 && abs(releaseYear-searchYear) <= 1:
		return 10
	case searchYear == 0 && decadeStart > 0 && inDecade(releaseYear, decadeStart):
		// Inside the decade window, closeness to the midpoint is worth a
		// small extra nudge.
		midpoint := float64(decadeStart) + 4.5
		bonus := math.Max(0, 5-math.Abs(float64(releaseYear)-midpoint))
		return 15 + bonus
	default:
		return 0
	}
}

func titleEquals(candidate tmdb.SearchCandidate, title string) bool {
	return strings.EqualFold(candidate.Title, title) || strings.EqualFold(candidate.OriginalTitle, title)
}

func titleContains(candidate tmdb.SearchCandidate, title string) bool {
	searchLower := strings.ToLower(title)
	for _, candidateTitle := range []string{candidate.Title, candidate.OriginalTitle} {
		if candidateTitle == "" {
			continue
		}
		candidateLower := strings.ToLower(candidateTitle)
		if strings.Contains(candidateLower, searchLower) || strings.Contains(searchLower, candidateLower) {
			return true
		}
	}
	return false
}

func isNonFeature(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range nonFeatureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func inDecade(year, decadeStart int) bool {
	return year >= decadeStart && year <= decadeStart+9
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
