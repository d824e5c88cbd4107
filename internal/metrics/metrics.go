// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counters are package level so the collaborator clients can increment them
// without holding a Manager; they only become visible once a Manager
// registers them.
var (
	ScrapeRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetrina_filmtv_requests_total",
		Help: "Total number of HTTP requests sent to FilmTV.it",
	})

	TMDBRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetrina_tmdb_requests_total",
		Help: "Total number of HTTP requests sent to the TMDB API",
	})

	CatalogResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vetrina_catalog_resolutions_total",
		Help: "Catalog resolutions by result (hit, miss)",
	}, []string{"result"})

	MoviesNotFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetrina_movies_not_found_total",
		Help: "Scraped titles that could not be matched on TMDB",
	})

	MoviesMissingIMDbID = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vetrina_movies_missing_imdb_id_total",
		Help: "Matched movies discarded because TMDB has no valid IMDb id for them",
	})
)
