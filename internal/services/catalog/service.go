// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package catalog resolves FilmTV list filters into finished catalogs:
// scrape, match each title against TMDB, enrich with full metadata, cache.
// A caller of Resolve never sees an error; upstream failures degrade to an
// empty (and cached) list, which is the only sensible behavior for a
// catalog feed consumed by an addon client.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/vetrina/internal/metrics"
	"github.com/autobrr/vetrina/internal/models"
	"github.com/autobrr/vetrina/internal/ratelimit"
	"github.com/autobrr/vetrina/internal/services/tmdb"
)

// entryBatchSize bounds how many scraped entries resolve concurrently
// within one catalog, on top of the request pool's own cap.
const entryBatchSize = 8

// Scraper is the scrape collaborator contract (see filmtv.Scraper).
type Scraper interface {
	Scrape(ctx context.Context, filterSpec string) ([]models.ScrapedMovie, error)
}

// MetadataClient is the metadata collaborator contract (see tmdb.Client).
type MetadataClient interface {
	Search(ctx context.Context, query string, year int) ([]tmdb.SearchCandidate, error)
	MovieDetails(ctx context.Context, id int) (tmdb.MovieDetails, error)
	FindByIMDbID(ctx context.Context, imdbID string) ([]tmdb.SearchCandidate, error)
	SetAPIKey(key string)
	HasAPIKey() bool
}

type Service struct {
	scraper     Scraper
	metadata    MetadataClient
	catalogPool *ratelimit.Pool
	cacheTTL    time.Duration

	catalogCache *ttlcache.Cache[string, []models.Movie]
	group        singleflight.Group

	// storedAt tracks every key ever written to the catalog cache, for
	// FindByIMDbID scans and for the proactive refresher; the cache itself
	// does not expose key enumeration or entry age.
	mu       sync.Mutex
	storedAt map[string]time.Time
}

// NewService creates a catalog resolver. cacheTTL is the catalog tier TTL;
// the response tier lives inside the collaborators.
func NewService(scraper Scraper, metadata MetadataClient, catalogPool *ratelimit.Pool, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Service{
		scraper:     scraper,
		metadata:    metadata,
		catalogPool: catalogPool,
		cacheTTL:    cacheTTL,
		catalogCache: ttlcache.New(ttlcache.Options[string, []models.Movie]{}.
			SetDefaultTTL(cacheTTL)),
		storedAt: make(map[string]time.Time),
	}
}

// SetAPIKey updates the process-wide TMDB credential.
func (s *Service) SetAPIKey(key string) {
	s.metadata.SetAPIKey(key)
}

func cacheKey(filterSpec string) string {
	return "catalog_" + filterSpec
}

// Resolve returns the finished catalog for a filter spec. Results are
// served from the catalog cache when fresh; otherwise exactly one
// resolution runs per key regardless of how many callers arrive while it
// is in flight, and all of them receive the same list.
func (s *Service) Resolve(ctx context.Context, filterSpec string) []models.Movie {
	key := cacheKey(filterSpec)

	if movies, ok := s.catalogCache.Get(key); ok {
		metrics.CatalogResolutions.WithLabelValues("hit").Inc()
		log.Debug().Str("filter", filterSpec).Int("count", len(movies)).Msg("Catalog cache hit")
		return movies
	}

	metrics.CatalogResolutions.WithLabelValues("miss").Inc()
	return s.resolveShared(ctx, key, filterSpec)
}

// resolveShared funnels all concurrent callers for one key into a single
// resolution. The shared task is detached from the first caller's
// cancellation: an abandoning caller simply stops waiting.
func (s *Service) resolveShared(ctx context.Context, key, filterSpec string) []models.Movie {
	result, _, shared := s.group.Do(key, func() (any, error) {
		taskCtx := context.WithoutCancel(ctx)

		movies := []models.Movie{}
		err := s.catalogPool.Do(taskCtx, func(ctx context.Context) error {
			movies = s.resolveFresh(ctx, filterSpec)
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("filter", filterSpec).Msg("Catalog resolution aborted")
			movies = []models.Movie{}
		}

		s.store(key, movies)
		return movies, nil
	})
	if shared {
		log.Debug().Str("filter", filterSpec).Msg("Joined in-flight catalog resolution")
	}

	return result.([]models.Movie)
}

func (s *Service) store(key string, movies []models.Movie) {
	s.catalogCache.Set(key, movies, ttlcache.DefaultTTL)
	s.mu.Lock()
	s.storedAt[key] = time.Now()
	s.mu.Unlock()
}

// resolveFresh scrapes the list and resolves every entry. Failures of
// individual entries or of the scrape itself reduce the result, never
// abort it.
func (s *Service) resolveFresh(ctx context.Context, filterSpec string) []models.Movie {
	start := time.Now()

	entries, err := s.scraper.Scrape(ctx, filterSpec)
	if err != nil {
		log.Error().Err(err).Str("filter", filterSpec).Msg("Scrape failed, returning empty catalog")
		return []models.Movie{}
	}
	if len(entries) == 0 {
		log.Info().Str("filter", filterSpec).Msg("No movies scraped for filter")
		return []models.Movie{}
	}

	var notFound, missingID atomic.Int64
	resolved := make([]*models.Movie, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(entryBatchSize)
	for i, entry := range entries {
		g.Go(func() error {
			resolved[i] = s.resolveEntry(gctx, entry, &notFound, &missingID)
			return nil
		})
	}
	_ = g.Wait()

	movies := make([]models.Movie, 0, len(entries))
	for _, movie := range resolved {
		if movie != nil {
			movies = append(movies, *movie)
		}
	}

	log.Info().
		Str("filter", filterSpec).
		Int("scraped", len(entries)).
		Int("resolved", len(movies)).
		Int64("not_found", notFound.Load()).
		Int64("missing_imdb_id", missingID.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("Resolved catalog")

	return movies
}

// resolveEntry turns one scraped entry into a finished movie, or nil when
// the entry cannot be matched or lacks a valid IMDb id. Any error along the
// way counts as not found for this entry only.
func (s *Service) resolveEntry(ctx context.Context, entry models.ScrapedMovie, notFound, missingID *atomic.Int64) *models.Movie {
	candidate, ok := s.matchEntry(ctx, entry)
	if !ok {
		notFound.Add(1)
		metrics.MoviesNotFound.Inc()
		log.Debug().Str("title", entry.Title).Msg("No TMDB match for scraped title")
		return nil
	}

	details, err := s.metadata.MovieDetails(ctx, candidate.ID)
	if err != nil {
		notFound.Add(1)
		metrics.MoviesNotFound.Inc()
		log.Debug().Err(err).Str("title", entry.Title).Int("tmdb_id", candidate.ID).Msg("Failed to fetch movie details")
		return nil
	}

	if !models.ValidIMDbID(details.IMDbID()) {
		missingID.Add(1)
		metrics.MoviesMissingIMDbID.Inc()
		log.Debug().Str("title", details.Title).Int("tmdb_id", details.ID).Msg("Movie has no valid IMDb id, discarding")
		return nil
	}

	movie := buildMovie(details, entry.FilmTVRating)
	return &movie
}

// matchEntry searches TMDB under the scraped title and, when present and
// distinct, the original title in parallel, then picks whichever label
// produced the stronger match. When neither matches, one last search runs
// on the original title without a year constraint; that result is only
// accepted on an exact title match with a plausible release year.
func (s *Service) matchEntry(ctx context.Context, entry models.ScrapedMovie) (tmdb.SearchCandidate, bool) {
	searchOriginal := entry.OriginalTitle != "" && !strings.EqualFold(entry.OriginalTitle, entry.Title)

	var titleResults, originalResults []tmdb.SearchCandidate
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		titleResults = s.search(ctx, entry.Title, entry.Year)
	}()
	if searchOriginal {
		wg.Add(1)
		go func() {
			defer wg.Done()
			originalResults = s.search(ctx, entry.OriginalTitle, entry.Year)
		}()
	}
	wg.Wait()

	best, bestScore, found := findBestMatch(titleResults, entry.Title, entry.Year, entry.OriginalTitle, entry.DecadeStart)
	if searchOriginal {
		if match, score, ok := findBestMatch(originalResults, entry.Title, entry.Year, entry.OriginalTitle, entry.DecadeStart); ok && (!found || score > bestScore) {
			best, bestScore, found = match, score, true
		}
	}
	if found {
		return best, true
	}

	if entry.OriginalTitle == "" {
		return tmdb.SearchCandidate{}, false
	}

	// Unconstrained retry: no year filter on the search, so only an exact
	// title match with a year anchored to what we know is acceptable.
	for _, candidate := range s.search(ctx, entry.OriginalTitle, 0) {
		if isNonFeature(candidate.Title) || !titleEquals(candidate, entry.OriginalTitle) {
			continue
		}
		releaseYear := candidate.ReleaseYear()
		switch {
		case entry.Year > 0 && releaseYear > 0 && abs(releaseYear-entry.Year) <= 2:
		case entry.Year == 0 && entry.DecadeStart > 0 && inDecade(releaseYear, entry.DecadeStart):
		default:
			continue
		}
		return candidate, true
	}

	return tmdb.SearchCandidate{}, false
}

// search wraps the metadata search, degrading errors to an empty result.
func (s *Service) search(ctx context.Context, query string, year int) []tmdb.SearchCandidate {
	results, err := s.metadata.Search(ctx, query, year)
	if err != nil {
		log.Debug().Err(err).Str("query", query).Int("year", year).Msg("TMDB search failed")
		return nil
	}
	return results
}

// FindByIMDbID scans every cached catalog for a movie with the given IMDb
// id. Catalogs are small (tens of entries), so a linear scan beats keeping
// a second index in sync.
func (s *Service) FindByIMDbID(imdbID string) (models.Movie, bool) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.storedAt))
	for key := range s.storedAt {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		movies, ok := s.catalogCache.Get(key)
		if !ok {
			continue
		}
		for _, movie := range movies {
			if movie.ImdbID == imdbID {
				return movie, true
			}
		}
	}

	return models.Movie{}, false
}

// ResolveByIMDbID serves detail lookups: cached catalogs first, then a
// direct TMDB find as fallback. The fallback result is subject to the same
// valid-IMDb-id rule as catalog entries.
func (s *Service) ResolveByIMDbID(ctx context.Context, imdbID string) (models.Movie, bool) {
	if movie, ok := s.FindByIMDbID(imdbID); ok {
		return movie, true
	}

	candidates, err := s.metadata.FindByIMDbID(ctx, imdbID)
	if err != nil || len(candidates) == 0 {
		return models.Movie{}, false
	}

	details, err := s.metadata.MovieDetails(ctx, candidates[0].ID)
	if err != nil || !models.ValidIMDbID(details.IMDbID()) {
		return models.Movie{}, false
	}

	return buildMovie(details, nil), true
}

// StartRefresher re-resolves the given filters shortly before their cached
// catalogs expire, keeping popular lists warm. Refreshes run through the
// same singleflight and pools as on-demand resolution.
func (s *Service) StartRefresher(ctx context.Context, filterSpecs []string, interval time.Duration) {
	if len(filterSpecs) == 0 {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	margin := s.cacheTTL / 6

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, filterSpec := range filterSpecs {
					if !s.nearExpiry(cacheKey(filterSpec), margin) {
						continue
					}
					log.Debug().Str("filter", filterSpec).Msg("Proactively refreshing catalog")
					s.resolveShared(ctx, cacheKey(filterSpec), filterSpec)
				}
			}
		}
	}()
}

func (s *Service) nearExpiry(key string, margin time.Duration) bool {
	s.mu.Lock()
	stored, ok := s.storedAt[key]
	s.mu.Unlock()
	if !ok {
		return true
	}
	return time.Since(stored) >= s.cacheTTL-margin
}

// buildMovie assembles a catalog record from full TMDB details plus the
// FilmTV critic rating. The description mirrors what the FilmTV lists show:
// rating lines first, then the overview.
func buildMovie(details tmdb.MovieDetails, filmtvRating *float64) models.Movie {
	movie := models.Movie{
		ImdbID:         details.IMDbID(),
		Title:          details.Title,
		Description:    buildDescription(details.Overview, filmtvRating),
		ReleaseYear:    details.ReleaseYear(),
		AverageRating:  details.VoteAverage,
		Genres:         details.GenreNames(),
		RuntimeMinutes: details.Runtime,
		Country:        details.Country(),
		FilmTVRating:   filmtvRating,
	}
	if details.PosterPath != "" {
		movie.Poster = tmdb.ImageBaseURL + details.PosterPath
	}
	if details.BackdropPath != "" {
		movie.Backdrop = tmdb.ImageBaseURL + details.BackdropPath
	}
	return movie
}

func buildDescription(overview string, filmtvRating *float64) string {
	if filmtvRating == nil {
		return overview
	}

	rating := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", *filmtvRating), "0"), ".")
	stars := strings.Repeat("⭐", int(*filmtvRating/2+0.5))

	var b strings.Builder
	fmt.Fprintf(&b, "Voto medio: %s/10\n", rating)
	fmt.Fprintf(&b, "Voto critica: %s (%s)\n\n", stars, rating)
	b.WriteString(overview)
	return b.String()
}
