// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tmdb is a minimal client for the TMDB v3 API covering movie
// search, detail fetch and find-by-external-id. Responses are cached in a
// short-TTL tier and every call goes through the shared outbound request
// pool so a burst of catalog resolutions cannot hammer the API.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	retry "github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/vetrina/internal/buildinfo"
	"github.com/autobrr/vetrina/internal/metrics"
	"github.com/autobrr/vetrina/internal/ratelimit"
	"github.com/autobrr/vetrina/pkg/httphelpers"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	defaultTimeout = 8 * time.Second

	// ImageBaseURL is prepended to TMDB poster and backdrop paths.
	ImageBaseURL = "https://image.tmdb.org/t/p/w500"
)

// ErrNoAPIKey is returned when a request is attempted before a TMDB API key
// has been configured.
var ErrNoAPIKey = errors.New("tmdb: api key not configured")

type Client struct {
	httpClient *http.Client
	baseURL    string
	language   string
	pool       *ratelimit.Pool

	mu     sync.RWMutex
	apiKey string

	searchCache  *ttlcache.Cache[string, []SearchCandidate]
	detailsCache *ttlcache.Cache[string, MovieDetails]
}

// NewClient creates a TMDB client. The pool is shared with the FilmTV
// scraper so both upstreams draw from one outbound request budget.
func NewClient(apiKey string, pool *ratelimit.Pool, cacheTTL time.Duration) *Client {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		language:   "it-IT",
		pool:       pool,
		apiKey:     apiKey,
		searchCache: ttlcache.New(ttlcache.Options[string, []SearchCandidate]{}.
			SetDefaultTTL(cacheTTL)),
		detailsCache: ttlcache.New(ttlcache.Options[string, MovieDetails]{}.
			SetDefaultTTL(cacheTTL)),
	}
}

// SetAPIKey replaces the process-wide TMDB credential. Safe for concurrent
// use; in-flight requests keep the key they started with.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

// HasAPIKey reports whether a credential is currently configured.
func (c *Client) HasAPIKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *Client) currentAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Search queries /search/movie. Pass year 0 to search without a year
// constraint. Results come back in TMDB relevance order.
func (c *Client) Search(ctx context.Context, query string, year int) ([]SearchCandidate, error) {
	cacheKey := fmt.Sprintf("search:%s:%d", query, year)
	if cached, ok := c.searchCache.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var resp searchResponse
	if err := c.get(ctx, "/search/movie", params, &resp); err != nil {
		return nil, err
	}

	c.searchCache.Set(cacheKey, resp.Results, ttlcache.DefaultTTL)
	return resp.Results, nil
}

// MovieDetails fetches the full record for a TMDB movie id, including the
// IMDb id when TMDB knows one.
func (c *Client) MovieDetails(ctx context.Context, id int) (MovieDetails, error) {
	cacheKey := fmt.Sprintf("movie:%d", id)
	if cached, ok := c.detailsCache.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("append_to_response", "external_ids")

	var details MovieDetails
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id), params, &details); err != nil {
		return MovieDetails{}, err
	}

	c.detailsCache.Set(cacheKey, details, ttlcache.DefaultTTL)
	return details, nil
}

// FindByIMDbID resolves an IMDb id back to TMDB movie candidates. Used by
// the meta fallback path when a record is not in any cached catalog.
func (c *Client) FindByIMDbID(ctx context.Context, imdbID string) ([]SearchCandidate, error) {
	cacheKey := "find:" + imdbID
	if cached, ok := c.searchCache.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("external_source", "imdb_id")

	var resp findResponse
	if err := c.get(ctx, "/find/"+imdbID, params, &resp); err != nil {
		return nil, err
	}

	c.searchCache.Set(cacheKey, resp.MovieResults, ttlcache.DefaultTTL)
	return resp.MovieResults, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	apiKey := c.currentAPIKey()
	if apiKey == "" {
		return ErrNoAPIKey
	}

	params.Set("api_key", apiKey)
	params.Set("language", c.language)
	requestURL := c.baseURL + endpoint + "?" + params.Encode()

	body, err := ratelimit.DoValue(ctx, c.pool, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, requestURL)
	})
	if err != nil {
		// Log the endpoint, never the full URL: it carries the api key.
		log.Debug().Err(err).Str("endpoint", endpoint).Msg("TMDB request failed")
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "tmdb: decoding %s response", endpoint)
	}
	return nil
}

// fetch performs the HTTP request with a single retry on transient upstream
// failures (5xx and 429). 4xx responses are not retried.
func (c *Client) fetch(ctx context.Context, requestURL string) ([]byte, error) {
	metrics.TMDBRequests.Inc()

	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", buildinfo.UserAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer httphelpers.DrainAndClose(resp)

			if resp.StatusCode >= 400 {
				err := errors.Errorf("tmdb: unexpected status %d", resp.StatusCode)
				if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
					return err
				}
				return retry.Unrecoverable(err)
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
