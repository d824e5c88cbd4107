// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/vetrina/internal/ratelimit"
)

func newTestClient(server *httptest.Server, apiKey string) *Client {
	c := NewClient(apiKey, ratelimit.NewPool(4, 0), time.Hour)
	c.baseURL = server.URL
	c.httpClient = server.Client()
	return c
}

func TestSearchRequiresAPIKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without an api key")
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server, "")
	_, err := c.Search(context.Background(), "Il Corvo", 1994)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func TestSearchSendsParamsAndCaches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		assert.Equal(t, "/search/movie", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Il Corvo", q.Get("query"))
		assert.Equal(t, "1994", q.Get("year"))
		assert.Equal(t, "it-IT", q.Get("language"))
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "false", q.Get("include_adult"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":42,"title":"Il Corvo","original_title":"The Crow","release_date":"1994-06-10","popularity":12.5}]}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server, "test-key")

	results, err := c.Search(context.Background(), "Il Corvo", 1994)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 42, results[0].ID)
	assert.Equal(t, "The Crow", results[0].OriginalTitle)
	assert.Equal(t, 1994, results[0].ReleaseYear())

	_, err = c.Search(context.Background(), "Il Corvo", 1994)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestMovieDetails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/603", r.URL.Path)
		assert.Equal(t, "external_ids", r.URL.Query().Get("append_to_response"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 603,
			"title": "Matrix",
			"overview": "Un hacker scopre la natura della realtà.",
			"release_date": "1999-05-07",
			"runtime": 136,
			"vote_average": 8.2,
			"genres": [{"name": "Azione"}, {"name": "Fantascienza"}],
			"production_countries": [{"iso_3166_1": "US"}],
			"external_ids": {"imdb_id": "tt0133093"}
		}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server, "test-key")

	details, err := c.MovieDetails(context.Background(), 603)
	require.NoError(t, err)
	assert.Equal(t, "tt0133093", details.IMDbID())
	assert.Equal(t, 1999, details.ReleaseYear())
	assert.Equal(t, []string{"Azione", "Fantascienza"}, details.GenreNames())
	assert.Equal(t, "US", details.Country())
}

func TestFindByIMDbID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/find/tt0133093", r.URL.Path)
		assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movie_results":[{"id":603,"title":"Matrix","release_date":"1999-05-07"}]}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server, "test-key")

	results, err := c.FindByIMDbID(context.Background(), "tt0133093")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 603, results[0].ID)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server, "test-key")

	_, err := c.Search(context.Background(), "Il Corvo", 1994)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server, "test-key")

	_, err := c.Search(context.Background(), "Sconosciuto", 0)
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestSetAPIKey(t *testing.T) {
	t.Parallel()

	c := NewClient("", ratelimit.NewPool(1, 0), time.Hour)
	assert.False(t, c.HasAPIKey())

	c.SetAPIKey("rotated")
	assert.True(t, c.HasAPIKey())
	assert.Equal(t, "rotated", c.currentAPIKey())
}
