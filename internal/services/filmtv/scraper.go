// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package filmtv scrapes the curated "best of" movie lists from FilmTV.it.
// The first list page is plain HTML; subsequent pages come from a loader
// endpoint returning JSON with an html fragment. Raw pages are cached in a
// short-TTL tier and every fetch goes through the shared request pool.
package filmtv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/vetrina/internal/metrics"
	"github.com/autobrr/vetrina/internal/models"
	"github.com/autobrr/vetrina/internal/ratelimit"
	"github.com/autobrr/vetrina/pkg/httphelpers"
)

const (
	defaultBaseURL = "https://www.filmtv.it"
	defaultTimeout = 8 * time.Second

	pagesToScrape  = 2
	entriesPerPage = 20
)

var (
	rankedTitleRe   = regexp.MustCompile(`^(\d+)\.\s*(.+)$`)
	loaderRe        = regexp.MustCompile(`newlist\('M','(//[^']+)'\)`)
	trailingPageRe  = regexp.MustCompile(`/\d+/\d+/$`)
	yearFilterRe    = regexp.MustCompile(`anno-(\d{4})`)
	decadeFilterRe  = regexp.MustCompile(`decennio-(\d{4})`)
	originalTitleRe = regexp.MustCompile(`(?i)Titolo originale\s*(.+)`)
)

// junkMarkers are substrings that identify non-title headings on the list
// pages (review teasers, release notes, navigation).
var junkMarkers = []string{
	"La recensione",
	"Uscito in Italia",
	"Uscita in Italia",
	"streaming",
	"migliori",
}

type Scraper struct {
	httpClient *http.Client
	baseURL    string
	pool       *ratelimit.Pool
	userAgent  string

	pageCache *ttlcache.Cache[string, string]
}

// loaderPage is the JSON wrapper the pagination loader returns.
type loaderPage struct {
	HTML string `json:"html"`
}

// NewScraper creates a FilmTV scraper drawing from the shared outbound
// request pool.
func NewScraper(pool *ratelimit.Pool, cacheTTL time.Duration) *Scraper {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Scraper{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		pool:       pool,
		userAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		pageCache: ttlcache.New(ttlcache.Options[string, string]{}.
			SetDefaultTTL(cacheTTL)),
	}
}

// Scrape fetches up to two ranked list pages for the given filter spec
// ("anno-2024", "decennio-1990", "genere-horror/anno-2024") and returns the
// entries in source ranking order, deduplicated by exact title. A failure
// on the initial page is returned as an error; a failure on a later page
// returns what was collected so far.
func (s *Scraper) Scrape(ctx context.Context, filterSpec string) ([]models.ScrapedMovie, error) {
	start := time.Now()

	year, decadeStart := filterHints(filterSpec)

	initialURL := fmt.Sprintf("%s/film/migliori/%s/", s.baseURL, filterSpec)
	page, err := s.fetchPage(ctx, initialURL)
	if err != nil {
		return nil, errors.Wrapf(err, "filmtv: fetching list page for %q", filterSpec)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, errors.Wrapf(err, "filmtv: parsing list page for %q", filterSpec)
	}

	seen := make(map[string]struct{})
	movies := s.parseList(doc, year, decadeStart, seen)

	if loaderURL := extractLoaderURL(doc); loaderURL != "" {
		for pageNum := 2; pageNum <= pagesToScrape; pageNum++ {
			offset := (pageNum - 1) * entriesPerPage
			paginatedURL := fmt.Sprintf("%s/%d/%d/", loaderURL, offset, entriesPerPage)

			body, err := s.fetchPage(ctx, paginatedURL)
			if err != nil {
				log.Warn().Err(err).Int("page", pageNum).Str("filter", filterSpec).Msg("Failed to fetch additional list page")
				break
			}

			var fragment loaderPage
			if err := json.Unmarshal([]byte(body), &fragment); err != nil || fragment.HTML == "" {
				break
			}

			fragDoc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment.HTML))
			if err != nil {
				break
			}
			movies = append(movies, s.parseList(fragDoc, year, decadeStart, seen)...)
		}
	}

	log.Debug().
		Str("filter", filterSpec).
		Int("count", len(movies)).
		Dur("elapsed", time.Since(start)).
		Msg("Scraped FilmTV list")

	return movies, nil
}

// parseList extracts ranked entries from the numbered headings of a list
// page fragment. seen carries the case-sensitive title dedup across pages.
func (s *Scraper) parseList(doc *goquery.Document, year, decadeStart int, seen map[string]struct{}) []models.ScrapedMovie {
	var movies []models.ScrapedMovie

	doc.Find("h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		match := rankedTitleRe.FindStringSubmatch(text)
		if match == nil {
			return
		}

		title := strings.TrimSpace(match[2])
		title = strings.TrimSpace(strings.SplitN(strings.SplitN(title, "\n", 2)[0], "\t", 2)[0])

		if len(title) < 3 {
			return
		}
		for _, marker := range junkMarkers {
			if strings.Contains(title, marker) {
				return
			}
		}
		if _, dup := seen[title]; dup {
			return
		}
		seen[title] = struct{}{}

		article := sel.Closest("article, .item-scheda-wrap")

		var rating *float64
		ratingText := strings.TrimSpace(article.Find(`footer [data-updcnt^="voto-ftv-film"]`).First().Text())
		if ratingText != "" {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(ratingText, ",", "."), 64); err == nil && v >= 0 && v <= 10 {
				rating = &v
			}
		}

		var originalTitle string
		if origText := strings.TrimSpace(article.Find("p.titolo-originale").First().Text()); origText != "" {
			if m := originalTitleRe.FindStringSubmatch(origText); m != nil {
				originalTitle = strings.TrimSpace(m[1])
			}
		}

		movies = append(movies, models.ScrapedMovie{
			Title:         title,
			Year:          year,
			DecadeStart:   decadeStart,
			FilmTVRating:  rating,
			OriginalTitle: originalTitle,
		})
	})

	return movies
}

// fetchPage returns the raw body for a URL, from the response cache when
// fresh, otherwise via the request pool with browser-like headers.
func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if cached, ok := s.pageCache.Get(pageURL); ok {
		return cached, nil
	}

	body, err := ratelimit.DoValue(ctx, s.pool, func(ctx context.Context) (string, error) {
		metrics.ScrapeRequests.Inc()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer httphelpers.DrainAndClose(resp)

		if resp.StatusCode >= 400 {
			return "", errors.Errorf("unexpected status %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	})
	if err != nil {
		return "", err
	}

	s.pageCache.Set(pageURL, body, ttlcache.DefaultTTL)
	return body, nil
}

// extractLoaderURL pulls the pagination loader endpoint out of the page's
// data-exec attribute and strips any trailing offset segment.
func extractLoaderURL(doc *goquery.Document) string {
	dataExec, ok := doc.Find(`[data-exec*="loader/film"]`).First().Attr("data-exec")
	if !ok {
		return ""
	}
	match := loaderRe.FindStringSubmatch(dataExec)
	if match == nil {
		return ""
	}
	loaderURL := "https:" + match[1]
	loaderURL = trailingPageRe.ReplaceAllString(loaderURL, "")
	return strings.TrimRight(loaderURL, "/")
}

// filterHints extracts the year or decade window a filter spec pins.
func filterHints(filterSpec string) (year, decadeStart int) {
	if m := yearFilterRe.FindStringSubmatch(filterSpec); m != nil {
		year, _ = strconv.Atoi(m[1])
		return year, 0
	}
	if m := decadeFilterRe.FindStringSubmatch(filterSpec); m != nil {
		decadeStart, _ = strconv.Atoi(m[1])
		return 0, decadeStart
	}
	return 0, 0
}
