// Package enrichment fetches supplementary artwork for a catalog title from
// TMDB, the secondary metadata provider. Enrichment is best-effort: every
// failure surfaces as ErrUnavailable and the pipeline carries on with the
// base record.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrUnavailable is returned when supplementary metadata cannot be fetched.
// It is never fatal to the supply pipeline.
var ErrUnavailable = errors.New("supplementary metadata unavailable")

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p"

	posterSize   = "w500"
	backdropSize = "w1280"
)

// Supplementary holds the extra fields the secondary provider contributes.
type Supplementary struct {
	PosterURL   string `json:"posterUrl,omitempty"`
	BackdropURL string `json:"backdropUrl,omitempty"`
}

// Client looks up titles on TMDB by their IMDb id.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	cache   *fileCache
}

// NewClient creates a TMDB client. cacheDir may be empty to disable caching.
func NewClient(apiKey, cacheDir string, ttlHours int) *Client {
	var cache *fileCache
	if cacheDir != "" {
		cache = newFileCache(cacheDir, ttlHours)
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// LookupSupplementary resolves poster and backdrop URLs for an IMDb id.
// Misses, transport errors, and missing API keys all return ErrUnavailable.
func (c *Client) LookupSupplementary(ctx context.Context, imdbID string) (Supplementary, error) {
	if c.apiKey == "" || imdbID == "" {
		return Supplementary{}, ErrUnavailable
	}

	if c.cache != nil {
		var cached Supplementary
		if ok, _ := c.cache.get(cacheKey(imdbID), &cached); ok {
			return cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/find/%s?external_source=imdb_id&api_key=%s",
		c.baseURL, url.PathEscape(imdbID), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Supplementary{}, ErrUnavailable
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Supplementary{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Supplementary{}, fmt.Errorf("%w: tmdb returned %s", ErrUnavailable, resp.Status)
	}

	var data struct {
		MovieResults []struct {
			PosterPath   string `json:"poster_path"`
			BackdropPath string `json:"backdrop_path"`
		} `json:"movie_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Supplementary{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(data.MovieResults) == 0 {
		return Supplementary{}, ErrUnavailable
	}

	result := data.MovieResults[0]
	supp := Supplementary{}
	if result.PosterPath != "" {
		supp.PosterURL = fmt.Sprintf("%s/%s%s", imageBaseURL, posterSize, result.PosterPath)
	}
	if result.BackdropPath != "" {
		supp.BackdropURL = fmt.Sprintf("%s/%s%s", imageBaseURL, backdropSize, result.BackdropPath)
	}

	if c.cache != nil {
		// Cache failures are not worth failing the lookup over.
		_ = c.cache.set(cacheKey(imdbID), supp)
	}

	return supp, nil
}

func cacheKey(imdbID string) string {
	return "tmdb-find-" + imdbID
}
