package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newFindServer(t *testing.T, hits *atomic.Int32, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("external_source") != "imdb_id" {
			t.Errorf("missing external_source parameter: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("api_key") == "" {
			t.Errorf("missing api_key parameter")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupSupplementaryBuildsImageURLs(t *testing.T) {
	var hits atomic.Int32
	srv := newFindServer(t, &hits,
		`{"movie_results":[{"poster_path":"/poster.jpg","backdrop_path":"/backdrop.jpg"}]}`,
		http.StatusOK)

	c := NewClient("test-key", "", 0)
	c.SetBaseURL(srv.URL)

	supp, err := c.LookupSupplementary(context.Background(), "tt0111161")
	if err != nil {
		t.Fatalf("LookupSupplementary() error = %v", err)
	}
	if supp.PosterURL != "https://image.tmdb.org/t/p/w500/poster.jpg" {
		t.Fatalf("unexpected poster url: %s", supp.PosterURL)
	}
	if supp.BackdropURL != "https://image.tmdb.org/t/p/w1280/backdrop.jpg" {
		t.Fatalf("unexpected backdrop url: %s", supp.BackdropURL)
	}
}

func TestLookupSupplementaryNoResults(t *testing.T) {
	var hits atomic.Int32
	srv := newFindServer(t, &hits, `{"movie_results":[]}`, http.StatusOK)

	c := NewClient("test-key", "", 0)
	c.SetBaseURL(srv.URL)

	_, err := c.LookupSupplementary(context.Background(), "tt0000001")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for an unknown id, got %v", err)
	}
}

func TestLookupSupplementaryProviderError(t *testing.T) {
	var hits atomic.Int32
	srv := newFindServer(t, &hits, `{"status_message":"over quota"}`, http.StatusTooManyRequests)

	c := NewClient("test-key", "", 0)
	c.SetBaseURL(srv.URL)

	_, err := c.LookupSupplementary(context.Background(), "tt0111161")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on provider error, got %v", err)
	}
}

func TestLookupSupplementaryWithoutAPIKey(t *testing.T) {
	c := NewClient("", "", 0)

	_, err := c.LookupSupplementary(context.Background(), "tt0111161")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without an api key, got %v", err)
	}
}

func TestLookupSupplementaryUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := newFindServer(t, &hits,
		`{"movie_results":[{"poster_path":"/poster.jpg","backdrop_path":""}]}`,
		http.StatusOK)

	c := NewClient("test-key", t.TempDir(), 1)
	c.SetBaseURL(srv.URL)

	first, err := c.LookupSupplementary(context.Background(), "tt0111161")
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	second, err := c.LookupSupplementary(context.Background(), "tt0111161")
	if err != nil {
		t.Fatalf("cached lookup failed: %v", err)
	}

	if hits.Load() != 1 {
		t.Fatalf("expected exactly one upstream request, got %d", hits.Load())
	}
	if first != second {
		t.Fatalf("cached result diverged: %+v vs %+v", first, second)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	cache := newFileCache(t.TempDir(), 1)

	in := Supplementary{PosterURL: "https://img/p.jpg"}
	if err := cache.set("key-1", in); err != nil {
		t.Fatalf("set() error = %v", err)
	}

	var out Supplementary
	ok, err := cache.get("key-1", &out)
	if err != nil || !ok {
		t.Fatalf("get() = %v, %v; want hit", ok, err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}

	ok, err = cache.get("missing", &out)
	if err != nil || ok {
		t.Fatalf("expected clean miss, got %v, %v", ok, err)
	}
}
