package prefetch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nextreel/models"
	"nextreel/services/catalog"
	"nextreel/services/enrichment"
)

// fakeCatalog serves scripted random picks and details.
type fakeCatalog struct {
	mu         sync.Mutex
	picks      []string // returned in order by RandomMatching; repeats last
	pickErr    error
	queryCalls int

	details    map[string]models.Movie
	detailErrs map[string]error
}

func (f *fakeCatalog) RandomMatching(ctx context.Context, criteria models.FilterCriteria) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.pickErr != nil {
		return "", f.pickErr
	}
	if len(f.picks) == 0 {
		return "", catalog.ErrNotFound
	}
	pick := f.picks[0]
	if len(f.picks) > 1 {
		f.picks = f.picks[1:]
	}
	return pick, nil
}

func (f *fakeCatalog) FetchDetails(ctx context.Context, id string) (models.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.detailErrs[id]; ok {
		return models.Movie{}, err
	}
	if m, ok := f.details[id]; ok {
		return m, nil
	}
	return models.Movie{IMDbID: id, Title: "Movie " + id}, nil
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

// fakeEnricher returns a fixed supplementary record or error.
type fakeEnricher struct {
	supp  enrichment.Supplementary
	err   error
	calls int
}

func (f *fakeEnricher) LookupSupplementary(ctx context.Context, imdbID string) (enrichment.Supplementary, error) {
	f.calls++
	if f.err != nil {
		return enrichment.Supplementary{}, f.err
	}
	return f.supp, nil
}

func TestSupplierReturnsUnseenCandidate(t *testing.T) {
	cat := &fakeCatalog{picks: []string{"tt1"}}
	s := NewSupplier(cat, nil)

	movie, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, nil)
	if err != nil {
		t.Fatalf("NextCandidate() error = %v", err)
	}
	if movie.IMDbID != "tt1" {
		t.Fatalf("expected tt1, got %s", movie.IMDbID)
	}
}

func TestSupplierSkipsSeenIDs(t *testing.T) {
	cat := &fakeCatalog{picks: []string{"tt1", "tt2", "tt3"}}
	s := NewSupplier(cat, nil)

	seen := map[string]struct{}{"tt1": {}, "tt2": {}}
	movie, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, seen)
	if err != nil {
		t.Fatalf("NextCandidate() error = %v", err)
	}
	if movie.IMDbID != "tt3" {
		t.Fatalf("expected the first unseen pick tt3, got %s", movie.IMDbID)
	}
}

func TestSupplierGivesUpWhenMatchesExhausted(t *testing.T) {
	// Every roll lands on the same already-seen title.
	cat := &fakeCatalog{picks: []string{"tt1"}}
	s := NewSupplier(cat, nil)

	_, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, map[string]struct{}{"tt1": {}})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if got := cat.calls(); got != maxDedupAttempts {
		t.Fatalf("expected exactly %d bounded attempts, got %d", maxDedupAttempts, got)
	}
}

func TestSupplierEmptyResultWhenNothingMatches(t *testing.T) {
	cat := &fakeCatalog{} // no picks at all
	s := NewSupplier(cat, nil)

	_, err := s.NextCandidate(context.Background(), models.FilterCriteria{MinRating: 9.9}, nil)
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if got := cat.calls(); got != 1 {
		t.Fatalf("a NotFound answer should not be retried, got %d calls", got)
	}
}

func TestSupplierDegradesToEmptyResultOnDetailFailure(t *testing.T) {
	cat := &fakeCatalog{
		picks:      []string{"tt1"},
		detailErrs: map[string]error{"tt1": errors.New("catalog offline")},
	}
	s := NewSupplier(cat, nil)

	_, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, nil)
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected degraded ErrEmptyResult, got %v", err)
	}
}

func TestSupplierEnrichmentFailureIsNonFatal(t *testing.T) {
	cat := &fakeCatalog{picks: []string{"tt1"}}
	enr := &fakeEnricher{err: enrichment.ErrUnavailable}
	s := NewSupplier(cat, enr)

	movie, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, nil)
	if err != nil {
		t.Fatalf("enrichment failure must not fail the candidate: %v", err)
	}
	if movie.BackdropURL != "" {
		t.Fatalf("expected no backdrop on enrichment failure, got %q", movie.BackdropURL)
	}
}

func TestSupplierEnrichmentAddsArtwork(t *testing.T) {
	cat := &fakeCatalog{picks: []string{"tt1"}}
	enr := &fakeEnricher{supp: enrichment.Supplementary{
		PosterURL:   "https://img/poster.jpg",
		BackdropURL: "https://img/backdrop.jpg",
	}}
	s := NewSupplier(cat, enr)

	movie, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, nil)
	if err != nil {
		t.Fatalf("NextCandidate() error = %v", err)
	}
	if movie.BackdropURL != "https://img/backdrop.jpg" {
		t.Fatalf("expected backdrop from enrichment, got %q", movie.BackdropURL)
	}
	if movie.PosterURL != "https://img/poster.jpg" {
		t.Fatalf("expected poster filled from enrichment, got %q", movie.PosterURL)
	}
}

func TestSupplierKeepsCatalogPoster(t *testing.T) {
	cat := &fakeCatalog{
		picks:   []string{"tt1"},
		details: map[string]models.Movie{"tt1": {IMDbID: "tt1", PosterURL: "https://catalog/poster.jpg"}},
	}
	enr := &fakeEnricher{supp: enrichment.Supplementary{PosterURL: "https://img/poster.jpg"}}
	s := NewSupplier(cat, enr)

	movie, err := s.NextCandidate(context.Background(), models.FilterCriteria{}, nil)
	if err != nil {
		t.Fatalf("NextCandidate() error = %v", err)
	}
	if movie.PosterURL != "https://catalog/poster.jpg" {
		t.Fatalf("catalog poster must win, got %q", movie.PosterURL)
	}
}
