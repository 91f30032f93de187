package prefetch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/avast/retry-go/v4"

	"nextreel/models"
	"nextreel/services/catalog"
	"nextreel/services/enrichment"
)

// ErrEmptyResult means no candidate could be produced this cycle: either no
// catalog row matches the criteria, every match was already seen, or the
// queue wait timed out. Expected under narrow filters, not a fault.
var ErrEmptyResult = errors.New("no movie matched the criteria")

const (
	// maxDedupAttempts bounds re-rolls when the random pick was already
	// seen, so a nearly-exhausted matching set cannot loop forever.
	maxDedupAttempts = 8

	// portAttempts bounds retries of a transiently failing catalog call
	// before the cycle degrades to ErrEmptyResult.
	portAttempts   = 3
	portRetryDelay = 250 * time.Millisecond

	// enrichTimeout caps how long best-effort artwork lookup may take.
	enrichTimeout = 2 * time.Second
)

// CatalogPort is the slice of the catalog store the supplier needs.
type CatalogPort interface {
	RandomMatching(ctx context.Context, criteria models.FilterCriteria) (string, error)
	FetchDetails(ctx context.Context, id string) (models.Movie, error)
}

// EnrichmentPort resolves supplementary artwork for a catalog id.
type EnrichmentPort interface {
	LookupSupplementary(ctx context.Context, imdbID string) (enrichment.Supplementary, error)
}

// Supplier produces one fully-formed, not-yet-seen movie per call by
// combining the catalog ports with the viewer's seen set.
type Supplier struct {
	catalog  CatalogPort
	enricher EnrichmentPort
}

// NewSupplier creates a supplier over the given ports.
func NewSupplier(catalogPort CatalogPort, enricher EnrichmentPort) *Supplier {
	return &Supplier{catalog: catalogPort, enricher: enricher}
}

// NextCandidate returns one random movie matching the criteria whose id is
// not in seen. Returns ErrEmptyResult when the catalog has no match or the
// unseen matches appear exhausted.
func (s *Supplier) NextCandidate(ctx context.Context, criteria models.FilterCriteria, seen map[string]struct{}) (models.Movie, error) {
	var id string
	for attempt := 0; attempt < maxDedupAttempts; attempt++ {
		candidate, err := s.randomMatching(ctx, criteria)
		if errors.Is(err, catalog.ErrNotFound) {
			return models.Movie{}, ErrEmptyResult
		}
		if err != nil {
			log.Printf("[prefetch] catalog query failed: %v", err)
			return models.Movie{}, ErrEmptyResult
		}
		if _, alreadySeen := seen[candidate]; alreadySeen {
			continue
		}
		id = candidate
		break
	}
	if id == "" {
		// Every roll landed on an already-seen title.
		return models.Movie{}, ErrEmptyResult
	}

	movie, err := s.fetchDetails(ctx, id)
	if err != nil {
		log.Printf("[prefetch] detail fetch for %s failed: %v", id, err)
		return models.Movie{}, ErrEmptyResult
	}

	return s.enrich(ctx, movie), nil
}

// randomMatching asks the catalog for one random matching id, retrying
// transient failures a bounded number of times.
func (s *Supplier) randomMatching(ctx context.Context, criteria models.FilterCriteria) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return s.catalog.RandomMatching(ctx, criteria)
		},
		retry.Context(ctx),
		retry.Attempts(portAttempts),
		retry.Delay(portRetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, catalog.ErrNotFound)
		}),
	)
}

func (s *Supplier) fetchDetails(ctx context.Context, id string) (models.Movie, error) {
	return retry.DoWithData(
		func() (models.Movie, error) {
			return s.catalog.FetchDetails(ctx, id)
		},
		retry.Context(ctx),
		retry.Attempts(portAttempts),
		retry.Delay(portRetryDelay),
		retry.LastErrorOnly(true),
	)
}

// enrich adds supplementary artwork. Best-effort: on failure or timeout the
// base record ships as-is.
func (s *Supplier) enrich(ctx context.Context, movie models.Movie) models.Movie {
	if s.enricher == nil {
		return movie
	}

	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	supp, err := s.enricher.LookupSupplementary(ctx, movie.IMDbID)
	if err != nil {
		if !errors.Is(err, enrichment.ErrUnavailable) {
			log.Printf("[prefetch] enrichment for %s failed: %v", movie.IMDbID, err)
		}
		return movie
	}

	if movie.PosterURL == "" && supp.PosterURL != "" {
		movie.PosterURL = supp.PosterURL
	}
	movie.BackdropURL = supp.BackdropURL
	return movie
}
