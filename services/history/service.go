// Package history tracks what each viewer has watched or saved for later.
// Both feed the recommendation dedup set: a movie on either list is never
// recommended again.
package history

import (
	"fmt"
	"log"
	"time"

	"nextreel/models"
)

// Repository is the persistence surface the service needs. Satisfied by
// *database.Repository.
type Repository interface {
	RecordWatched(accountID string, movie models.Movie, watchedAt time.Time) error
	WatchedIDs(accountID string) (map[string]struct{}, error)
	ListWatched(accountID string) ([]models.WatchedMovie, error)
	AddWatchlistItem(accountID string, movie models.Movie, addedAt time.Time) error
	RemoveWatchlistItem(accountID, imdbID string) (bool, error)
	WatchlistIDs(accountID string) (map[string]struct{}, error)
	ListWatchlist(accountID string) ([]models.WatchlistItem, error)
}

// Service exposes per-viewer watch state.
type Service struct {
	repo Repository
}

// NewService creates a history service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SeenIDs returns a snapshot of every catalog id the viewer has watched or
// queued. The snapshot is taken per call; ids added concurrently may slip
// through one supply cycle, which is acceptable.
func (s *Service) SeenIDs(accountID string) (map[string]struct{}, error) {
	watched, err := s.repo.WatchedIDs(accountID)
	if err != nil {
		return nil, fmt.Errorf("watched ids: %w", err)
	}
	queued, err := s.repo.WatchlistIDs(accountID)
	if err != nil {
		return nil, fmt.Errorf("watchlist ids: %w", err)
	}
	for id := range queued {
		watched[id] = struct{}{}
	}
	return watched, nil
}

// RecordWatched marks a movie as watched. Fire-and-forget from the viewer's
// perspective; failures are logged here and not surfaced.
func (s *Service) RecordWatched(accountID string, movie models.Movie) {
	if movie.IMDbID == "" {
		return
	}
	if err := s.repo.RecordWatched(accountID, movie, time.Now().UTC()); err != nil {
		log.Printf("[history] failed to record %s as watched for %s: %v", movie.IMDbID, accountID, err)
	}
}

// ListWatched returns the viewer's watched history, most recent first.
func (s *Service) ListWatched(accountID string) ([]models.WatchedMovie, error) {
	return s.repo.ListWatched(accountID)
}

// AddToWatchlist saves a movie for later viewing.
func (s *Service) AddToWatchlist(accountID string, movie models.Movie) error {
	if movie.IMDbID == "" {
		return fmt.Errorf("movie has no catalog id")
	}
	return s.repo.AddWatchlistItem(accountID, movie, time.Now().UTC())
}

// RemoveFromWatchlist deletes a saved movie, reporting whether it existed.
func (s *Service) RemoveFromWatchlist(accountID, imdbID string) (bool, error) {
	return s.repo.RemoveWatchlistItem(accountID, imdbID)
}

// ListWatchlist returns the viewer's saved movies, most recently added first.
func (s *Service) ListWatchlist(accountID string) ([]models.WatchlistItem, error) {
	return s.repo.ListWatchlist(accountID)
}
