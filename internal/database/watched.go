package database

import (
	"encoding/json"
	"fmt"
	"time"

	"nextreel/models"
)

// RecordWatched upserts a watched-history row. Re-watching a movie refreshes
// the timestamp and stored record.
func (r *Repository) RecordWatched(accountID string, movie models.Movie, watchedAt time.Time) error {
	data, err := json.Marshal(movie)
	if err != nil {
		return fmt.Errorf("encode movie: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO watched_movies (account_id, imdb_id, movie_json, watched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(account_id, imdb_id) DO UPDATE SET movie_json = excluded.movie_json, watched_at = excluded.watched_at`,
		accountID, movie.IMDbID, string(data), watchedAt,
	)
	if err != nil {
		return fmt.Errorf("record watched: %w", err)
	}
	return nil
}

// WatchedIDs returns the set of catalog ids the account has watched.
func (r *Repository) WatchedIDs(accountID string) (map[string]struct{}, error) {
	return r.idSet(`SELECT imdb_id FROM watched_movies WHERE account_id = ?`, accountID)
}

// ListWatched returns the account's watched history, most recent first.
func (r *Repository) ListWatched(accountID string) ([]models.WatchedMovie, error) {
	rows, err := r.db.Query(
		`SELECT imdb_id, movie_json, watched_at FROM watched_movies
		 WHERE account_id = ? ORDER BY watched_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list watched: %w", err)
	}
	defer rows.Close()

	var out []models.WatchedMovie
	for rows.Next() {
		var imdbID, movieJSON string
		var watchedAt time.Time
		if err := rows.Scan(&imdbID, &movieJSON, &watchedAt); err != nil {
			return nil, err
		}
		var movie models.Movie
		if err := json.Unmarshal([]byte(movieJSON), &movie); err != nil {
			return nil, fmt.Errorf("decode movie %s: %w", imdbID, err)
		}
		out = append(out, models.WatchedMovie{AccountID: accountID, Movie: movie, WatchedAt: watchedAt})
	}
	return out, rows.Err()
}

// AddWatchlistItem upserts a watchlist row.
func (r *Repository) AddWatchlistItem(accountID string, movie models.Movie, addedAt time.Time) error {
	data, err := json.Marshal(movie)
	if err != nil {
		return fmt.Errorf("encode movie: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO watchlist_items (account_id, imdb_id, movie_json, added_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(account_id, imdb_id) DO UPDATE SET movie_json = excluded.movie_json, added_at = excluded.added_at`,
		accountID, movie.IMDbID, string(data), addedAt,
	)
	if err != nil {
		return fmt.Errorf("add watchlist item: %w", err)
	}
	return nil
}

// RemoveWatchlistItem deletes a watchlist row, reporting whether it existed.
func (r *Repository) RemoveWatchlistItem(accountID, imdbID string) (bool, error) {
	res, err := r.db.Exec(
		`DELETE FROM watchlist_items WHERE account_id = ? AND imdb_id = ?`, accountID, imdbID)
	if err != nil {
		return false, fmt.Errorf("remove watchlist item: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// WatchlistIDs returns the set of catalog ids on the account's watchlist.
func (r *Repository) WatchlistIDs(accountID string) (map[string]struct{}, error) {
	return r.idSet(`SELECT imdb_id FROM watchlist_items WHERE account_id = ?`, accountID)
}

// ListWatchlist returns the account's watchlist, most recently added first.
func (r *Repository) ListWatchlist(accountID string) ([]models.WatchlistItem, error) {
	rows, err := r.db.Query(
		`SELECT imdb_id, movie_json, added_at FROM watchlist_items
		 WHERE account_id = ? ORDER BY added_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var out []models.WatchlistItem
	for rows.Next() {
		var imdbID, movieJSON string
		var addedAt time.Time
		if err := rows.Scan(&imdbID, &movieJSON, &addedAt); err != nil {
			return nil, err
		}
		var movie models.Movie
		if err := json.Unmarshal([]byte(movieJSON), &movie); err != nil {
			return nil, fmt.Errorf("decode movie %s: %w", imdbID, err)
		}
		out = append(out, models.WatchlistItem{AccountID: accountID, Movie: movie, AddedAt: addedAt})
	}
	return out, rows.Err()
}

func (r *Repository) idSet(query string, accountID string) (map[string]struct{}, error) {
	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
