// Package catalog provides read-only access to the movie metadata store, an
// IMDb-style sqlite database. It answers two questions for the supply
// pipeline: "give me one random title matching these criteria" and "give me
// the full record for this id".
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"nextreel/models"
)

// ErrNotFound is returned when no catalog row matches the given criteria or
// id. For RandomMatching this is an expected outcome of narrow filters, not
// a fault.
var ErrNotFound = errors.New("no matching title in catalog")

// Store queries the catalog database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore opens the catalog database read-only.
func NewStore(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing handle. Used by tests that seed their own
// catalog fixture.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RandomMatching returns the id of one random title satisfying the criteria.
// Randomization is done in SQL; callers get no distribution guarantee beyond
// "plausibly random among matches". Returns ErrNotFound when nothing matches.
func (s *Store) RandomMatching(ctx context.Context, criteria models.FilterCriteria) (string, error) {
	where, args := buildWhere(criteria)
	query := `SELECT tb.tconst
		FROM title_basics tb
		JOIN title_ratings tr ON tr.tconst = tb.tconst
		WHERE ` + where + `
		ORDER BY RANDOM() LIMIT 1`

	var id string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("random matching title: %w", err)
	}
	return id, nil
}

// FetchDetails loads the full record for an id already known to exist.
// Failure here is a hard error; the caller retries it as transient.
func (s *Store) FetchDetails(ctx context.Context, id string) (models.Movie, error) {
	var (
		m         models.Movie
		year      sql.NullInt64
		runtime   sql.NullInt64
		genres    sql.NullString
		countries sql.NullString
		languages sql.NullString
		plot      sql.NullString
		posterURL sql.NullString
		rating    sql.NullFloat64
		votes     sql.NullInt64
		directors sql.NullString
		writers   sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT tb.tconst, tb.primary_title, tb.start_year, tb.runtime_minutes,
		       tb.genres, tb.countries, tb.languages, tb.plot, tb.poster_url,
		       tr.average_rating, tr.num_votes, tc.directors, tc.writers
		FROM title_basics tb
		LEFT JOIN title_ratings tr ON tr.tconst = tb.tconst
		LEFT JOIN title_crew tc ON tc.tconst = tb.tconst
		WHERE tb.tconst = ?`, id).Scan(
		&m.IMDbID, &m.Title, &year, &runtime, &genres, &countries, &languages,
		&plot, &posterURL, &rating, &votes, &directors, &writers,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Movie{}, ErrNotFound
	}
	if err != nil {
		return models.Movie{}, fmt.Errorf("fetch details for %s: %w", id, err)
	}

	if m.Title == "" {
		m.Title = models.UnknownField
	}
	m.Year = int(year.Int64)
	m.Genres = splitList(genres.String)
	m.Countries = splitList(countries.String)
	m.Languages = splitList(languages.String)
	m.Directors = splitList(directors.String)
	m.Writers = splitList(writers.String)
	m.Rating = rating.Float64
	m.Votes = int(votes.Int64)
	m.Plot = orUnknown(plot.String)
	m.PosterURL = posterURL.String
	m.BackdropURL = ""
	if runtime.Valid && runtime.Int64 > 0 {
		m.Runtimes = []string{fmt.Sprintf("%d", runtime.Int64)}
	} else {
		m.Runtimes = []string{models.UnknownField}
	}

	cast, err := s.topBilledCast(ctx, id)
	if err != nil {
		return models.Movie{}, err
	}
	m.Cast = cast

	return m, nil
}

func (s *Store) topBilledCast(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM title_principals
		WHERE tconst = ? ORDER BY ordering ASC LIMIT ?`, id, models.MaxTopBilledCast)
	if err != nil {
		return nil, fmt.Errorf("fetch cast for %s: %w", id, err)
	}
	defer rows.Close()

	var cast []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cast = append(cast, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cast) == 0 {
		cast = []string{models.UnknownField}
	}
	return cast, nil
}

// buildWhere translates criteria into a WHERE clause over the joined
// basics/ratings tables. Criteria are a pure predicate; ordering is left to
// the caller's query.
func buildWhere(c models.FilterCriteria) (string, []any) {
	clauses := []string{"tb.title_type = 'movie'"}
	var args []any

	if c.MinYear > 0 {
		clauses = append(clauses, "tb.start_year >= ?")
		args = append(args, c.MinYear)
	}
	if c.MaxYear > 0 {
		clauses = append(clauses, "tb.start_year <= ?")
		args = append(args, c.MaxYear)
	}
	if c.MinRating > 0 {
		clauses = append(clauses, "tr.average_rating >= ?")
		args = append(args, c.MinRating)
	}
	if c.MaxRating > 0 {
		clauses = append(clauses, "tr.average_rating <= ?")
		args = append(args, c.MaxRating)
	}
	if c.MinVotes > 0 {
		clauses = append(clauses, "tr.num_votes >= ?")
		args = append(args, c.MinVotes)
	}
	for _, genre := range c.Genres {
		clauses = append(clauses, "',' || lower(tb.genres) || ',' LIKE ?")
		args = append(args, "%,"+strings.ToLower(genre)+",%")
	}
	if c.Language != "" {
		clauses = append(clauses, "',' || lower(tb.languages) || ',' LIKE ?")
		args = append(args, "%,"+strings.ToLower(c.Language)+",%")
	}

	return strings.Join(clauses, " AND "), args
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{models.UnknownField}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{models.UnknownField}
	}
	return out
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return models.UnknownField
	}
	return v
}
