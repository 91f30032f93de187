package models

import "strings"

// UnknownField is the sentinel used for catalog fields the metadata store has
// no value for. Fields are never omitted; they degrade to this sentinel.
const UnknownField = "N/A"

// MaxTopBilledCast bounds how many cast members a Movie carries.
const MaxTopBilledCast = 3

// Movie is an immutable record assembled once by the candidate supplier and
// passed by value everywhere after that. IMDbID is always present and
// non-empty; every other field may carry the UnknownField sentinel (or zero
// for the numeric fields).
type Movie struct {
	IMDbID      string   `json:"imdbId"`
	Title       string   `json:"title"`
	Year        int      `json:"year"`
	Genres      []string `json:"genres"`
	Directors   []string `json:"directors"`
	Writers     []string `json:"writers"`
	Cast        []string `json:"cast"`
	Runtimes    []string `json:"runtimes"`
	Countries   []string `json:"countries"`
	Languages   []string `json:"languages"`
	Rating      float64  `json:"rating"`
	Votes       int      `json:"votes"`
	Plot        string   `json:"plot"`
	PosterURL   string   `json:"posterUrl"`
	BackdropURL string   `json:"backdropUrl"`
}

// HasGenre reports whether the movie lists the given genre (case-insensitive).
func (m Movie) HasGenre(genre string) bool {
	for _, g := range m.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// HasLanguage reports whether the movie lists the given language (case-insensitive).
func (m Movie) HasLanguage(language string) bool {
	for _, l := range m.Languages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

// FilterCriteria holds the viewer-chosen filter bounds. Zero values mean
// "no restriction"; an entirely zero FilterCriteria matches the whole catalog.
type FilterCriteria struct {
	MinYear   int      `json:"minYear,omitempty"`
	MaxYear   int      `json:"maxYear,omitempty"`
	MinRating float64  `json:"minRating,omitempty"`
	MaxRating float64  `json:"maxRating,omitempty"`
	MinVotes  int      `json:"minVotes,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// IsZero reports whether no bound is set at all.
func (c FilterCriteria) IsZero() bool {
	return c.MinYear == 0 && c.MaxYear == 0 &&
		c.MinRating == 0 && c.MaxRating == 0 &&
		c.MinVotes == 0 && len(c.Genres) == 0 && c.Language == ""
}

// Normalize clamps malformed bounds instead of rejecting them so the supply
// pipeline always has workable criteria. When both ends of a range are set
// and min exceeds max, max is raised to min. Negative bounds are dropped.
func (c FilterCriteria) Normalize() FilterCriteria {
	if c.MinYear < 0 {
		c.MinYear = 0
	}
	if c.MaxYear < 0 {
		c.MaxYear = 0
	}
	if c.MinRating < 0 {
		c.MinRating = 0
	}
	if c.MaxRating < 0 {
		c.MaxRating = 0
	}
	if c.MinVotes < 0 {
		c.MinVotes = 0
	}
	if c.MinYear > 0 && c.MaxYear > 0 && c.MinYear > c.MaxYear {
		c.MaxYear = c.MinYear
	}
	if c.MinRating > 0 && c.MaxRating > 0 && c.MinRating > c.MaxRating {
		c.MaxRating = c.MinRating
	}
	return c
}

// Matches reports whether the movie satisfies every set bound. Movies with
// an unknown (zero) numeric field fail any bound that requires it.
func (c FilterCriteria) Matches(m Movie) bool {
	if c.MinYear > 0 && m.Year < c.MinYear {
		return false
	}
	if c.MaxYear > 0 && (m.Year == 0 || m.Year > c.MaxYear) {
		return false
	}
	if c.MinRating > 0 && m.Rating < c.MinRating {
		return false
	}
	if c.MaxRating > 0 && m.Rating > c.MaxRating {
		return false
	}
	if c.MinVotes > 0 && m.Votes < c.MinVotes {
		return false
	}
	for _, g := range c.Genres {
		if !m.HasGenre(g) {
			return false
		}
	}
	if c.Language != "" && !m.HasLanguage(c.Language) {
		return false
	}
	return true
}
