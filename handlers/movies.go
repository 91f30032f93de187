package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"nextreel/internal/auth"
	"nextreel/models"
	"nextreel/services/history"
	"nextreel/services/navigation"
	"nextreel/services/prefetch"
)

// navigationService is the slice of the navigation manager the handler needs.
type navigationService interface {
	Advance(ctx context.Context, sessionID, accountID string) (models.Movie, error)
	Retreat(sessionID string) (models.Movie, error)
	Current(sessionID string) (models.Movie, bool)
	SetCriteria(sessionID, accountID string, criteria models.FilterCriteria) models.FilterCriteria
	Criteria(sessionID, accountID string) models.FilterCriteria
}

var _ navigationService = (*navigation.Manager)(nil)

// watchHistoryService is the slice of the history service the handler needs.
type watchHistoryService interface {
	RecordWatched(accountID string, movie models.Movie)
	ListWatched(accountID string) ([]models.WatchedMovie, error)
	AddToWatchlist(accountID string, movie models.Movie) error
	RemoveFromWatchlist(accountID, imdbID string) (bool, error)
	ListWatchlist(accountID string) ([]models.WatchlistItem, error)
}

var _ watchHistoryService = (*history.Service)(nil)

// MoviesHandler exposes the recommendation surface: next/previous/current
// movie, filter criteria, mark-seen, and the account's watch lists.
type MoviesHandler struct {
	navigation navigationService
	history    watchHistoryService
}

// NewMoviesHandler creates a movies handler.
func NewMoviesHandler(nav navigationService, hist watchHistoryService) *MoviesHandler {
	return &MoviesHandler{navigation: nav, history: hist}
}

// RegisterRoutes attaches the movie endpoints. The router must already run
// the session auth middleware.
func (h *MoviesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/movies/next", h.Next).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/movies/previous", h.Previous).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/movies/current", h.Current).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/movies/seen", h.MarkSeen).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/filters", h.GetFilters).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/filters", h.SetFilters).Methods(http.MethodPut, http.MethodOptions)
	r.HandleFunc("/api/account/watched", h.ListWatched).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/account/watchlist", h.ListWatchlist).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/account/watchlist", h.AddToWatchlist).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/account/watchlist/{id}", h.RemoveFromWatchlist).Methods(http.MethodDelete, http.MethodOptions)
}

// Next shows the viewer their next movie.
func (h *MoviesHandler) Next(w http.ResponseWriter, r *http.Request) {
	movie, err := h.navigation.Advance(r.Context(), auth.GetSessionToken(r), auth.GetAccountID(r))
	if err != nil {
		if errors.Is(err, prefetch.ErrEmptyResult) {
			writeError(w, http.StatusNotFound, "no movies matched the current filters; try broadening them")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch next movie")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// Previous steps back to the previously shown movie.
func (h *MoviesHandler) Previous(w http.ResponseWriter, r *http.Request) {
	movie, err := h.navigation.Retreat(auth.GetSessionToken(r))
	if err != nil {
		if errors.Is(err, navigation.ErrNoHistory) {
			writeError(w, http.StatusConflict, "no earlier movie to go back to")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to step back")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// Current returns the movie presently displayed, if any.
func (h *MoviesHandler) Current(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.navigation.Current(auth.GetSessionToken(r))
	if !ok {
		writeError(w, http.StatusNotFound, "no movie is currently displayed")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// MarkSeen records the currently displayed movie in the viewer's permanent
// watched history. The navigation stacks are unaffected.
func (h *MoviesHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.navigation.Current(auth.GetSessionToken(r))
	if !ok {
		writeError(w, http.StatusBadRequest, "no movie is currently displayed")
		return
	}

	h.history.RecordWatched(auth.GetAccountID(r), movie)
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// GetFilters returns the session's active filter criteria.
func (h *MoviesHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	criteria := h.navigation.Criteria(auth.GetSessionToken(r), auth.GetAccountID(r))
	writeJSON(w, http.StatusOK, criteria)
}

// SetFilters replaces the session's filter criteria. Buffered movies that
// predate the change are discarded before this returns.
func (h *MoviesHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var criteria models.FilterCriteria
	if err := json.NewDecoder(r.Body).Decode(&criteria); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter criteria")
		return
	}

	stored := h.navigation.SetCriteria(auth.GetSessionToken(r), auth.GetAccountID(r), criteria)
	writeJSON(w, http.StatusOK, stored)
}

// ListWatched returns the viewer's watched history.
func (h *MoviesHandler) ListWatched(w http.ResponseWriter, r *http.Request) {
	watched, err := h.history.ListWatched(auth.GetAccountID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load watched history")
		return
	}
	if watched == nil {
		watched = []models.WatchedMovie{}
	}
	writeJSON(w, http.StatusOK, watched)
}

// ListWatchlist returns the viewer's saved movies.
func (h *MoviesHandler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.history.ListWatchlist(auth.GetAccountID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load watchlist")
		return
	}
	if items == nil {
		items = []models.WatchlistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// AddToWatchlist saves a movie for later. With an empty body the currently
// displayed movie is saved; otherwise the body is a full movie record.
func (h *MoviesHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var movie models.Movie
	err := json.NewDecoder(r.Body).Decode(&movie)
	if errors.Is(err, io.EOF) || (err == nil && movie.IMDbID == "") {
		current, ok := h.navigation.Current(auth.GetSessionToken(r))
		if !ok {
			writeError(w, http.StatusBadRequest, "no movie is currently displayed")
			return
		}
		movie = current
	} else if err != nil {
		writeError(w, http.StatusBadRequest, "invalid movie record")
		return
	}

	if err := h.history.AddToWatchlist(auth.GetAccountID(r), movie); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save movie")
		return
	}
	writeJSON(w, http.StatusCreated, movie)
}

// RemoveFromWatchlist deletes a saved movie by catalog id.
func (h *MoviesHandler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	imdbID := mux.Vars(r)["id"]
	removed, err := h.history.RemoveFromWatchlist(auth.GetAccountID(r), imdbID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove movie")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "movie not on watchlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
