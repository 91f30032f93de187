// Package navigation gives each viewer session browser-style back/forward
// movement over the movies it has been shown, layered on top of the
// prefetch queue.
package navigation

import (
	"context"
	"errors"
	"sync"

	"nextreel/models"
)

// ErrNoHistory is returned by Retreat when there is nothing to go back to.
// User-visible as a disabled action, never a fault.
var ErrNoHistory = errors.New("no earlier movie to go back to")

// maxVisitedDepth caps the back stack. The oldest entry is dropped when the
// cap is hit, so a viewer cannot retreat past it. This is a deliberate
// memory bound on session state.
const maxVisitedDepth = 100

// Source supplies the next fresh movie when the forward stack is empty.
// Satisfied by *prefetch.Service.
type Source interface {
	Next(ctx context.Context) (models.Movie, error)
}

// History is the back/forward state machine for one viewer session: a
// visited stack (oldest first), an upcoming stack (redo targets), and the
// currently shown movie. All methods serialize on one mutex, so concurrent
// requests from the same viewer (double-clicks) cannot corrupt the stacks.
type History struct {
	mu       sync.Mutex
	visited  []models.Movie
	upcoming []models.Movie
	current  *models.Movie
}

// NewHistory returns an empty history: no current movie, both stacks empty.
func NewHistory() *History {
	return &History{}
}

// Advance moves forward: redo from the upcoming stack when it has entries,
// otherwise pull a fresh movie from the source. The previous current movie
// is pushed onto the visited stack.
func (h *History) Advance(ctx context.Context, source Source) (models.Movie, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var next models.Movie
	if n := len(h.upcoming); n > 0 {
		next = h.upcoming[n-1]
		h.upcoming = h.upcoming[:n-1]
	} else {
		movie, err := source.Next(ctx)
		if err != nil {
			return models.Movie{}, err
		}
		next = movie
	}

	if h.current != nil {
		h.visited = append(h.visited, *h.current)
		if len(h.visited) > maxVisitedDepth {
			h.visited = h.visited[1:]
		}
	}
	h.current = &next
	return next, nil
}

// Retreat moves back: the current movie goes onto the upcoming stack and
// the top of the visited stack becomes current. Fails with ErrNoHistory
// when the visited stack is empty.
func (h *History) Retreat() (models.Movie, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.visited)
	if n == 0 {
		return models.Movie{}, ErrNoHistory
	}

	if h.current != nil {
		h.upcoming = append(h.upcoming, *h.current)
	}
	prev := h.visited[n-1]
	h.visited = h.visited[:n-1]
	h.current = &prev
	return prev, nil
}

// Current returns the movie presently displayed, if any.
func (h *History) Current() (models.Movie, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return models.Movie{}, false
	}
	return *h.current, true
}

// Depths reports the stack sizes.
func (h *History) Depths() (visited, upcoming int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.visited), len(h.upcoming)
}

// Clear resets the history to its initial state. Used when the viewer's
// criteria change: the old browsing sequence ends and a new one begins.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visited = nil
	h.upcoming = nil
	h.current = nil
}
