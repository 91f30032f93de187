// Package prefetch implements the movie supply pipeline: a bounded queue of
// ready-to-serve movies kept warm by a background refill loop, filtered by
// the active criteria and deduplicated against the viewer's seen set.
package prefetch

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"nextreel/models"
)

const (
	// DefaultPopTimeout bounds how long a viewer-facing request waits on an
	// empty queue before surfacing an empty result.
	DefaultPopTimeout = 3 * time.Second

	// emptyBackoff is the pause after a cycle that produced nothing, so an
	// over-narrow filter does not busy-spin against the catalog.
	emptyBackoff = time.Second

	// pollInterval is the safety-net wakeup for the refill loop.
	pollInterval = 500 * time.Millisecond
)

// SeenLister provides the viewer's seen-id snapshot (watched + watchlist).
type SeenLister interface {
	SeenIDs(accountID string) (map[string]struct{}, error)
}

// Service owns one viewer's supply pipeline: criteria store, bounded queue,
// supplier, and the refill loop that keeps the queue warm.
type Service struct {
	accountID string
	criteria  *CriteriaStore
	queue     *Queue
	supplier  *Supplier
	seen      SeenLister

	capacity int
	lowWater int

	// critMu serializes concurrent SetCriteria calls so their swap+drain
	// pairs never interleave. The no-stale-pop guarantee itself comes from
	// Replace-before-Drain order plus generation-checked pushes.
	critMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      conc.WaitGroup
}

// NewService assembles a pipeline for one viewer. capacity and lowWater
// follow the config; lowWater must be below capacity.
func NewService(accountID string, supplier *Supplier, seen SeenLister, capacity, lowWater int) *Service {
	if capacity < 1 {
		capacity = 3
	}
	if lowWater < 1 || lowWater >= capacity {
		lowWater = capacity - 1
		if lowWater < 1 {
			lowWater = 1
		}
	}
	return &Service{
		accountID: accountID,
		criteria:  NewCriteriaStore(),
		queue:     NewQueue(capacity),
		supplier:  supplier,
		seen:      seen,
		capacity:  capacity,
		lowWater:  lowWater,
	}
}

// Start launches the refill loop. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Go(func() { s.refillLoop(loopCtx) })
	log.Printf("[prefetch] refill loop started for account %s", s.accountID)
}

// Stop cancels the refill loop and waits for it to exit. In-flight port
// calls are bounded by their own timeouts, so Stop does not hang on a slow
// provider.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.queue.Close()
	s.wg.Wait()
	log.Printf("[prefetch] refill loop stopped for account %s", s.accountID)
}

// Next pops the oldest ready movie, waiting up to DefaultPopTimeout when
// the queue is empty (or the caller's earlier deadline). A timed-out wait
// surfaces as ErrEmptyResult.
func (s *Service) Next(ctx context.Context) (models.Movie, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultPopTimeout)
	defer cancel()

	movie, err := s.queue.Pop(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrQueueClosed) {
			return models.Movie{}, ErrEmptyResult
		}
		return models.Movie{}, err
	}
	return movie, nil
}

// SetCriteria replaces the active criteria, discards every already-buffered
// movie, and returns the normalized criteria as stored. Replace runs before
// Drain, and Drain bumps the queue generation, so once SetCriteria returns no
// pre-change movie can land or be popped.
func (s *Service) SetCriteria(c models.FilterCriteria) models.FilterCriteria {
	s.critMu.Lock()
	stored := s.criteria.Replace(c)
	dropped := s.queue.Drain()
	s.critMu.Unlock()

	if dropped > 0 {
		log.Printf("[prefetch] criteria changed, dropped %d buffered movies for account %s", dropped, s.accountID)
	}
	return stored
}

// Criteria returns a snapshot of the active criteria.
func (s *Service) Criteria() models.FilterCriteria {
	return s.criteria.Get()
}

// QueueLen reports current buffer occupancy.
func (s *Service) QueueLen() int {
	return s.queue.Len()
}

// refillLoop keeps the queue warm for the lifetime of the session. A refill
// burst runs when a consumer frees a slot or the buffer sits below the
// low-water mark; each burst tops the queue up to capacity.
func (s *Service) refillLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	s.refillBurst(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.queue.Refill():
			s.refillBurst(ctx)
		case <-ticker.C:
			if s.queue.Len() < s.lowWater {
				s.refillBurst(ctx)
			}
		}
	}
}

func (s *Service) refillBurst(ctx context.Context) {
	for ctx.Err() == nil && s.queue.Len() < s.capacity {
		if !s.fillOne(ctx) {
			return
		}
	}
}

// fillOne fetches and enqueues a single candidate. Returns false when the
// burst should stop (empty result, port trouble, or shutdown); a failed
// cycle never crashes the loop, it backs off and the next wakeup retries.
func (s *Service) fillOne(ctx context.Context) bool {
	gen := s.queue.Generation()
	criteria := s.criteria.Get()

	seen, err := s.seen.SeenIDs(s.accountID)
	if err != nil {
		log.Printf("[prefetch] seen-id snapshot failed for account %s: %v", s.accountID, err)
		s.sleep(ctx, emptyBackoff)
		return false
	}

	movie, err := s.supplier.NextCandidate(ctx, criteria, seen)
	if err != nil {
		if !errors.Is(err, ErrEmptyResult) && !errors.Is(err, context.Canceled) {
			log.Printf("[prefetch] supply cycle failed for account %s: %v", s.accountID, err)
		}
		s.sleep(ctx, emptyBackoff)
		return false
	}

	if err := s.queue.Push(ctx, movie, gen); err != nil {
		// Stale pushes are expected after a criteria change; the movie is
		// simply discarded and the next cycle fetches under the new filter.
		return errors.Is(err, ErrStaleGeneration)
	}
	return true
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
