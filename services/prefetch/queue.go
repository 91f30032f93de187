package prefetch

import (
	"context"
	"errors"
	"sync"

	"nextreel/models"
)

var (
	// ErrQueueClosed is returned by Push and Pop after Close.
	ErrQueueClosed = errors.New("prefetch queue closed")
	// ErrStaleGeneration is returned by Push when the queue was drained
	// after the item's fetch began. The item is discarded, not enqueued.
	ErrStaleGeneration = errors.New("queue drained since fetch began")
)

// Queue is a bounded FIFO of ready-to-serve movies. The refill loop is its
// only producer; request handlers are its consumers. Size never exceeds the
// capacity fixed at construction.
//
// Every Push carries the generation observed when the fetch began. Drain
// bumps the generation, so an item fetched under superseded criteria can
// never enter the queue, even if its producer was already blocked in Push.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []models.Movie
	cap   int
	gen   uint64
	done  bool

	// notify wakes the refill loop when a slot opens.
	notify chan struct{}
}

// NewQueue creates a queue with the given capacity (minimum 1).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{
		cap:    capacity,
		notify: make(chan struct{}, 1),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Generation returns the current drain generation. Producers snapshot it
// before fetching and hand it back to Push.
func (q *Queue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen
}

// Len returns the number of buffered items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Push appends an item, blocking while the queue is full. This is the
// backpressure bounding memory and upstream API call rate. Returns
// ErrStaleGeneration if the queue was drained after gen was snapshotted.
func (q *Queue) Push(ctx context.Context, m models.Movie, gen uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := wakeOnDone(ctx, q.cond)
	defer stop()

	for {
		switch {
		case q.done:
			return ErrQueueClosed
		case ctx.Err() != nil:
			return ctx.Err()
		case q.gen != gen:
			return ErrStaleGeneration
		case len(q.items) < q.cap:
			q.items = append(q.items, m)
			q.cond.Broadcast()
			return nil
		}
		q.cond.Wait()
	}
}

// Pop removes and returns the oldest item, blocking while the queue is
// empty. Callers in a request context pass a deadline so a starved queue
// surfaces as an empty result instead of hanging the client.
func (q *Queue) Pop(ctx context.Context) (models.Movie, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := wakeOnDone(ctx, q.cond)
	defer stop()

	for {
		switch {
		case q.done:
			return models.Movie{}, ErrQueueClosed
		case ctx.Err() != nil:
			return models.Movie{}, ctx.Err()
		case len(q.items) > 0:
			m := q.items[0]
			q.items = q.items[1:]
			q.cond.Broadcast()
			q.signalRefill()
			return m, nil
		}
		q.cond.Wait()
	}
}

// Drain discards all buffered items without blocking and bumps the
// generation so in-flight producers discard their results too. Used when
// criteria change: correctness of filtering beats prefetch efficiency.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = q.items[:0]
	q.gen++
	q.cond.Broadcast()
	q.signalRefill()
	return n
}

// Close wakes all waiters; subsequent operations fail with ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = true
	q.cond.Broadcast()
}

// Refill returns a channel that receives a tick whenever a slot opens or the
// queue is drained.
func (q *Queue) Refill() <-chan struct{} {
	return q.notify
}

// signalRefill nudges the refill loop without blocking. Callers hold mu.
func (q *Queue) signalRefill() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// wakeOnDone broadcasts on the cond when ctx is canceled so waiters
// re-check their ctx. The returned stop func must be called before the
// waiter releases its interest.
func wakeOnDone(ctx context.Context, cond *sync.Cond) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		case <-stopCh:
		}
	}()
	return func() { close(stopCh) }
}
