package limiter

import (
	"context"
	"sync"
	"time"

	"notebook-navigator/internal/metrics"
)

// Weighted admits callers against an integer budget. Each acquisition
// declares a weight; admission requires activeWeight+weight <= budget. The
// waiter queue is strict FIFO: a request that cannot fit blocks everything
// behind it, which keeps ordering predictable and the head starvation-free.
type Weighted struct {
	name   string
	budget int64

	mu      sync.Mutex
	active  int64
	waiters []*weightedWaiter
}

type weightedWaiter struct {
	weight int64
	ready  chan struct{}
}

// NewWeighted creates a weighted limiter with the given budget.
func NewWeighted(name string, budget int64) *Weighted {
	if budget < 1 {
		budget = 1
	}
	return &Weighted{name: name, budget: budget}
}

// Acquire blocks until the declared weight fits in the budget or the context
// is canceled. A weight larger than the whole budget is clamped to the
// budget so the request can still be admitted alone. On success it returns
// a release function that must be called exactly once.
func (w *Weighted) Acquire(ctx context.Context, weight int64) (func(), error) {
	if weight < 1 {
		weight = 1
	}
	if weight > w.budget {
		weight = w.budget
	}

	start := time.Now()

	w.mu.Lock()
	if len(w.waiters) == 0 && w.active+weight <= w.budget {
		w.active += weight
		metrics.LimiterActive.WithLabelValues(w.name).Set(float64(w.active))
		w.mu.Unlock()
		metrics.LimiterWaitDuration.WithLabelValues(w.name).Observe(time.Since(start).Seconds())
		return w.releaseFunc(weight), nil
	}

	waiter := &weightedWaiter{weight: weight, ready: make(chan struct{})}
	w.waiters = append(w.waiters, waiter)
	w.mu.Unlock()

	select {
	case <-waiter.ready:
		metrics.LimiterWaitDuration.WithLabelValues(w.name).Observe(time.Since(start).Seconds())
		return w.releaseFunc(weight), nil
	case <-ctx.Done():
		w.mu.Lock()
		for i, cand := range w.waiters {
			if cand == waiter {
				w.waiters = append(w.waiters[:i], w.waiters[i+1:]...)
				// Removing a blocked head may unblock smaller requests behind it.
				w.admitLocked()
				w.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		// Already admitted; give the weight back.
		w.active -= weight
		w.admitLocked()
		w.mu.Unlock()
		return nil, ctx.Err()
	}
}

// releaseFunc returns a once-only release callback for held weight.
func (w *Weighted) releaseFunc(weight int64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			w.active -= weight
			w.admitLocked()
			w.mu.Unlock()
		})
	}
}

// admitLocked admits waiters from the head while they fit. It never skips
// over a head that does not fit.
func (w *Weighted) admitLocked() {
	for len(w.waiters) > 0 {
		head := w.waiters[0]
		if w.active+head.weight > w.budget {
			break
		}
		w.active += head.weight
		w.waiters = w.waiters[1:]
		close(head.ready)
	}
	metrics.LimiterActive.WithLabelValues(w.name).Set(float64(w.active))
}

// ActiveWeight returns the weight currently admitted.
func (w *Weighted) ActiveWeight() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}
