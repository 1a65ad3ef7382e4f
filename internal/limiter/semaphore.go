package limiter

import (
	"context"
	"sync"
	"time"

	"notebook-navigator/internal/metrics"
)

// Semaphore bounds how many callers hold a permit at once. Waiters are
// served in strict FIFO order.
type Semaphore struct {
	name  string
	limit int

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// NewSemaphore creates a semaphore with the given permit count. The name is
// used as the metric label for wait times and active permits.
func NewSemaphore(name string, limit int) *Semaphore {
	if limit < 1 {
		limit = 1
	}
	return &Semaphore{name: name, limit: limit}
}

// Acquire blocks until a permit is available or the context is canceled.
// On success it returns a release function that must be called exactly once.
func (s *Semaphore) Acquire(ctx context.Context) (func(), error) {
	start := time.Now()

	s.mu.Lock()
	if s.active < s.limit && len(s.waiters) == 0 {
		s.active++
		metrics.LimiterActive.WithLabelValues(s.name).Set(float64(s.active))
		s.mu.Unlock()
		metrics.LimiterWaitDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		return s.releaseFunc(), nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		metrics.LimiterWaitDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		return s.releaseFunc(), nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		// The permit was granted between cancellation and removal; hand it on.
		s.promoteLocked()
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// releaseFunc returns a once-only release callback for a held permit.
func (s *Semaphore) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.promoteLocked()
			s.mu.Unlock()
		})
	}
}

// promoteLocked hands the freed permit to the head waiter, or retires it.
func (s *Semaphore) promoteLocked() {
	if len(s.waiters) > 0 {
		head := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(head)
		return
	}
	s.active--
	metrics.LimiterActive.WithLabelValues(s.name).Set(float64(s.active))
}

// Active returns the number of permits currently held.
func (s *Semaphore) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
