package retry

import (
	"sync"
	"time"

	"notebook-navigator/internal/logging"
)

// Config controls the exponential backoff applied to failed work items.
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultConfig returns the backoff defaults used by the schedulers.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  5,
	}
}

// Delay returns the backoff before retry attempt n (1-indexed):
// min(InitialDelay * 2^(n-1), MaxDelay).
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

type record struct {
	attempts int
	// nextRetryAt is zero once the record has been handed back for a retry
	// attempt; the attempt count survives until success or exhaustion.
	nextRetryAt time.Time
}

// Tracker keeps per-path backoff state and drives all pending retries off a
// single shared timer armed for the earliest deadline. When records come
// due, they are handed to the OnReady callback; the owner re-resolves the
// paths and re-queues the survivors.
type Tracker struct {
	cfg     Config
	kind    string
	onReady func(paths []string)

	// now is replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	records map[string]*record
	timer   *time.Timer
}

// NewTracker creates a tracker. The kind is used only for logging.
func NewTracker(kind string, cfg Config, onReady func(paths []string)) *Tracker {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Tracker{
		cfg:     cfg,
		kind:    kind,
		onReady: onReady,
		now:     time.Now,
		records: make(map[string]*record),
	}
}

// MarkFailed records a recoverable failure for path and schedules a retry.
// It returns false when the attempt limit is exceeded and the record has
// been dropped; such a path gets no further retries until re-enqueued fresh.
func (t *Tracker) MarkFailed(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.records[path]
	if rec == nil {
		rec = &record{}
		t.records[path] = rec
	}
	rec.attempts++

	if rec.attempts > t.cfg.MaxAttempts {
		logging.Warn("%s: giving up on %s after %d attempts", t.kind, path, t.cfg.MaxAttempts)
		delete(t.records, path)
		t.rearmLocked()
		return false
	}

	delay := t.cfg.Delay(rec.attempts)
	rec.nextRetryAt = t.now().Add(delay)
	logging.Debug("%s: retry %d/%d for %s in %v", t.kind, rec.attempts, t.cfg.MaxAttempts, path, delay)
	t.rearmLocked()
	return true
}

// Clear drops the record for path, typically after a successful attempt.
// The cleared entry may have been the pending minimum, so the shared timer
// is recomputed.
func (t *Tracker) Clear(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[path]; !ok {
		return
	}
	delete(t.records, path)
	t.rearmLocked()
}

// ClearAll drops every record and disarms the timer.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = make(map[string]*record)
	t.rearmLocked()
}

// Attempts returns the recorded attempt count for path, 0 if untracked.
func (t *Tracker) Attempts(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec := t.records[path]; rec != nil {
		return rec.attempts
	}
	return 0
}

// Pending returns the number of paths awaiting a retry.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// NextRetryAt returns the scheduled retry time for path and whether a
// record exists.
func (t *Tracker) NextRetryAt(path string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec := t.records[path]; rec != nil {
		return rec.nextRetryAt, true
	}
	return time.Time{}, false
}

// rearmLocked resets the shared timer for the earliest nextRetryAt, or
// stops it when no records remain. Caller holds t.mu.
func (t *Tracker) rearmLocked() {
	var earliest time.Time
	for _, rec := range t.records {
		if rec.nextRetryAt.IsZero() {
			continue
		}
		if earliest.IsZero() || rec.nextRetryAt.Before(earliest) {
			earliest = rec.nextRetryAt
		}
	}

	if earliest.IsZero() {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		return
	}

	delay := earliest.Sub(t.now())
	if delay < 0 {
		delay = 0
	}
	if t.timer == nil {
		t.timer = time.AfterFunc(delay, t.fire)
	} else {
		t.timer.Stop()
		t.timer.Reset(delay)
	}
}

// fire collects every due record and hands the paths to the owner. The
// records themselves remain so that a follow-up failure continues the
// backoff sequence instead of restarting it.
func (t *Tracker) fire() {
	t.mu.Lock()
	now := t.now()
	var due []string
	for path, rec := range t.records {
		if rec.nextRetryAt.IsZero() {
			continue
		}
		if !rec.nextRetryAt.After(now) {
			due = append(due, path)
			rec.nextRetryAt = time.Time{}
		}
	}
	t.rearmLocked()
	t.mu.Unlock()

	if len(due) > 0 && t.onReady != nil {
		t.onReady(due)
	}
}
