package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/memory"
	"notebook-navigator/internal/metrics"
	"notebook-navigator/internal/retry"
	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
	"notebook-navigator/internal/workers"
)

// Config is the per-kind scheduler configuration supplied through
// StartProcessing and swapped by OnSettingsChanged.
type Config struct {
	// QueueBatchSize is the number of paths drained per batch cycle.
	QueueBatchSize int
	// ParallelLimit is the number of concurrent ProcessFile calls per
	// sub-batch.
	ParallelLimit int
	// DebounceDelay is the quiet window before a cycle starts.
	DebounceDelay time.Duration
	// Retry configures exponential backoff for recoverable failures.
	Retry retry.Config
	// Settings is passed through to every hook call.
	Settings settings.Settings
}

// DefaultConfig returns scheduler defaults sized to the host.
func DefaultConfig() Config {
	return Config{
		QueueBatchSize: 100,
		ParallelLimit:  workers.ForMixed(16),
		DebounceDelay:  300 * time.Millisecond,
		Retry:          retry.DefaultConfig(),
		Settings:       settings.Default(),
	}
}

// Hooks is the per-kind strategy the scheduler drives. One implementation
// exists per content kind.
type Hooks interface {
	// Kind names the content kind, used for logging and metric labels.
	Kind() string
	// NeedsProcessing decides synchronously whether an item is worth
	// scheduling, given its current stored record and a live handle.
	NeedsProcessing(rec *store.Record, file *vault.File, s settings.Settings) bool
	// ProcessFile computes the item's derived content. processed=false
	// signals a recoverable failure eligible for retry; the update may be
	// nil when there is nothing new to persist.
	ProcessFile(ctx context.Context, file *vault.File, rec *store.Record, s settings.Settings) (update *store.ContentUpdate, processed bool, err error)
}

// ContentStore is the slice of the store the scheduler needs: a synchronous
// point lookup and one batched write per cycle.
type ContentStore interface {
	Get(path string) *store.Record
	ApplyBatch(ctx context.Context, updates []store.ContentUpdate) (int, error)
}

// Resolver re-resolves a stable path identifier to a live file handle.
type Resolver interface {
	Resolve(path string) (*vault.File, bool)
}

// Scheduler owns one content kind's work queue: deduplication, debounced
// batching, parallel execution, retry scheduling, and session invalidation.
// All mutation of queue state happens under s.mu; asynchronous continuations
// re-validate the captured session before touching anything shared.
type Scheduler struct {
	hooks    Hooks
	store    ContentStore
	resolver Resolver
	mem      *memory.Monitor

	mu         sync.Mutex
	cfg        *Config
	queue      []string
	queued     map[string]struct{}
	processing map[string]struct{}
	dirty      map[string]struct{}
	session    int64
	stopped    bool
	inFlight   bool
	idleDone   chan struct{}
	debounce   *time.Timer

	ctx    context.Context
	cancel context.CancelFunc

	tracker    *retry.Tracker
	trackerCfg retry.Config
}

// New creates a scheduler for one content kind. It does nothing until
// StartProcessing supplies a configuration.
func New(hooks Hooks, st ContentStore, resolver Resolver) *Scheduler {
	idle := make(chan struct{})
	close(idle)
	return &Scheduler{
		hooks:      hooks,
		store:      st,
		resolver:   resolver,
		queued:     make(map[string]struct{}),
		processing: make(map[string]struct{}),
		dirty:      make(map[string]struct{}),
		idleDone:   idle,
	}
}

// SetMemoryMonitor attaches an optional memory backpressure gate consulted
// before each batch cycle.
func (s *Scheduler) SetMemoryMonitor(m *memory.Monitor) {
	s.mem = m
}

// Kind returns the content kind this scheduler serves.
func (s *Scheduler) Kind() string {
	return s.hooks.Kind()
}

// QueueFiles adds previously-unseen identifiers to the queue. Identifiers
// currently being processed are marked dirty and re-queued after the
// running attempt finishes. No-op while stopped.
func (s *Scheduler) QueueFiles(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	added := false
	for _, p := range paths {
		if _, busy := s.processing[p]; busy {
			s.dirty[p] = struct{}{}
			continue
		}
		if _, seen := s.queued[p]; seen {
			continue
		}
		s.queued[p] = struct{}{}
		s.queue = append(s.queue, p)
		added = true
	}
	metrics.QueueDepth.WithLabelValues(s.Kind()).Set(float64(len(s.queue)))

	if added && s.cfg != nil && !s.inFlight {
		s.armDebounceLocked()
	}
}

// StartProcessing clears the stopped flag, stores the configuration, and
// arms the debounce timer. Calling it again before the timer fires restarts
// the quiet window, coalescing bursts.
func (s *Scheduler) StartProcessing(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = false
	c := cfg
	s.cfg = &c

	if s.ctx == nil || s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	if s.tracker == nil || s.trackerCfg != cfg.Retry {
		s.tracker = retry.NewTracker(s.Kind(), cfg.Retry, s.onRetryReady)
		s.trackerCfg = cfg.Retry
	}

	s.armDebounceLocked()
}

// OnSettingsChanged swaps the configuration used by subsequent batches
// without restarting the queue. Changed retry knobs take effect immediately:
// the tracker is rebuilt, dropping backoff state accrued under the old
// configuration.
func (s *Scheduler) OnSettingsChanged(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cfg
	s.cfg = &c

	if s.tracker == nil || s.trackerCfg != cfg.Retry {
		s.tracker = retry.NewTracker(s.Kind(), cfg.Retry, s.onRetryReady)
		s.trackerCfg = cfg.Retry
	}
}

// StopProcessing advances the session, clears the queue and all tracking
// state, and cancels in-flight cooperative work. Already-running hook calls
// are disowned, not interrupted: their continuations fail the session check
// and discard their results. Idempotent.
func (s *Scheduler) StopProcessing() {
	s.mu.Lock()
	s.session++
	s.stopped = true
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.queue = nil
	s.queued = make(map[string]struct{})
	s.processing = make(map[string]struct{})
	s.dirty = make(map[string]struct{})
	if s.cancel != nil {
		s.cancel()
	}
	tracker := s.tracker
	s.mu.Unlock()

	if tracker != nil {
		tracker.ClearAll()
	}
	metrics.QueueDepth.WithLabelValues(s.Kind()).Set(0)
	metrics.SessionsStopped.WithLabelValues(s.Kind()).Inc()
}

// WaitForIdle blocks until no batch is in flight. It tolerates overlapping
// callers and batches chained while waiting.
func (s *Scheduler) WaitForIdle() {
	for {
		s.mu.Lock()
		if !s.inFlight {
			s.mu.Unlock()
			return
		}
		done := s.idleDone
		s.mu.Unlock()
		<-done
	}
}

// Stats describes the scheduler's current state for the status endpoint.
type Stats struct {
	Kind           string `json:"kind"`
	QueueDepth     int    `json:"queueDepth"`
	Processing     int    `json:"processing"`
	PendingRetries int    `json:"pendingRetries"`
	Session        int64  `json:"session"`
	Stopped        bool   `json:"stopped"`
	InFlight       bool   `json:"inFlight"`
}

// GetStats returns a snapshot of the scheduler state.
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Kind:       s.Kind(),
		QueueDepth: len(s.queue),
		Processing: len(s.processing),
		Session:    s.session,
		Stopped:    s.stopped,
		InFlight:   s.inFlight,
	}
	if s.tracker != nil {
		stats.PendingRetries = s.tracker.Pending()
	}
	return stats
}

// armDebounceLocked (re)starts the debounce timer. Caller holds s.mu.
func (s *Scheduler) armDebounceLocked() {
	delay := s.cfg.DebounceDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	sess := s.session
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(delay, func() { s.onDebounce(sess) })
}

// onDebounce starts a batch cycle if the queue is non-empty and nothing is
// already running.
func (s *Scheduler) onDebounce(sess int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || sess != s.session {
		return
	}
	if len(s.queue) == 0 || s.inFlight || s.cfg == nil {
		return
	}
	s.startBatchLocked()
}

// startBatchLocked launches a batch cycle goroutine. Caller holds s.mu.
func (s *Scheduler) startBatchLocked() {
	s.inFlight = true
	s.idleDone = make(chan struct{})
	sess := s.session
	ctx := s.ctx
	go s.runBatch(sess, ctx)
}

// onRetryReady re-resolves due retry paths and re-queues the survivors.
// Vanished notes have their retry record discarded.
func (s *Scheduler) onRetryReady(paths []string) {
	var survivors []string
	for _, p := range paths {
		file, ok := s.resolver.Resolve(p)
		if !ok {
			s.mu.Lock()
			tracker := s.tracker
			s.mu.Unlock()
			if tracker != nil {
				tracker.Clear(p)
			}
			continue
		}
		survivors = append(survivors, file.Path)
	}
	if len(survivors) > 0 {
		logging.Debug("%s: re-queueing %d retried notes", s.Kind(), len(survivors))
		s.QueueFiles(survivors)
	}
}

// workItem is one unit of a batch cycle: a live handle plus the record and
// provenance mtime captured before processing.
type workItem struct {
	path     string
	file     *vault.File
	rec      *store.Record
	expected int64
}

type workResult struct {
	update    *store.ContentUpdate
	processed bool
	ran       bool
}

// sessionValid re-checks the capture-time session against current state.
func (s *Scheduler) sessionValid(sess int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && sess == s.session
}

// runBatch executes one full batch cycle for the captured session.
func (s *Scheduler) runBatch(sess int64, ctx context.Context) {
	kind := s.Kind()
	start := time.Now()

	var marked []string
	defer s.finishBatch(sess, &marked)

	// Backpressure: hold the whole cycle while memory is critical.
	if s.mem != nil && !s.mem.WaitIfPaused() {
		return
	}

	// Step 1: drain up to QueueBatchSize identifiers from the queue head.
	s.mu.Lock()
	if s.stopped || sess != s.session || s.cfg == nil {
		s.mu.Unlock()
		return
	}
	cfg := *s.cfg
	n := cfg.QueueBatchSize
	if n <= 0 {
		n = DefaultConfig().QueueBatchSize
	}
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := append([]string(nil), s.queue[:n]...)
	s.queue = s.queue[n:]
	for _, p := range batch {
		delete(s.queued, p)
	}
	metrics.QueueDepth.WithLabelValues(kind).Set(float64(len(s.queue)))
	s.mu.Unlock()

	metrics.BatchesTotal.WithLabelValues(kind).Inc()

	// Steps 2–3: re-resolve to live handles and filter through the
	// needs-processing predicate. Vanished and already-satisfied items are
	// dropped silently: neither failure nor retry.
	items := make([]workItem, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, p := range batch {
		file, ok := s.resolver.Resolve(p)
		if !ok {
			metrics.ItemsProcessed.WithLabelValues(kind, "vanished").Inc()
			continue
		}
		// Renames may have occurred since enqueue; all later bookkeeping
		// uses the handle's current canonical path. Queue dedup keyed the
		// raw identifier, so aliases of one note can survive to this point
		// and must be collapsed here.
		if _, dup := seen[file.Path]; dup {
			metrics.ItemsProcessed.WithLabelValues(kind, "skipped").Inc()
			continue
		}
		seen[file.Path] = struct{}{}
		rec := s.store.Get(file.Path)
		if !s.hooks.NeedsProcessing(rec, file, cfg.Settings) {
			metrics.ItemsProcessed.WithLabelValues(kind, "skipped").Inc()
			continue
		}
		items = append(items, workItem{
			path:     file.Path,
			file:     file,
			rec:      rec,
			expected: rec.KindMTime(kind),
		})
	}

	if len(items) == 0 {
		return
	}

	// Step 4: mark survivors as processing.
	s.mu.Lock()
	if s.stopped || sess != s.session {
		s.mu.Unlock()
		return
	}
	for i := range items {
		s.processing[items[i].path] = struct{}{}
		marked = append(marked, items[i].path)
	}
	s.mu.Unlock()

	// Step 5: parallel sub-batches of ParallelLimit, yielding between them
	// so a large batch never monopolizes the scheduler.
	width := cfg.ParallelLimit
	if width <= 0 {
		width = 1
	}
	results := make([]workResult, len(items))
	for i := 0; i < len(items); i += width {
		if !s.sessionValid(sess) {
			break
		}
		end := i + width
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for j := i; j < end; j++ {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				it := items[j]
				update, processed, err := s.hooks.ProcessFile(ctx, it.file, it.rec, cfg.Settings)
				if err != nil {
					// A hook error is a recoverable failure for this item
					// only; the batch carries on.
					if ctx.Err() == nil {
						logging.Warn("%s: processing %s failed: %v", kind, it.path, err)
					}
					update, processed = nil, false
				}
				results[j] = workResult{update: update, processed: processed, ran: true}
			}(j)
		}
		wg.Wait()

		if end < len(items) {
			runtime.Gosched()
		}
	}

	if !s.sessionValid(sess) {
		// Stopped mid-cycle: results are disowned, not failures.
		return
	}

	// Step 6: settle retries and collect updates plus processed-timestamp
	// bookkeeping for the whole cycle.
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()

	var updates []store.ContentUpdate
	for i := range items {
		it := items[i]
		res := results[i]
		if !res.ran {
			continue
		}
		if !res.processed {
			metrics.ItemsProcessed.WithLabelValues(kind, "failed").Inc()
			if tracker != nil {
				if tracker.MarkFailed(it.path) {
					metrics.RetriesScheduled.WithLabelValues(kind).Inc()
				} else {
					metrics.RetriesExhausted.WithLabelValues(kind).Inc()
				}
			}
			continue
		}

		metrics.ItemsProcessed.WithLabelValues(kind, "processed").Inc()
		if tracker != nil {
			tracker.Clear(it.path)
		}

		update := res.update
		if update == nil {
			// Nothing new to store, but the provenance mtime still moves
			// forward so the item is not reprocessed.
			update = &store.ContentUpdate{}
		}
		update.Path = it.path
		update.Kind = kind
		update.ProcessedMTime = it.file.ModTime.Unix()
		update.ExpectedMTime = it.expected
		updates = append(updates, *update)
	}

	// Step 7: one batched write covering the whole cycle.
	if len(updates) > 0 && s.sessionValid(sess) {
		if _, err := s.store.ApplyBatch(ctx, updates); err != nil {
			if ctx.Err() == nil {
				logging.Error("%s: batched store write failed: %v", kind, err)
			}
		}
	}

	metrics.BatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// finishBatch is the batch cycle's finally-block: it unmarks processed
// items, re-queues anything that went dirty mid-processing, clears the
// in-flight flag, and chains the next cycle when work remains. All of it is
// guarded by the session check.
func (s *Scheduler) finishBatch(sess int64, marked *[]string) {
	// Collect dirty paths under the lock, resolve them outside it.
	s.mu.Lock()
	var dirtyPaths []string
	if !s.stopped && sess == s.session {
		for _, p := range *marked {
			delete(s.processing, p)
		}
		for p := range s.dirty {
			dirtyPaths = append(dirtyPaths, p)
		}
		s.dirty = make(map[string]struct{})
	}
	s.mu.Unlock()

	var requeue []string
	for _, p := range dirtyPaths {
		if file, ok := s.resolver.Resolve(p); ok {
			requeue = append(requeue, file.Path)
		}
	}

	s.mu.Lock()
	if !s.stopped && sess == s.session {
		for _, p := range requeue {
			if _, busy := s.processing[p]; busy {
				s.dirty[p] = struct{}{}
				continue
			}
			if _, seen := s.queued[p]; seen {
				continue
			}
			s.queued[p] = struct{}{}
			s.queue = append(s.queue, p)
		}
		metrics.QueueDepth.WithLabelValues(s.Kind()).Set(float64(len(s.queue)))
	}

	s.inFlight = false
	close(s.idleDone)

	if !s.stopped && sess == s.session && len(s.queue) > 0 {
		// Chain the next cycle on a fresh goroutine rather than recursing.
		s.startBatchLocked()
	}
	s.mu.Unlock()
}
