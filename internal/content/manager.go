package content

import (
	"context"
	"sync"

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/memory"
	"notebook-navigator/internal/scheduler"
	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

// Manager owns one scheduler per content provider and fans vault changes
// out to all of them. It is the single place that decides, on a settings
// change, which kinds merely pick up the new settings and which must be
// cleared and recomputed.
type Manager struct {
	vault *vault.Vault
	store *store.Store
	base  scheduler.Config

	mu      sync.Mutex
	current settings.Settings
	// known is every note path the manager has been told about. The store
	// only holds notes whose first batch already committed, so recompute
	// paths come from here, not from the store.
	known map[string]struct{}

	providers []Provider
	scheds    map[string]*scheduler.Scheduler
}

// NewManager wires a scheduler to every provider. base supplies the batch,
// parallelism, debounce and retry knobs shared by all kinds.
func NewManager(v *vault.Vault, st *store.Store, base scheduler.Config, providers ...Provider) *Manager {
	m := &Manager{
		vault:     v,
		store:     st,
		base:      base,
		current:   base.Settings,
		known:     make(map[string]struct{}),
		providers: providers,
		scheds:    make(map[string]*scheduler.Scheduler, len(providers)),
	}
	for _, p := range providers {
		m.scheds[p.Kind()] = scheduler.New(p, st, v)
	}
	return m
}

// SetMemoryMonitor attaches a shared backpressure gate to every scheduler.
func (m *Manager) SetMemoryMonitor(mon *memory.Monitor) {
	for _, sched := range m.scheds {
		sched.SetMemoryMonitor(mon)
	}
}

// Start begins processing on every kind with the current settings.
func (m *Manager) Start() {
	cfg := m.configLocked()
	for _, p := range m.providers {
		m.scheds[p.Kind()].StartProcessing(cfg)
	}
}

// Stop halts every scheduler, discarding in-flight work.
func (m *Manager) Stop() {
	for _, p := range m.providers {
		m.scheds[p.Kind()].StopProcessing()
	}
}

// NotesChanged queues changed note paths on every kind.
func (m *Manager) NotesChanged(paths []string) {
	if len(paths) == 0 {
		return
	}
	m.mu.Lock()
	for _, p := range paths {
		m.known[p] = struct{}{}
	}
	m.mu.Unlock()
	for _, p := range m.providers {
		m.scheds[p.Kind()].QueueFiles(paths)
	}
}

// NotesDeleted drops stored content for notes that no longer exist.
func (m *Manager) NotesDeleted(ctx context.Context, paths []string) error {
	m.mu.Lock()
	for _, p := range paths {
		delete(m.known, p)
	}
	m.mu.Unlock()
	return m.store.Delete(ctx, paths)
}

// UpdateSettings applies a settings change. Kinds whose relevant settings
// changed are cleared and fully recomputed; the rest just carry the new
// settings into subsequent batches.
func (m *Manager) UpdateSettings(ctx context.Context, next settings.Settings) error {
	m.mu.Lock()
	old := m.current
	m.current = next
	m.mu.Unlock()

	cfg := m.base
	cfg.Settings = next

	for _, p := range m.providers {
		sched := m.scheds[p.Kind()]
		if !settings.Changed(old, next, p.RelevantSettings()) {
			sched.OnSettingsChanged(cfg)
			continue
		}

		logging.Info("Settings changed for %s content, recomputing all notes", p.Kind())
		sched.StopProcessing()
		if err := m.store.ClearKind(ctx, p.Kind()); err != nil {
			return err
		}
		sched.StartProcessing(cfg)
		sched.QueueFiles(m.recomputePaths())
	}
	return nil
}

// recomputePaths is the union of the store's committed records and every
// path reported through NotesChanged. A note queued but not yet written to
// the store must not be lost across a clear-and-recompute.
func (m *Manager) recomputePaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{}, len(m.known))
	for _, p := range m.store.Paths() {
		set[p] = struct{}{}
	}
	for p := range m.known {
		set[p] = struct{}{}
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	return paths
}

// WaitForIdle blocks until every kind's scheduler has drained.
func (m *Manager) WaitForIdle() {
	for _, p := range m.providers {
		m.scheds[p.Kind()].WaitForIdle()
	}
}

// Stats returns per-kind scheduler snapshots in provider order.
func (m *Manager) Stats() []scheduler.Stats {
	stats := make([]scheduler.Stats, 0, len(m.providers))
	for _, p := range m.providers {
		stats = append(stats, m.scheds[p.Kind()].GetStats())
	}
	return stats
}

func (m *Manager) configLocked() scheduler.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.base
	cfg.Settings = m.current
	return cfg
}
