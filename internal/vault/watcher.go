package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/metrics"
)

// WatcherConfig configures the vault filesystem watcher.
type WatcherConfig struct {
	// EventsPerSecond caps how fast change notifications reach the
	// schedulers. Editors and sync tools can emit storms of events for a
	// single logical change; excess events are coalesced, not dropped.
	EventsPerSecond float64
	// Burst is the rate limiter burst size.
	Burst int
}

// DefaultWatcherConfig returns watcher defaults.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		EventsPerSecond: 50,
		Burst:           200,
	}
}

// Watcher observes a vault tree with fsnotify and reports changed note
// paths. Directory watches are added recursively as directories appear.
type Watcher struct {
	vault    *Vault
	config   WatcherConfig
	onChange func(paths []string)

	limiter *rate.Limiter
	fw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher over the vault. Changed note paths are
// delivered to onChange in batches.
func NewWatcher(v *Vault, config WatcherConfig, onChange func(paths []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		vault:    v,
		config:   config,
		onChange: onChange,
		limiter:  rate.NewLimiter(rate.Limit(config.EventsPerSecond), config.Burst),
		fw:       fw,
		pending:  make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(v.Root()); err != nil {
		_ = fw.Close()
		cancel()
		return nil, err
	}

	return w, nil
}

// Start begins delivering change events.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop tears the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.fw.Close()
	<-w.done
}

// addRecursive registers watches for dir and every subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Watcher: cannot access %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			logging.Warn("Watcher: failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				w.flush()
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				w.flush()
				return
			}
			logging.Warn("Watcher error: %v", err)
		case <-w.ctx.Done():
			w.flush()
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	metrics.WatcherEvents.WithLabelValues(event.Op.String()).Inc()

	// New directories need their own watch; their contents arrive as
	// separate events.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logging.Warn("Watcher: failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !IsNote(event.Name) {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
		return
	}

	path := w.vault.Canonical(event.Name)

	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()

	// Within budget, deliver immediately; above it, leave the path pending
	// to coalesce with the burst and flush once a token frees up.
	if w.limiter.Allow() {
		w.flush()
		return
	}

	go func() {
		if err := w.limiter.Wait(w.ctx); err != nil {
			return
		}
		w.flush()
	}()
}

// flush hands every pending path to the change callback.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	logging.Debug("Watcher: %d changed notes", len(paths))
	if w.onChange != nil {
		w.onChange(paths)
	}
}
