package content

import (
	"context"
	"fmt"
	"os"

	"notebook-navigator/internal/limiter"
	"notebook-navigator/internal/scheduler"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
	"notebook-navigator/internal/workers"
)

// Provider is one content kind's extraction strategy. It plugs into a
// scheduler as its hooks and additionally declares which settings fields
// affect its output, so the manager knows when a settings change requires
// clearing and recomputing the kind.
type Provider interface {
	scheduler.Hooks
	RelevantSettings() []string
}

// stale reports whether the stored provenance mtime for kind no longer
// matches the file on disk.
func stale(kind string, rec *store.Record, file *vault.File) bool {
	return rec.KindMTime(kind) != file.ModTime.Unix()
}

// readSem bounds concurrent note reads across every kind. The schedulers
// each cap their own parallelism, but all four run at once, so without a
// shared gate peak file I/O is four times the per-kind limit.
var readSem = limiter.NewSemaphore("note_read", workers.ForIO(32))

// readNote loads a note's text through the vault, gated by the shared read
// semaphore.
func readNote(ctx context.Context, v *vault.Vault, file *vault.File) (string, error) {
	release, err := readSem.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	data, err := os.ReadFile(v.AbsPath(file.Path))
	if err != nil {
		return "", fmt.Errorf("failed to read note %s: %w", file.Path, err)
	}
	return string(data), nil
}
