package vault

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/metrics"
)

// ScannerConfig configures the parallel vault scanner.
type ScannerConfig struct {
	// NumWorkers is the number of parallel stat workers.
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer.
	ChannelBuffer int
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
}

// DefaultScannerConfig returns sensible defaults. Three workers is safe for
// network filesystems and still fast locally; SCAN_WORKERS overrides it.
func DefaultScannerConfig() ScannerConfig {
	numWorkers := 3
	if override := os.Getenv("SCAN_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			numWorkers = count
		}
	}

	return ScannerConfig{
		NumWorkers:    numWorkers,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

type scanJob struct {
	relPath string
	entry   fs.DirEntry
}

// Scanner walks the vault in parallel and collects note paths.
type Scanner struct {
	vault  *Vault
	config ScannerConfig

	jobs    chan scanJob
	results chan string

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	notesFound  atomic.Int64
	errorsCount atomic.Int64
}

// NewScanner creates a parallel scanner over the given vault.
func NewScanner(v *Vault, config ScannerConfig) *Scanner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		vault:   v,
		config:  config,
		jobs:    make(chan scanJob, config.ChannelBuffer),
		results: make(chan string, config.ChannelBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Scan walks the vault tree and returns the canonical paths of every note.
func (s *Scanner) Scan() ([]string, error) {
	logging.Info("Starting vault scan with %d workers", s.config.NumWorkers)
	startTime := time.Now()
	metrics.ScanRunsTotal.Inc()

	for i := 0; i < s.config.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	var paths []string
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for path := range s.results {
			paths = append(paths, path)
		}
	}()

	err := s.walkAndEnqueue()

	close(s.jobs)
	s.wg.Wait()
	close(s.results)
	collectorWg.Wait()

	duration := time.Since(startTime)
	metrics.ScanLastDuration.Set(duration.Seconds())
	metrics.ScanFilesDiscovered.Add(float64(len(paths)))
	logging.Info("Vault scan complete: %d notes in %v (errors: %d)",
		len(paths), duration, s.errorsCount.Load())

	return paths, err
}

// walkAndEnqueue walks the vault tree and sends note entries to workers.
func (s *Scanner) walkAndEnqueue() error {
	return filepath.WalkDir(s.vault.Root(), func(path string, d fs.DirEntry, err error) error {
		select {
		case <-s.ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			s.errorsCount.Add(1)
			return nil
		}

		if s.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.vault.Root(), path)
		if err != nil {
			return nil
		}
		if !IsNote(relPath) {
			return nil
		}

		select {
		case s.jobs <- scanJob{relPath: relPath, entry: d}:
		case <-s.ctx.Done():
			return fs.SkipAll
		}

		return nil
	})
}

// worker verifies entries from the jobs channel and emits canonical paths.
func (s *Scanner) worker(id int) {
	defer s.wg.Done()

	logging.Debug("Scan worker %d started", id)

	for job := range s.jobs {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Confirm the entry is still a regular file; entries can vanish
		// between the walk and here.
		info, err := job.entry.Info()
		if err != nil || info.IsDir() {
			if err != nil {
				s.errorsCount.Add(1)
			}
			continue
		}

		s.notesFound.Add(1)

		select {
		case s.results <- filepath.ToSlash(job.relPath):
		case <-s.ctx.Done():
			return
		}
	}

	logging.Debug("Scan worker %d finished", id)
}

// Stop cancels an in-progress scan.
func (s *Scanner) Stop() {
	s.cancel()
}

// Stats returns current scan statistics.
func (s *Scanner) Stats() (notes, errors int64) {
	return s.notesFound.Load(), s.errorsCount.Load()
}
