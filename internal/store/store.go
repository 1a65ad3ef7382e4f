package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// Store persists derived note content in sqlite and keeps a full in-memory
// copy of every record. Point lookups are served synchronously from the
// cache; writes go through ApplyBatch, one transaction per batch cycle.
type Store struct {
	db     *sql.DB
	dbPath string

	mu    sync.RWMutex
	cache map[string]*Record
}

// Open opens (or creates) the content database at dbPath and loads the
// record cache. The parent directory must exist and be writable.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Content store path: %s", dbPath)

	// busy_timeout prevents "database is locked" errors under WAL
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to content store: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
		cache:  make(map[string]*Record),
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after init failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize content store schema: %w", err)
	}

	if err := s.loadCache(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after cache load failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to load content cache: %w", err)
	}

	logging.Info("Content store initialized with %d records", s.Len())
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS note_content (
		path TEXT PRIMARY KEY,
		preview TEXT,
		preview_mtime INTEGER NOT NULL DEFAULT 0,
		thumbnail TEXT,
		thumbnail_mtime INTEGER NOT NULL DEFAULT 0,
		tags TEXT,
		tags_mtime INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		metadata_mtime INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_note_content_updated ON note_content(updated_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// loadCache reads every row into the in-memory record map.
func (s *Store) loadCache(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_cache", start, err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, preview, preview_mtime, thumbnail, thumbnail_mtime,
		       tags, tags_mtime, metadata, metadata_mtime
		FROM note_content
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cache := make(map[string]*Record)
	for rows.Next() {
		var rec Record
		var preview, thumbnail, tagsJSON, metadataJSON sql.NullString
		if err = rows.Scan(&rec.Path, &preview, &rec.PreviewMTime, &thumbnail, &rec.ThumbnailMTime,
			&tagsJSON, &rec.TagsMTime, &metadataJSON, &rec.MetadataMTime); err != nil {
			return err
		}
		rec.Preview = preview.String
		rec.Thumbnail = thumbnail.String
		if tagsJSON.Valid && tagsJSON.String != "" {
			if jsonErr := json.Unmarshal([]byte(tagsJSON.String), &rec.Tags); jsonErr != nil {
				logging.Warn("Corrupt tags for %s, dropping: %v", rec.Path, jsonErr)
			}
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			var meta NoteMetadata
			if jsonErr := json.Unmarshal([]byte(metadataJSON.String), &meta); jsonErr != nil {
				logging.Warn("Corrupt metadata for %s, dropping: %v", rec.Path, jsonErr)
			} else {
				rec.Metadata = &meta
			}
		}
		cache[rec.Path] = &rec
	}
	if err = rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()
	metrics.StoreRecordsCached.Set(float64(len(cache)))
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a copy of the record for path, or nil when none exists. This
// is the synchronous point lookup the schedulers call per item; it never
// touches the database.
func (s *Store) Get(path string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.cache[path]
	if !ok {
		return nil
	}
	cp := *rec
	if rec.Tags != nil {
		cp.Tags = append([]string(nil), rec.Tags...)
	}
	if rec.Metadata != nil {
		meta := *rec.Metadata
		cp.Metadata = &meta
	}
	return &cp
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Paths returns a snapshot of every known note path.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.cache))
	for p := range s.cache {
		paths = append(paths, p)
	}
	return paths
}

// ApplyBatch writes a batch cycle's updates in one transaction. An update
// whose ExpectedMTime no longer matches the stored provenance mtime is
// skipped: some fresher attempt already wrote that kind. Returns the number
// of updates applied.
func (s *Store) ApplyBatch(ctx context.Context, updates []ContentUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("apply_batch", start, err) }()
	metrics.StoreBatchSize.Observe(float64(len(updates)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	applied := make([]ContentUpdate, 0, len(updates))
	for i := range updates {
		u := &updates[i]

		s.mu.RLock()
		current := s.cache[u.Path].KindMTime(u.Kind)
		s.mu.RUnlock()
		if current != u.ExpectedMTime {
			logging.Debug("Skipping stale %s update for %s (stored mtime %d, expected %d)",
				u.Kind, u.Path, current, u.ExpectedMTime)
			continue
		}

		if err = s.applyOne(tx, u); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return 0, err
		}
		applied = append(applied, *u)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	s.mu.Lock()
	for i := range applied {
		s.applyToCacheLocked(&applied[i])
	}
	metrics.StoreRecordsCached.Set(float64(len(s.cache)))
	s.mu.Unlock()

	return len(applied), nil
}

// applyOne executes the upsert for one sparse update inside tx.
func (s *Store) applyOne(tx *sql.Tx, u *ContentUpdate) error {
	var query string
	var content interface{}

	switch u.Kind {
	case KindPreview:
		query = `
		INSERT INTO note_content (path, preview, preview_mtime, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			preview = COALESCE(excluded.preview, note_content.preview),
			preview_mtime = excluded.preview_mtime,
			updated_at = strftime('%s', 'now')
		`
		content = nullable(u.Preview)
	case KindThumbnail:
		query = `
		INSERT INTO note_content (path, thumbnail, thumbnail_mtime, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			thumbnail = COALESCE(excluded.thumbnail, note_content.thumbnail),
			thumbnail_mtime = excluded.thumbnail_mtime,
			updated_at = strftime('%s', 'now')
		`
		content = nullable(u.Thumbnail)
	case KindTags:
		query = `
		INSERT INTO note_content (path, tags, tags_mtime, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			tags = COALESCE(excluded.tags, note_content.tags),
			tags_mtime = excluded.tags_mtime,
			updated_at = strftime('%s', 'now')
		`
		if u.Tags != nil {
			data, err := json.Marshal(*u.Tags)
			if err != nil {
				return fmt.Errorf("failed to encode tags for %s: %w", u.Path, err)
			}
			content = string(data)
		}
	case KindMetadata:
		query = `
		INSERT INTO note_content (path, metadata, metadata_mtime, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			metadata = COALESCE(excluded.metadata, note_content.metadata),
			metadata_mtime = excluded.metadata_mtime,
			updated_at = strftime('%s', 'now')
		`
		if u.Metadata != nil {
			data, err := json.Marshal(u.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", u.Path, err)
			}
			content = string(data)
		}
	default:
		return fmt.Errorf("unknown content kind %q", u.Kind)
	}

	// The transaction controls the operation's lifecycle.
	_, err := tx.ExecContext(context.Background(), query, u.Path, content, u.ProcessedMTime)
	return err
}

// applyToCacheLocked folds one committed update into the cache. Caller
// holds s.mu.
func (s *Store) applyToCacheLocked(u *ContentUpdate) {
	rec, ok := s.cache[u.Path]
	if !ok {
		rec = &Record{Path: u.Path}
		s.cache[u.Path] = rec
	}

	switch u.Kind {
	case KindPreview:
		if u.Preview != nil {
			rec.Preview = *u.Preview
		}
		rec.PreviewMTime = u.ProcessedMTime
	case KindThumbnail:
		if u.Thumbnail != nil {
			rec.Thumbnail = *u.Thumbnail
		}
		rec.ThumbnailMTime = u.ProcessedMTime
	case KindTags:
		if u.Tags != nil {
			rec.Tags = append([]string(nil), *u.Tags...)
		}
		rec.TagsMTime = u.ProcessedMTime
	case KindMetadata:
		if u.Metadata != nil {
			meta := *u.Metadata
			rec.Metadata = &meta
		}
		rec.MetadataMTime = u.ProcessedMTime
	}
}

// ClearKind wipes one kind's content and provenance for every note.
func (s *Store) ClearKind(ctx context.Context, kind string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_kind", start, err) }()

	var query string
	switch kind {
	case KindPreview:
		query = `UPDATE note_content SET preview = NULL, preview_mtime = 0, updated_at = strftime('%s', 'now')`
	case KindThumbnail:
		query = `UPDATE note_content SET thumbnail = NULL, thumbnail_mtime = 0, updated_at = strftime('%s', 'now')`
	case KindTags:
		query = `UPDATE note_content SET tags = NULL, tags_mtime = 0, updated_at = strftime('%s', 'now')`
	case KindMetadata:
		query = `UPDATE note_content SET metadata = NULL, metadata_mtime = 0, updated_at = strftime('%s', 'now')`
	default:
		return fmt.Errorf("unknown content kind %q", kind)
	}

	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err = s.db.ExecContext(opCtx, query); err != nil {
		return err
	}

	s.mu.Lock()
	for _, rec := range s.cache {
		switch kind {
		case KindPreview:
			rec.Preview = ""
			rec.PreviewMTime = 0
		case KindThumbnail:
			rec.Thumbnail = ""
			rec.ThumbnailMTime = 0
		case KindTags:
			rec.Tags = nil
			rec.TagsMTime = 0
		case KindMetadata:
			rec.Metadata = nil
			rec.MetadataMTime = 0
		}
	}
	s.mu.Unlock()

	logging.Info("Cleared %s content for all notes", kind)
	return nil
}

// Delete removes records for notes that no longer exist.
func (s *Store) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("delete", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if _, err = tx.ExecContext(context.Background(),
			`DELETE FROM note_content WHERE path = ?`, path); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, path := range paths {
		delete(s.cache, path)
	}
	metrics.StoreRecordsCached.Set(float64(len(s.cache)))
	s.mu.Unlock()

	return nil
}

// Vacuum optimizes the database file.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// nullable maps a nil string pointer to a SQL NULL.
func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// recordQuery records store query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)
}
