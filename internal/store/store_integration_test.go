package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func strPtr(s string) *string { return &s }

func TestApplyBatchAndGet(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	updates := []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("hello world"), ProcessedMTime: 100},
		{Path: "a.md", Kind: KindTags, Tags: &[]string{"work", "todo"}, ProcessedMTime: 100},
		{Path: "b.md", Kind: KindMetadata, Metadata: &NoteMetadata{Name: "B", Created: "2024-01-01"}, ProcessedMTime: 50},
	}

	applied, err := s.ApplyBatch(context.Background(), updates)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if applied != 3 {
		t.Errorf("applied = %d, want 3", applied)
	}

	rec := s.Get("a.md")
	if rec == nil {
		t.Fatal("Get(a.md) = nil")
	}
	if rec.Preview != "hello world" || rec.PreviewMTime != 100 {
		t.Errorf("preview = %q mtime %d", rec.Preview, rec.PreviewMTime)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "work" {
		t.Errorf("tags = %v", rec.Tags)
	}

	recB := s.Get("b.md")
	if recB == nil || recB.Metadata == nil || recB.Metadata.Name != "B" {
		t.Errorf("metadata record = %+v", recB)
	}

	if s.Get("missing.md") != nil {
		t.Error("Get on unknown path should return nil")
	}
}

func TestApplyBatchSkipsStaleUpdate(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	// First write establishes provenance mtime 100.
	if _, err := s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("v1"), ProcessedMTime: 100},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	// A stale attempt that started before that write expects mtime 0.
	applied, err := s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("stale"), ProcessedMTime: 90, ExpectedMTime: 0},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if applied != 0 {
		t.Errorf("applied = %d, want 0 (stale update skipped)", applied)
	}
	if rec := s.Get("a.md"); rec.Preview != "v1" {
		t.Errorf("preview = %q, stale write clobbered fresh content", rec.Preview)
	}

	// A current attempt expecting mtime 100 succeeds.
	applied, err = s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("v2"), ProcessedMTime: 200, ExpectedMTime: 100},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	if rec := s.Get("a.md"); rec.Preview != "v2" || rec.PreviewMTime != 200 {
		t.Errorf("record = %+v after current write", rec)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	if _, err := s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindTags, Tags: &[]string{"one"}, ProcessedMTime: 1},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	rec := s.Get("a.md")
	rec.Tags[0] = "mutated"
	rec.Preview = "mutated"

	fresh := s.Get("a.md")
	if fresh.Tags[0] != "one" || fresh.Preview != "" {
		t.Error("Get returned a shared record; mutation leaked into the cache")
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "content.db")

	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("persisted"), ProcessedMTime: 42},
		{Path: "a.md", Kind: KindTags, Tags: &[]string{"t1"}, ProcessedMTime: 42},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	rec := s2.Get("a.md")
	if rec == nil || rec.Preview != "persisted" || rec.PreviewMTime != 42 || len(rec.Tags) != 1 {
		t.Errorf("record after reopen = %+v", rec)
	}
}

func TestClearKind(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	if _, err := s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("p"), ProcessedMTime: 10},
		{Path: "a.md", Kind: KindTags, Tags: &[]string{"x"}, ProcessedMTime: 10},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if err := s.ClearKind(context.Background(), KindPreview); err != nil {
		t.Fatalf("ClearKind: %v", err)
	}

	rec := s.Get("a.md")
	if rec.Preview != "" || rec.PreviewMTime != 0 {
		t.Errorf("preview not cleared: %+v", rec)
	}
	if len(rec.Tags) != 1 || rec.TagsMTime != 10 {
		t.Errorf("tags should be untouched: %+v", rec)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	if _, err := s.ApplyBatch(context.Background(), []ContentUpdate{
		{Path: "a.md", Kind: KindPreview, Preview: strPtr("p"), ProcessedMTime: 10},
		{Path: "b.md", Kind: KindPreview, Preview: strPtr("q"), ProcessedMTime: 10},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if err := s.Delete(context.Background(), []string{"a.md"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Get("a.md") != nil {
		t.Error("a.md still present after Delete")
	}
	if s.Get("b.md") == nil {
		t.Error("b.md should survive")
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}
