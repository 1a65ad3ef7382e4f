package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"notebook-navigator/internal/content"
	"notebook-navigator/internal/retry"
	"notebook-navigator/internal/scheduler"
	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

func setupHandlers(t *testing.T, notes map[string]string) (*Handlers, *mux.Router, *store.Store) {
	t.Helper()

	root := t.TempDir()
	for rel, text := range notes {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
	}
	v, err := vault.Open(root)
	if err != nil {
		t.Fatal(err)
	}

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	base := scheduler.Config{
		QueueBatchSize: 50,
		ParallelLimit:  4,
		DebounceDelay:  time.Millisecond,
		Retry:          retry.DefaultConfig(),
		Settings:       settings.Default(),
	}
	m := content.NewManager(v, st, base, content.NewPreviewProvider(v))
	t.Cleanup(m.Stop)

	h := New(st, m, v, nil)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return h, router, st
}

func TestReadinessFlipsOnSetReady(t *testing.T) {
	h, router, _ := setupHandlers(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before ready = %d, want 503", rec.Code)
	}

	h.SetReady()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz after ready = %d, want 200", rec.Code)
	}
}

func TestHealthCheckReportsState(t *testing.T) {
	h, router, _ := setupHandlers(t, nil)
	h.SetReady()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("status = %q ready = %v", resp.Status, resp.Ready)
	}
	if resp.GoVersion == "" || resp.NumCPU == 0 {
		t.Error("system info missing from health response")
	}
}

func TestLivenessAlwaysOK(t *testing.T) {
	_, router, _ := setupHandlers(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("livez = %d, want 200", rec.Code)
	}
}

func TestStatusListsSchedulers(t *testing.T) {
	_, router, _ := setupHandlers(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Schedulers) != 1 || resp.Schedulers[0].Kind != store.KindPreview {
		t.Errorf("schedulers = %+v, want one preview entry", resp.Schedulers)
	}
	if resp.Build.GoVersion == "" {
		t.Error("build info missing")
	}
}

func TestGetNote(t *testing.T) {
	h, router, st := setupHandlers(t, map[string]string{
		"folder/note.md": "hello world\n",
	})
	h.SetReady()

	if _, err := st.ApplyBatch(context.Background(), []store.ContentUpdate{{
		Path:           "folder/note.md",
		Kind:           store.KindPreview,
		Preview:        strPtr("hello world"),
		ProcessedMTime: 111,
	}}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/folder/note.md", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get note = %d, want 200", rec.Code)
	}
	var got store.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Preview != "hello world" || got.Path != "folder/note.md" {
		t.Errorf("record = %+v", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/missing.md", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", rec.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router, st := setupHandlers(t, nil)

	for _, p := range []string{"b.md", "a.md"} {
		if _, err := st.ApplyBatch(context.Background(), []store.ContentUpdate{{
			Path: p, Kind: store.KindPreview, Preview: strPtr("x"), ProcessedMTime: 1,
		}}); err != nil {
			t.Fatal(err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list notes = %d, want 200", rec.Code)
	}
	var resp struct {
		Count int      `json:"count"`
		Paths []string `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Count != 2 || len(resp.Paths) != 2 || resp.Paths[0] != "a.md" {
		t.Errorf("response = %+v, want sorted [a.md b.md]", resp)
	}
}

func strPtr(s string) *string { return &s }
