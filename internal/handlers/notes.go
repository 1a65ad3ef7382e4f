package handlers

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"
)

// ListNotes returns every tracked note path.
func (h *Handlers) ListNotes(w http.ResponseWriter, _ *http.Request) {
	paths := h.store.Paths()
	sort.Strings(paths)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"count": len(paths),
		"paths": paths,
	})
}

// GetNote returns the derived content record for one note.
func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	if path == "" {
		writeJSONError(w, "missing note path", http.StatusBadRequest)
		return
	}

	rec := h.store.Get(h.vault.Canonical(path))
	if rec == nil {
		writeJSONError(w, "note not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec)
}
