package handlers

import (
	"net/http"

	"notebook-navigator/internal/scheduler"
	"notebook-navigator/internal/startup"
)

// StatusResponse describes the processing state of every content kind.
type StatusResponse struct {
	Build      startup.BuildInfo `json:"build"`
	VaultRoot  string            `json:"vaultRoot"`
	Notes      int               `json:"notes"`
	Schedulers []scheduler.Stats `json:"schedulers"`
	MemoryUsed float64           `json:"memoryUsedRatio,omitempty"`
}

// Status reports build info plus a snapshot of every scheduler.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	response := StatusResponse{
		Build:      startup.GetBuildInfo(),
		VaultRoot:  h.vault.Root(),
		Notes:      h.store.Len(),
		Schedulers: h.manager.Stats(),
	}
	if h.mem != nil {
		response.MemoryUsed = h.mem.GetUsage()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
