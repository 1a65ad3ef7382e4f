package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"notebook-navigator/internal/content"
	"notebook-navigator/internal/memory"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

// Handlers carries the dependencies shared by all HTTP handlers.
type Handlers struct {
	store   *store.Store
	manager *content.Manager
	vault   *vault.Vault
	mem     *memory.Monitor

	startedAt time.Time
	ready     atomic.Bool
}

func New(st *store.Store, m *content.Manager, v *vault.Vault, mem *memory.Monitor) *Handlers {
	return &Handlers{
		store:     st,
		manager:   m,
		vault:     v,
		mem:       mem,
		startedAt: time.Now(),
	}
}

// SetReady marks the service ready to serve traffic, called once the
// initial vault scan has been queued.
func (h *Handlers) SetReady() {
	h.ready.Store(true)
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/notes", h.ListNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes/{path:.*}", h.GetNote).Methods(http.MethodGet)
}
