package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notebook-navigator/internal/content"
	"notebook-navigator/internal/handlers"
	"notebook-navigator/internal/limiter"
	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/memory"
	"notebook-navigator/internal/middleware"
	"notebook-navigator/internal/render"
	"notebook-navigator/internal/scheduler"
	"notebook-navigator/internal/startup"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	v, err := vault.Open(config.VaultDir)
	if err != nil {
		logging.Fatal("Failed to open vault: %v", err)
	}

	storeStart := time.Now()
	st, err := store.Open(context.Background(), config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize content store: %v", err)
	}
	defer st.Close()
	startup.LogStoreInit(time.Since(storeStart), st.Len())

	renderer := render.New(render.DefaultIdleTimeout)
	defer renderer.Close()

	thumbBudget := limiter.NewWeighted("thumbnail", config.ThumbnailBudget)

	mem := memory.NewMonitor(memory.DefaultConfig())
	mem.Start()
	defer mem.Stop()

	manager := content.NewManager(v, st, scheduler.Config{
		QueueBatchSize: config.QueueBatchSize,
		ParallelLimit:  config.ParallelLimit,
		DebounceDelay:  config.DebounceDelay,
		Retry:          config.Retry,
		Settings:       config.Settings,
	},
		content.NewPreviewProvider(v),
		content.NewTagsProvider(v),
		content.NewMetadataProvider(v),
		content.NewThumbnailProvider(v, renderer, thumbBudget),
	)
	manager.SetMemoryMonitor(mem)
	manager.Start()

	h := handlers.New(st, manager, v, mem)

	// Initial scan runs in the background so the HTTP surface comes up
	// immediately; readiness flips once the scan has been queued.
	go func() {
		startup.LogScanStarted(config.VaultDir)
		scanStart := time.Now()
		scanner := vault.NewScanner(v, vault.DefaultScannerConfig())
		paths, err := scanner.Scan()
		if err != nil {
			logging.Error("Vault scan error: %v", err)
		}
		startup.LogScanComplete(len(paths), time.Since(scanStart))

		pruneVanished(st, paths)
		manager.NotesChanged(paths)
		h.SetReady()
	}()

	watcher, err := vault.NewWatcher(v, vault.DefaultWatcherConfig(), func(paths []string) {
		var changed, deleted []string
		for _, p := range paths {
			if _, ok := v.Resolve(p); ok {
				changed = append(changed, p)
			} else {
				deleted = append(deleted, p)
			}
		}
		if len(deleted) > 0 {
			if err := manager.NotesDeleted(context.Background(), deleted); err != nil {
				logging.Warn("Failed to drop content for deleted notes: %v", err)
			}
		}
		manager.NotesChanged(changed)
	})
	if err != nil {
		logging.Fatal("Failed to start vault watcher: %v", err)
	}
	watcher.Start()

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.MetricsEnabled {
		go serveMetrics(config.MetricsPort)
	}

	go handleShutdown(srv, watcher, manager, mem)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

// pruneVanished drops store records for notes the scan no longer found.
func pruneVanished(st *store.Store, scanned []string) {
	seen := make(map[string]struct{}, len(scanned))
	for _, p := range scanned {
		seen[p] = struct{}{}
	}
	var gone []string
	for _, p := range st.Paths() {
		if _, ok := seen[p]; !ok {
			gone = append(gone, p)
		}
	}
	if len(gone) == 0 {
		return
	}
	logging.Info("Pruning %d notes that no longer exist", len(gone))
	if err := st.Delete(context.Background(), gone); err != nil {
		logging.Warn("Failed to prune vanished notes: %v", err)
	}
}

func serveMetrics(port string) {
	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, watcher *vault.Watcher, manager *content.Manager, mem *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping vault watcher")
	watcher.Stop()
	startup.LogShutdownStepComplete("Vault watcher stopped")

	startup.LogShutdownStep("Stopping content schedulers")
	manager.Stop()
	startup.LogShutdownStepComplete("Content schedulers stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	mem.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
