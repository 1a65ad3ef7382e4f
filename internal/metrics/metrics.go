package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_queue_depth",
			Help: "Number of paths waiting in the scheduler queue",
		},
		[]string{"kind"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_batches_total",
			Help: "Total number of batch cycles run",
		},
		[]string{"kind"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notebook_navigator_batch_duration_seconds",
			Help:    "Duration of one batch cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_items_processed_total",
			Help: "Total work items handled by the scheduler",
		},
		[]string{"kind", "status"}, // processed, failed, skipped, vanished
	)

	RetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_retries_scheduled_total",
			Help: "Total retries scheduled after recoverable failures",
		},
		[]string{"kind"},
	)

	RetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_retries_exhausted_total",
			Help: "Total items dropped after exceeding the retry attempt limit",
		},
		[]string{"kind"},
	)

	SessionsStopped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_sessions_stopped_total",
			Help: "Total times a scheduler was stopped",
		},
		[]string{"kind"},
	)
)

// Limiter metrics
var (
	LimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notebook_navigator_limiter_wait_seconds",
			Help:    "Time spent waiting to acquire a limiter permit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"limiter"},
	)

	LimiterActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_limiter_active",
			Help: "Active permits or weight currently held on a limiter",
		},
		[]string{"limiter"},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_store_queries_total",
			Help: "Total number of store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notebook_navigator_store_query_duration_seconds",
			Help:    "Store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notebook_navigator_store_batch_size",
			Help:    "Number of updates applied per batched store write",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	StoreRecordsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_store_records_cached",
			Help: "Number of derived-content records held in the in-memory cache",
		},
	)
)

// Vault metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notebook_navigator_scan_runs_total",
			Help: "Total number of vault scans",
		},
	)

	ScanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_scan_last_duration_seconds",
			Help: "Duration of the last vault scan in seconds",
		},
	)

	ScanFilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notebook_navigator_scan_files_discovered_total",
			Help: "Total number of notes discovered by vault scans",
		},
	)

	WatcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_watcher_events_total",
			Help: "Total filesystem events observed by the vault watcher",
		},
		[]string{"op"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notebook_navigator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_memory_usage_ratio",
			Help: "Current memory usage as a fraction of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notebook_navigator_memory_paused",
			Help: "1 if processing is paused due to memory pressure, 0 otherwise",
		},
	)
)

// Renderer metrics
var (
	RendererEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notebook_navigator_renderer_evictions_total",
			Help: "Total times the idle image renderer was torn down",
		},
	)

	ThumbnailsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notebook_navigator_thumbnails_rendered_total",
			Help: "Total thumbnails rendered",
		},
		[]string{"backend"}, // vips, imaging
	)
)
