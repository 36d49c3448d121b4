package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_db_queries_total",
			Help: "Total number of catalog operations",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stax_db_query_duration_seconds",
			Help:    "Catalog operation duration in seconds, including busy retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	DBBusyRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_db_busy_retries_total",
			Help: "Number of retries caused by a busy or locked database",
		},
		[]string{"operation"},
	)

	DBBusyExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_db_busy_exhausted_total",
			Help: "Number of operations that gave up after exhausting busy retries",
		},
		[]string{"operation"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stax_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_db_size_bytes",
			Help: "Size of the catalog database file in bytes",
		},
	)
)

// Advisory lock metrics
var (
	LockAcquireDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stax_lock_acquire_duration_seconds",
			Help:    "Time spent waiting for the advisory lock",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	LockAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stax_lock_contention_attempts_total",
			Help: "Number of lock attempts that found the lock already held",
		},
	)

	LockFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_lock_failures_total",
			Help: "Number of failed lock acquisitions by reason",
		},
		[]string{"reason"}, // "timeout", "io", "canceled"
	)

	LockHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_lock_held",
			Help: "Number of advisory locks currently held by this process",
		},
	)
)

// Preview metrics
var (
	PreviewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stax_preview_cache_hits_total",
			Help: "Total number of preview cache hits",
		},
	)

	PreviewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stax_preview_cache_misses_total",
			Help: "Total number of preview cache misses",
		},
	)

	PreviewCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_preview_cache_entries",
			Help: "Number of decoded previews held in memory",
		},
	)

	PreviewCacheEvictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_preview_cache_evictions",
			Help: "Evictions recorded by the preview cache since it was last cleared",
		},
	)

	PreviewCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_preview_cache_size_bytes",
			Help: "Approximate memory held by decoded previews",
		},
	)

	PreviewDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stax_preview_decode_duration_seconds",
			Help:    "Time spent decoding preview images",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"status"},
	)
)

// Catalog content metrics
var (
	CatalogEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stax_catalog_entities",
			Help: "Number of rows per catalog entity",
		},
		[]string{"entity"},
	)

	LibraryImportFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_library_import_files_total",
			Help: "Files processed by library imports",
		},
		[]string{"status"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_memory_usage_ratio",
			Help: "Heap allocation as a share of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stax_memory_paused",
			Help: "1 while preview work is paused for memory pressure",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale NFS handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stax_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stax_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)
