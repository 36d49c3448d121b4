// Package metrics provides Prometheus instrumentation for stax.
//
// All metrics are prefixed with "stax_" and registered with the default
// registry through promauto. stax runs as short-lived command invocations
// with no listening process, so metrics are exported by writing the default
// gatherer to a node_exporter textfile with [WriteTextfile] when the
// STAX_METRICS_FILE setting is present.
//
// # Metric Categories
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of catalog operations by operation and status
//   - DBQueryDuration: Histogram of operation duration including busy retries
//   - DBBusyRetries: Counter of retries caused by SQLITE_BUSY or SQLITE_LOCKED
//   - DBBusyExhausted: Counter of operations that gave up after retrying
//   - DBRowsAffected: Histogram of rows touched by writes
//   - DBSizeBytes: Gauge of the catalog file size
//
// ## Advisory Lock Metrics
//
//   - LockAcquireDuration: Histogram of time spent waiting for the lock
//   - LockAttempts: Counter of attempts that found the lock held elsewhere
//   - LockFailures: Counter of failed acquisitions by reason (timeout/io/canceled)
//   - LockHeld: Gauge of locks currently held by the process
//
// ## Preview Metrics
//
//   - PreviewCacheHits, PreviewCacheMisses: Counters of cache lookups
//   - PreviewCacheEntries, PreviewCacheBytes, PreviewCacheEvictions: Gauges
//     mirroring the cache statistics
//   - PreviewDecodeDuration: Histogram of image decode time by status
//
// ## Catalog Metrics
//
//   - CatalogEntities: Gauge of row counts per entity, updated by [Collector]
//   - LibraryImportFiles: Counter of files processed by library imports
//
// ## Memory Metrics
//
//   - MemoryUsageRatio: Gauge of heap allocation over the configured limit
//   - MemoryPaused: Gauge set to 1 while preview work waits for memory
//
// ## Filesystem Metrics
//
// Recorded through the observer returned by [NewFilesystemObserver]:
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors
//   - FilesystemRetryDuration
//
// # Usage
//
//	metrics.InitializeMetrics()
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	defer metrics.WriteTextfile("/var/lib/node_exporter/stax.prom")
//
// # Prometheus Queries
//
// Busy retry rate by operation:
//
//	sum(rate(stax_db_busy_retries_total[5m])) by (operation)
//
// Lock wait P95:
//
//	histogram_quantile(0.95, sum(rate(stax_lock_acquire_duration_seconds_bucket[5m])) by (le))
//
// Preview cache hit rate:
//
//	rate(stax_preview_cache_hits_total[5m]) /
//	(rate(stax_preview_cache_hits_total[5m]) + rate(stax_preview_cache_misses_total[5m]))
package metrics
