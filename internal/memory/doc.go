// Package memory keeps stax within a memory budget on shared workstations
// and render nodes.
//
// [ConfigureFromEnv] turns STAX_MEMORY_LIMIT into a Go soft memory limit
// (GOMEMLIMIT), keeping a share free for ffmpeg subprocesses:
//
//	STAX_MEMORY_LIMIT=4GiB STAX_MEMORY_RATIO=0.75 stax preview warm 12
//
// An explicit GOMEMLIMIT always wins.
//
// A [Monitor] samples the heap against that limit. Batch work calls
// [Monitor.Wait] between batches; it blocks while usage is above the
// critical water mark and resumes once usage falls below the high water
// mark. With no limit configured the monitor never pauses.
//
// The stax_memory_usage_ratio and stax_memory_paused gauges expose the
// monitor's state.
package memory
