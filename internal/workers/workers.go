package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride fixes the worker count regardless of the task type.
const EnvOverride = "STAX_WORKERS"

// Count returns the number of workers for a task. It follows GOMAXPROCS,
// which the runtime derives from the container CPU quota.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks such as image decoding
//   - 2.0 for I/O-bound tasks such as stat calls on a network share
//
// The limit caps the count; 0 means no cap. STAX_WORKERS, when set to a
// positive integer, replaces the computed value (still subject to limit).
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
