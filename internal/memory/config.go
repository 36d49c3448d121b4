package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"

	"stax/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of the machine budget given to the Go
	// heap. The rest is left to ffmpeg and SQLite page caches.
	DefaultMemoryRatio = 0.85

	EnvLimit = "STAX_MEMORY_LIMIT"
	EnvRatio = "STAX_MEMORY_RATIO"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether a Go memory limit is in effect
	Configured bool

	// Source is "GOMEMLIMIT", EnvLimit or "none"
	Source string

	// BudgetBytes is the STAX_MEMORY_LIMIT value (0 if not set)
	BudgetBytes int64

	// GoMemLimit is the resulting soft limit in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets the Go soft memory limit for the process. Call it
// before the preview cache or an import allocates anything significant.
//
// Environment variables:
//   - GOMEMLIMIT: if set, the runtime already applied it and it wins
//   - STAX_MEMORY_LIMIT: budget for this process, in bytes or with a unit ("2GiB")
//   - STAX_MEMORY_RATIO: share of the budget for the Go heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{Source: "none"}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Debug("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	limitStr := os.Getenv(EnvLimit)
	if limitStr == "" {
		return result
	}

	budget, err := humanize.ParseBytes(limitStr)
	if err != nil || budget == 0 || budget > math.MaxInt64 {
		logging.Warn("Invalid %s %q, memory limit not configured", EnvLimit, limitStr)
		return result
	}
	result.BudgetBytes = int64(budget)

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv(EnvRatio); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse %s %q: %v, using default %.2f", EnvRatio, ratioStr, err, DefaultMemoryRatio)
		case parsed <= 0 || parsed > 1.0:
			logging.Warn("%s %q out of range (0.0-1.0), using default %.2f", EnvRatio, ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsed
		}
	}
	result.Ratio = ratio

	goMemLimit := int64(float64(result.BudgetBytes) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = EnvLimit
	result.GoMemLimit = goMemLimit

	logging.Debug("Configured GOMEMLIMIT: %s (%.1f%% of %s)",
		humanize.IBytes(uint64(goMemLimit)), ratio*100, humanize.IBytes(budget))

	return result
}
