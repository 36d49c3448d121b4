package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")
	procs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"cpu bound", 1.0, 0, procs},
		{"io bound", 2.0, 0, 2 * procs},
		{"capped", 2.0, 1, 1},
		{"tiny multiplier floors at one", 0.0001, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name  string
		value string
		limit int
		want  int
	}{
		{"override used", "3", 0, 3},
		{"override capped by limit", "16", 4, 4},
		{"zero ignored", "0", 1, 1},
		{"garbage ignored", "many", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.value)
			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count with %s=%q = %d, want %d", EnvOverride, tt.value, got, tt.want)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	t.Setenv(EnvOverride, "")
	if ForCPU(0) != Count(1.0, 0) {
		t.Error("ForCPU differs from Count(1.0)")
	}
	if ForIO(0) != Count(2.0, 0) {
		t.Error("ForIO differs from Count(2.0)")
	}
	if ForIO(0) < ForCPU(0) {
		t.Error("ForIO should not be smaller than ForCPU")
	}
}
