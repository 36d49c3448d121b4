package memory

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *atomic.Uint64) *Monitor {
	m := NewMonitor(Config{
		LimitBytes:        limit,
		HighWaterMark:     0.5,
		CriticalWaterMark: 0.8,
		CheckInterval:     5 * time.Millisecond,
	})
	m.read = alloc.Load
	return m
}

func TestMonitorPauseAndResume(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)

	tests := []struct {
		name       string
		alloc      uint64
		wantPaused bool
	}{
		{"below high water", 100, false},
		{"between marks stays running", 700, false},
		{"critical pauses", 850, true},
		{"between marks stays paused", 700, true},
		{"below high water resumes", 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc.Store(tt.alloc)
			m.check()
			if got := m.Paused(); got != tt.wantPaused {
				t.Errorf("Paused() = %v, want %v", got, tt.wantPaused)
			}
			if got, want := m.Usage(), float64(tt.alloc)/1000; got != want {
				t.Errorf("Usage() = %v, want %v", got, want)
			}
		})
	}
}

func TestMonitorWait(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)

	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait while running = %v", err)
	}

	alloc.Store(900)
	m.check()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait returned %v while paused", err)
	case <-time.After(20 * time.Millisecond):
	}

	alloc.Store(100)
	m.check()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait after resume = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestMonitorWaitCanceled(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(1000, &alloc)
	alloc.Store(900)
	m.check()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}

	m.Stop()
	m.Stop()
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait after Stop = %v", err)
	}
}

func TestMonitorLoop(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(950)
	m := newTestMonitor(1000, &alloc)
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for !m.Paused() {
		if time.Now().After(deadline) {
			t.Fatal("background sampling never paused")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor
	m.Start()
	m.Stop()
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait = %v", err)
	}
	if m.Paused() || m.Usage() != 0 || m.Limit() != 0 {
		t.Error("nil monitor reported state")
	}
}

func TestConfigureFromEnv(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })

	tests := []struct {
		name       string
		limit      string
		ratio      string
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{name: "unset", wantSource: "none"},
		{name: "bytes", limit: "1000000", wantSource: EnvLimit, wantLimit: 850000, wantRatio: DefaultMemoryRatio},
		{name: "with unit", limit: "1KiB", ratio: "0.5", wantSource: EnvLimit, wantLimit: 512, wantRatio: 0.5},
		{name: "ratio out of range", limit: "1000", ratio: "1.5", wantSource: EnvLimit, wantLimit: 850, wantRatio: DefaultMemoryRatio},
		{name: "ratio unparsable", limit: "1000", ratio: "most", wantSource: EnvLimit, wantLimit: 850, wantRatio: DefaultMemoryRatio},
		{name: "invalid limit", limit: "lots", wantSource: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv(EnvLimit, tt.limit)
			t.Setenv(EnvRatio, tt.ratio)

			got := ConfigureFromEnv()
			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if got.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.wantLimit)
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.wantRatio)
			}
			if got.Configured != (tt.wantLimit > 0) {
				t.Errorf("Configured = %v", got.Configured)
			}
			if tt.wantLimit > 0 {
				if applied := debug.SetMemoryLimit(-1); applied != tt.wantLimit {
					t.Errorf("runtime limit = %d, want %d", applied, tt.wantLimit)
				}
			}
		})
	}
}

func TestConfigureFromEnvGOMEMLIMITWins(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })

	debug.SetMemoryLimit(500 << 20)
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv(EnvLimit, "1GiB")

	got := ConfigureFromEnv()
	if got.Source != "GOMEMLIMIT" || got.GoMemLimit != 500<<20 {
		t.Errorf("got %+v", got)
	}
	if debug.SetMemoryLimit(-1) != 500<<20 {
		t.Error("STAX_MEMORY_LIMIT overrode GOMEMLIMIT")
	}
}
