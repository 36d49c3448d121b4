package filelock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastOptions() Options {
	return Options{
		Timeout:      5 * time.Second,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1.5,
		Jitter:       0.2,
		MaxAttempts:  10000,
	}
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()

	if o.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", o.Timeout)
	}
	if o.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", o.InitialDelay)
	}
	if o.MaxDelay != 2*time.Second {
		t.Errorf("MaxDelay = %v, want 2s", o.MaxDelay)
	}
	if o.Multiplier != 1.5 {
		t.Errorf("Multiplier = %v, want 1.5", o.Multiplier)
	}
	if o.Jitter != 0.2 {
		t.Errorf("Jitter = %v, want 0.2", o.Jitter)
	}
	if o.MaxAttempts != 100 {
		t.Errorf("MaxAttempts = %d, want 100", o.MaxAttempts)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{Timeout: time.Second, Jitter: 5}.withDefaults()

	if o.Timeout != time.Second {
		t.Errorf("Timeout = %v, want explicit 1s kept", o.Timeout)
	}
	if o.Jitter != 0.2 {
		t.Errorf("Jitter = %v, want out-of-range value replaced with 0.2", o.Jitter)
	}
	if o.MaxAttempts != 100 {
		t.Errorf("MaxAttempts = %d, want 100", o.MaxAttempts)
	}
}

func TestJitterBounds(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "x.lock"), Options{Jitter: 0.2})
	base := 100 * time.Millisecond

	for i := 0; i < 1000; i++ {
		d := l.jittered(base)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("jittered(%v) = %v, want within ±20%%", base, d)
		}
	}
}

func TestBackoffNeverExceedsMaxDelay(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "x.lock"), DefaultOptions())
	maxDelay := DefaultOptions().MaxDelay

	tests := []struct {
		name    string
		delay   time.Duration
		wantMin time.Duration
	}{
		{"below cap keeps jitter", 100 * time.Millisecond, 80 * time.Millisecond},
		{"at cap", maxDelay, maxDelay * 8 / 10},
		{"near cap", maxDelay * 95 / 100, maxDelay * 76 / 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 2000; i++ {
				d := l.backoff(tt.delay)
				if d > maxDelay {
					t.Fatalf("backoff(%v) = %v, above MaxDelay %v", tt.delay, d, maxDelay)
				}
				if d < tt.wantMin {
					t.Fatalf("backoff(%v) = %v, below %v", tt.delay, d, tt.wantMin)
				}
			}
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db.lock")
	l := New(path, fastOptions())

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !l.Held() {
		t.Error("Held() = false after Acquire")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("sentinel not readable while held: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "pid="+strconv.Itoa(os.Getpid())) {
		t.Errorf("sentinel missing pid, got %q", content)
	}
	if !strings.Contains(content, "time=") {
		t.Errorf("sentinel missing timestamp, got %q", content)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if l.Held() {
		t.Error("Held() = true after Release")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("sentinel still present after Release: %v", err)
	}

	// Releasing twice is harmless.
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestAcquireTwiceOnSameHandle(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "x.lock"), fastOptions())
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	if err := l.Acquire(context.Background()); !errors.Is(err, ErrIO) {
		t.Errorf("second Acquire() error = %v, want ErrIO", err)
	}
}

func TestAcquireTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	holder := New(path, fastOptions())
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	opts := fastOptions()
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := New(path, opts).Acquire(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrTimeout", err)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want roughly the 50ms timeout", elapsed)
	}
}

func TestAcquireMaxAttempts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	holder := New(path, fastOptions())
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	opts := fastOptions()
	opts.MaxAttempts = 3
	opts.Timeout = time.Minute

	start := time.Now()
	err := New(path, opts).Acquire(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("MaxAttempts did not bound acquisition")
	}
}

func TestAcquireMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	err := New(filepath.Join(dir, "x.lock"), fastOptions()).Acquire(context.Background())

	if !errors.Is(err, ErrIO) {
		t.Fatalf("Acquire() error = %v, want ErrIO", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("I/O failure must not be reported as a timeout")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Acquire() must not create the parent directory")
	}
}

func TestAcquireContextCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	holder := New(path, fastOptions())
	if err := holder.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	opts := fastOptions()
	opts.Timeout = time.Minute
	err := New(path, opts).Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	first := New(path, fastOptions())
	if err := first.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	acquired := make(chan error, 1)
	go func() {
		second := New(path, fastOptions())
		err := second.Acquire(context.Background())
		if err == nil {
			defer second.Release()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := first.Release(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-acquired:
		if err != nil {
			t.Errorf("waiter Acquire() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

// TestMutualExclusion runs critical sections from many goroutines, each with
// its own handle on the same sentinel, and checks they never overlap.
func TestMutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")

	const workers = 8
	const rounds = 5

	var inside atomic.Int32
	var overlaps atomic.Int32
	var completed atomic.Int32
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				err := With(context.Background(), path, fastOptions(), func() error {
					if inside.Add(1) != 1 {
						overlaps.Add(1)
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					completed.Add(1)
					return nil
				})
				if err != nil {
					t.Errorf("With() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if n := overlaps.Load(); n != 0 {
		t.Errorf("%d overlapping critical sections", n)
	}
	if n := completed.Load(); n != workers*rounds {
		t.Errorf("completed = %d, want %d", n, workers*rounds)
	}
}

func TestWithReturnsFnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")
	want := errors.New("import failed")

	err := With(context.Background(), path, fastOptions(), func() error { return want })
	if !errors.Is(err, want) {
		t.Errorf("With() error = %v, want %v", err, want)
	}

	// The lock must be free again.
	l := New(path, Options{Timeout: 50 * time.Millisecond, InitialDelay: time.Millisecond})
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("lock not released after fn error: %v", err)
	}
	l.Release()
}

func TestWithReleasesOnPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lock")

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = With(context.Background(), path, fastOptions(), func() error {
			panic("boom")
		})
	}()

	l := New(path, Options{Timeout: 50 * time.Millisecond, InitialDelay: time.Millisecond})
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("lock not released after panic: %v", err)
	}
	l.Release()
}
