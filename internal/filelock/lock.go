package filelock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"stax/internal/logging"
	"stax/internal/metrics"
)

var (
	// ErrTimeout is returned when the lock could not be acquired within the
	// configured attempts or wall-clock timeout.
	ErrTimeout = errors.New("filelock: timed out waiting for lock")

	// ErrIO is returned for failures other than contention, such as a
	// missing parent directory or a permission error. These are not retried.
	ErrIO = errors.New("filelock: lock file I/O error")
)

// errContended is returned by the platform tryLock when another handle holds
// the lock.
var errContended = errors.New("lock held by another handle")

// Options configures acquisition backoff.
type Options struct {
	// Timeout bounds the total time spent in Acquire.
	Timeout time.Duration
	// InitialDelay is the wait after the first contended attempt.
	InitialDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Multiplier grows the delay after every contended attempt.
	Multiplier float64
	// Jitter is the fraction of random spread applied to each wait (0.2 = ±20%).
	Jitter float64
	// MaxAttempts bounds the number of lock attempts.
	MaxAttempts int
}

// DefaultOptions returns the production backoff settings.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   1.5,
		Jitter:       0.2,
		MaxAttempts:  100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = d.InitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.Multiplier < 1 {
		o.Multiplier = d.Multiplier
	}
	if o.Jitter < 0 || o.Jitter >= 1 {
		o.Jitter = d.Jitter
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	return o
}

// state is the part of a Lock reachable from its cleanup function. It must
// not reference the Lock itself.
type state struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Lock is an exclusive advisory lock on a sentinel file. A Lock is not
// reentrant; acquiring it twice without a Release returns an error.
type Lock struct {
	st         *state
	opts       Options
	owner      string
	cleanup    runtime.Cleanup
	registered bool
}

// New returns an unlocked Lock for path. The parent directory must exist.
func New(path string, opts Options) *Lock {
	return &Lock{
		st:    &state{path: path},
		opts:  opts.withDefaults(),
		owner: uuid.NewString(),
	}
}

// Path returns the sentinel file path.
func (l *Lock) Path() string {
	return l.st.path
}

// Held reports whether this handle currently holds the lock.
func (l *Lock) Held() bool {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	return l.st.file != nil
}

// Acquire takes the lock, retrying on contention with exponential backoff.
// It returns ErrTimeout when attempts or time run out, an error wrapping
// ErrIO for non-contention failures, or ctx.Err() when ctx is done first.
func (l *Lock) Acquire(ctx context.Context) error {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()

	if l.st.file != nil {
		return fmt.Errorf("%w: %s already held by this handle", ErrIO, l.st.path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	deadline := start.Add(l.opts.Timeout)
	delay := l.opts.InitialDelay

	for attempt := 1; ; attempt++ {
		f, err := l.tryOnce()
		if err == nil {
			l.st.file = f
			l.writeDiagnostics(f)
			l.cleanup = runtime.AddCleanup(l, releaseForgotten, l.st)
			l.registered = true
			metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
			metrics.LockHeld.Inc()
			logging.Debug("Acquired lock %s after %d attempt(s) in %v", l.st.path, attempt, time.Since(start))
			return nil
		}
		if !errors.Is(err, errContended) {
			metrics.LockFailures.WithLabelValues("io").Inc()
			return err
		}

		metrics.LockAttempts.Inc()

		if attempt >= l.opts.MaxAttempts || !time.Now().Before(deadline) {
			metrics.LockFailures.WithLabelValues("timeout").Inc()
			logging.Warn("Timed out waiting for lock %s after %d attempts (%v)", l.st.path, attempt, time.Since(start))
			return fmt.Errorf("%w: %s after %d attempts", ErrTimeout, l.st.path, attempt)
		}

		wait := l.backoff(delay)
		if remaining := time.Until(deadline); wait > remaining {
			wait = remaining
		}
		logging.Debug("Lock %s is busy, retrying in %v (attempt %d/%d)", l.st.path, wait, attempt, l.opts.MaxAttempts)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.LockFailures.WithLabelValues("canceled").Inc()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * l.opts.Multiplier)
		if delay > l.opts.MaxDelay {
			delay = l.opts.MaxDelay
		}
	}
}

// tryOnce opens the sentinel and attempts a single non-blocking lock. It
// returns errContended if the lock is busy or the file was replaced between
// open and lock.
func (l *Lock) tryOnce() (*os.File, error) {
	f, err := os.OpenFile(l.st.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := tryLock(f); err != nil {
		f.Close()
		if errors.Is(err, errContended) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	// A previous holder may have removed the sentinel after we opened it, in
	// which case we locked an orphaned inode.
	held, err := f.Stat()
	if err != nil {
		unlock(f)
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	current, err := os.Stat(l.st.path)
	if err != nil || !os.SameFile(held, current) {
		unlock(f)
		f.Close()
		return nil, errContended
	}

	return f, nil
}

// backoff is the wait before the next attempt: d with jitter applied, never
// above MaxDelay.
func (l *Lock) backoff(d time.Duration) time.Duration {
	return min(l.jittered(d), l.opts.MaxDelay)
}

func (l *Lock) jittered(d time.Duration) time.Duration {
	if l.opts.Jitter == 0 {
		return d
	}
	spread := 1 + l.opts.Jitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * spread)
}

func (l *Lock) writeDiagnostics(f *os.File) {
	host, _ := os.Hostname()
	info := fmt.Sprintf("time=%s\npid=%d\nhost=%s\nowner=%s\n",
		time.Now().UTC().Format(time.RFC3339Nano), os.Getpid(), host, l.owner)

	// Writes go through the locked handle; on windows the locked byte range
	// lies beyond the content so the write is not blocked.
	if err := f.Truncate(0); err != nil {
		logging.Debug("Could not truncate lock file %s: %v", l.st.path, err)
		return
	}
	if _, err := f.WriteAt([]byte(info), 0); err != nil {
		logging.Debug("Could not write lock diagnostics to %s: %v", l.st.path, err)
	}
}

// Release unlocks and closes the sentinel and attempts to remove it.
// Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()

	if l.registered {
		l.cleanup.Stop()
		l.registered = false
	}
	return l.st.release()
}

func releaseForgotten(st *state) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.file != nil {
		logging.Warn("Releasing lock %s that was never released", st.path)
		_ = st.release()
	}
}

// release must be called with st.mu held.
func (st *state) release() error {
	if st.file == nil {
		return nil
	}
	f := st.file
	st.file = nil
	metrics.LockHeld.Dec()

	// Unlink while still locked so a waiter that opened the old inode
	// fails its identity check and retries against a fresh file.
	removeErr := os.Remove(st.path)

	unlockErr := unlock(f)
	closeErr := f.Close()

	// Windows refuses to delete an open file; retry once it is closed.
	if removeErr != nil && !os.IsNotExist(removeErr) {
		if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
			logging.Debug("Could not remove lock file %s: %v", st.path, err)
		}
	}

	if unlockErr != nil {
		return fmt.Errorf("%w: unlock %s: %v", ErrIO, st.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, st.path, closeErr)
	}
	return nil
}

// With acquires the lock at path, runs fn and releases the lock on every
// exit path, including a panic in fn.
func With(ctx context.Context, path string, opts Options, fn func() error) (err error) {
	l := New(path, opts)
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
