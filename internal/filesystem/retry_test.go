package filesystem

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts map[string]int
	success  map[string]int
	failures map[string]int
	stale    map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		attempts: map[string]int{},
		success:  map[string]int{},
		failures: map[string]int{},
		stale:    map[string]int{},
	}
}

func (r *recordingObserver) ObserveRetryAttempt(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[op]++
}

func (r *recordingObserver) ObserveRetrySuccess(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success[op]++
}

func (r *recordingObserver) ObserveRetryFailure(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op]++
}

func (r *recordingObserver) ObserveRetryDuration(string, float64) {}

func (r *recordingObserver) ObserveStaleError(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[op]++
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	obs := newRecordingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("stat", "/nfs/plate.exr", fastConfig(), func(string) (int, error) {
		calls++
		if calls < 3 {
			return 0, &os.PathError{Op: "stat", Path: "/nfs/plate.exr", Err: syscall.ESTALE}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale["stat"] != 2 || obs.attempts["stat"] != 2 || obs.success["stat"] != 1 {
		t.Errorf("observer = stale:%d attempts:%d success:%d, want 2/2/1",
			obs.stale["stat"], obs.attempts["stat"], obs.success["stat"])
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("open", "/nfs/plate.exr", fastConfig(), func(string) (int, error) {
		calls++
		return 0, syscall.ESTALE
	})
	if err != syscall.ESTALE {
		t.Errorf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if obs.failures["open"] != 1 {
		t.Errorf("failures = %d, want 1", obs.failures["open"])
	}
	if obs.attempts["open"] != 3 {
		t.Errorf("attempts = %d, want 3", obs.attempts["open"])
	}
}

func TestWithRetry_NoObserver(t *testing.T) {
	SetObserver(nil)

	_, err := withRetry("stat", "/x", fastConfig(), func(string) (int, error) {
		return 0, syscall.ESTALE
	})
	if err == nil {
		t.Error("expected error")
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v, want nil", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}
}

func TestStatWithRetry_NotExist(t *testing.T) {
	obs := withObserver(t)
	nonExistent := filepath.Join(t.TempDir(), "nonexistent.txt")

	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
	}

	start := time.Now()
	info, err := StatWithRetry(nonExistent, config)
	elapsed := time.Since(start)

	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want os.IsNotExist", err)
	}
	if info != nil {
		t.Error("StatWithRetry() returned non-nil FileInfo for non-existent file")
	}
	if elapsed > 40*time.Millisecond {
		t.Errorf("StatWithRetry took %v, should not retry non-NFS errors", elapsed)
	}
	if obs.attempts["stat"] != 0 {
		t.Errorf("retry attempts = %d, want 0", obs.attempts["stat"])
	}
}

func TestOpenWithRetry_Success(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	content := []byte("test content")
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	file, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v, want nil", err)
	}
	defer file.Close()

	buf := make([]byte, len(content))
	n, err := file.Read(buf)
	if err != nil {
		t.Errorf("file.Read() error = %v", err)
	}
	if n != len(content) || !bytes.Equal(buf, content) {
		t.Errorf("file.Read() content = %q, want %q", string(buf[:n]), string(content))
	}
}

func TestOpenWithRetry_NotExist(t *testing.T) {
	file, err := OpenWithRetry(filepath.Join(t.TempDir(), "missing"), fastConfig())
	if file != nil {
		file.Close()
		t.Error("OpenWithRetry() returned non-nil file for non-existent file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("OpenWithRetry() error = %v, want os.IsNotExist", err)
	}
}

func TestReadDirWithRetry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.exr", "a.exr"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ReadDirWithRetry(dir, fastConfig())
	if err != nil {
		t.Fatalf("ReadDirWithRetry() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "a.exr" {
		t.Errorf("ReadDirWithRetry() = %v, want [a.exr b.exr]", entries)
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	testFile := filepath.Join(b.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}

	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := StatWithRetry(testFile, config); err != nil {
			b.Fatalf("StatWithRetry error: %v", err)
		}
	}
}

func BenchmarkNativeOsStat(b *testing.B) {
	testFile := filepath.Join(b.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		b.Fatalf("Failed to create test file: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := os.Stat(testFile); err != nil {
			b.Fatalf("os.Stat error: %v", err)
		}
	}
}
