package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
)

func busyErr() error {
	return sqlite3.Error{Code: sqlite3.ErrBusy}
}

func TestRecordQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{name: "successful query", operation: "test_operation"},
		{name: "failed query", operation: "test_operation", err: errors.New("test error")},
		{name: "empty operation name", operation: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// Must not panic.
			recordQuery(tt.operation, time.Now(), tt.err)
		})
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	got := Options{JournalMode: " wal "}.withDefaults()
	if got.BusyTimeout != DefaultBusyTimeout {
		t.Errorf("BusyTimeout = %v, want %v", got.BusyTimeout, DefaultBusyTimeout)
	}
	if got.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", got.MaxRetries, DefaultMaxRetries)
	}
	if got.JournalMode != "WAL" {
		t.Errorf("JournalMode = %q, want WAL", got.JournalMode)
	}

	got = Options{}.withDefaults()
	if got.JournalMode != DefaultJournalMode {
		t.Errorf("JournalMode = %q, want %q", got.JournalMode, DefaultJournalMode)
	}
	// A zero delay is allowed and kept.
	if got.RetryDelay != 0 {
		t.Errorf("RetryDelay = %v, want 0", got.RetryDelay)
	}
}

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	dsn := buildDSN("/data/stax.db", 30*time.Second)
	for _, want := range []string{"/data/stax.db?", "_busy_timeout=30000", "_foreign_keys=1", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestRetryBusy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		maxRetries  int
		failures    int
		failWith    error
		wantCalls   int
		wantErr     bool
		wantBusyErr bool
		wantOrigErr bool
	}{
		{name: "succeeds first time", maxRetries: 3, failures: 0, wantCalls: 1},
		{name: "succeeds after busy", maxRetries: 3, failures: 2, failWith: busyErr(), wantCalls: 3},
		{name: "exhausted", maxRetries: 3, failures: 10, failWith: busyErr(), wantCalls: 3, wantErr: true, wantBusyErr: true},
		{name: "single attempt", maxRetries: 1, failures: 10, failWith: busyErr(), wantCalls: 1, wantErr: true, wantBusyErr: true},
		{name: "non-busy error not retried", maxRetries: 5, failures: 10, failWith: errors.New("syntax error"), wantCalls: 1, wantErr: true, wantOrigErr: true},
		{name: "locked message retried", maxRetries: 2, failures: 1, failWith: errors.New("database is locked"), wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := retryBusy(context.Background(), "test_retry", tt.maxRetries, 0, func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantBusyErr {
				if !errors.Is(err, ErrTransientBusy) {
					t.Errorf("err = %v, want ErrTransientBusy", err)
				}
				var se sqlite3.Error
				if !errors.As(err, &se) || se.Code != sqlite3.ErrBusy {
					t.Errorf("err = %v should wrap the driver error", err)
				}
			}
			if tt.wantOrigErr && !errors.Is(err, tt.failWith) {
				t.Errorf("err = %v, want %v", err, tt.failWith)
			}
		})
	}
}

func TestRetryBusyLinearBackoff(t *testing.T) {
	t.Parallel()

	delay := 5 * time.Millisecond
	start := time.Now()
	_ = retryBusy(context.Background(), "test_backoff", 4, delay, func() error {
		return busyErr()
	})
	// Waits of 1, 2 and 3 delays between four attempts.
	if elapsed := time.Since(start); elapsed < 6*delay {
		t.Errorf("elapsed %v, want at least %v", elapsed, 6*delay)
	}
}

func TestRetryBusyContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryBusy(ctx, "test_cancel", 10, time.Hour, func() error {
		calls++
		cancel()
		return busyErr()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsBusy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"wrapped busy", fmt.Errorf("op: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"locked message", errors.New("database is locked"), true},
		{"table locked message", errors.New("database table is locked: stacks"), true},
		{"other", errors.New("no such table"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isBusy(tt.err); got != tt.want {
				t.Errorf("isBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	constraint := func(ext sqlite3.ErrNoExtended) error {
		return sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: ext}
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", constraint(sqlite3.ErrConstraintUnique), ErrUniqueViolation},
		{"primary key", constraint(sqlite3.ErrConstraintPrimaryKey), ErrUniqueViolation},
		{"foreign key", constraint(sqlite3.ErrConstraintForeignKey), ErrForeignKeyViolation},
		{"check", constraint(sqlite3.ErrConstraintCheck), ErrInvalidEnum},
		{"not null", constraint(sqlite3.ErrConstraintNotNull), nil},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify(tt.err)
			if tt.want == nil {
				if got != tt.err {
					t.Errorf("classify(%v) = %v, want unchanged", tt.err, got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
			var se sqlite3.Error
			if !errors.As(got, &se) {
				t.Errorf("classify(%v) lost the driver error", tt.err)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}
