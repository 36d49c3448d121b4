// Package filelock provides cross-process advisory locking through a
// sentinel file.
//
// The catalog database usually lives on a shared volume and is opened
// directly by every workstation, so short multi-statement critical sections
// (schema migration, bulk imports) are serialised with an OS-level exclusive
// lock on a sibling file such as catalog.db.lock. The lock primitive is
// flock(2) on unix and LockFileEx on windows; the behaviour seen by callers
// is the same on both.
//
// Acquisition is non-blocking at the OS level and retried with exponential
// backoff and jitter until MaxAttempts or Timeout is reached, whichever comes
// first:
//
//	err := filelock.With(ctx, "/mnt/pipeline/catalog.db.lock", filelock.DefaultOptions(), func() error {
//	    return migrate(ctx)
//	})
//
// While held, the sentinel contains the acquisition time, PID, host name and
// a random owner token. The content is informational only; the OS lock is the
// sole source of truth. Release unlocks, closes and best-effort removes the
// sentinel.
package filelock
