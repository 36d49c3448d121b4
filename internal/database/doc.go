// Package database is the StaX catalog store: stacks, lists, elements, tags,
// favorites, playlists, ingestion history, accounts and settings, kept in a
// single SQLite file that many processes on many machines may open at once.
//
// No connection outlives an operation. Each call opens its own connection,
// sets busy_timeout and foreign_keys, runs its statements (writes inside a
// BEGIN IMMEDIATE transaction), and closes. Calls that hit SQLITE_BUSY or
// SQLITE_LOCKED are retried with a linearly growing delay; when every
// attempt is used the error wraps ErrTransientBusy. Constraint failures are
// mapped to ErrUniqueViolation, ErrForeignKeyViolation and ErrInvalidEnum.
//
// Lookups of a single row return nil and no error when the row is missing.
// Deletes and updates report whether a row was affected.
//
// WithLock serialises multi-step work across processes with the advisory
// lock from package filelock. Schema migration always runs under it.
package database
