package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"stax/internal/database/migrations"
	"stax/internal/filelock"
	"stax/internal/logging"
	"stax/internal/metrics"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultBusyTimeout = 30 * time.Second
	DefaultMaxRetries  = 5
	DefaultRetryDelay  = 100 * time.Millisecond
	DefaultJournalMode = "DELETE"
)

var journalModes = map[string]bool{
	"DELETE": true, "TRUNCATE": true, "PERSIST": true, "MEMORY": true, "WAL": true, "OFF": true,
}

// Options configures connection and retry behaviour.
type Options struct {
	// BusyTimeout is how long SQLite itself waits on a lock before
	// reporting SQLITE_BUSY.
	BusyTimeout time.Duration
	// MaxRetries is the number of attempts made while the database reports
	// busy or locked.
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between attempts.
	RetryDelay time.Duration
	// JournalMode is applied when the schema is initialised and, for the
	// non-persistent modes, on every connection. WAL needs shared memory and
	// is unsafe on network filesystems.
	JournalMode string
	// LockPath is the advisory lock sentinel. Empty means "<db path>.lock".
	LockPath string
	// Lock configures advisory lock backoff.
	Lock filelock.Options
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		BusyTimeout: DefaultBusyTimeout,
		MaxRetries:  DefaultMaxRetries,
		RetryDelay:  DefaultRetryDelay,
		JournalMode: DefaultJournalMode,
		Lock:        filelock.DefaultOptions(),
	}
}

// Database is the catalog store. It holds no open connection between
// operations: every call opens its own connection, so a Database is safe for
// concurrent use and many processes may share one file.
type Database struct {
	dbPath string
	dsn    string
	opts   Options
}

// querier is satisfied by both *sqlx.Conn and *sqlx.Tx.
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// New opens the catalog at dbPath, creating the parent directory and the
// schema if needed. The schema migration runs under the advisory lock so
// processes starting together do not race.
func New(ctx context.Context, dbPath string, opts Options) (*Database, error) {
	opts = opts.withDefaults()

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if opts.LockPath == "" {
		opts.LockPath = absPath + ".lock"
	}

	logging.Info("Database path: %s", absPath)
	if err := diagnoseDatabasePermissions(absPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	d := &Database{
		dbPath: absPath,
		dsn:    buildDSN(absPath, opts.BusyTimeout),
		opts:   opts,
	}

	if err := d.WithLock(ctx, d.initialize); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", absPath)
	return d, nil
}

func (o Options) withDefaults() Options {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = DefaultBusyTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	o.JournalMode = strings.ToUpper(strings.TrimSpace(o.JournalMode))
	if o.JournalMode == "" {
		o.JournalMode = DefaultJournalMode
	}
	return o
}

// buildDSN sets busy_timeout and foreign_keys for the driver's own
// connections, and makes every transaction BEGIN IMMEDIATE so writers queue
// on the RESERVED lock instead of failing at commit.
func buildDSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=1&_txlock=immediate",
		path, busyTimeout.Milliseconds())
}

// Path returns the absolute path of the database file.
func (d *Database) Path() string {
	return d.dbPath
}

// LockPath returns the advisory lock sentinel path.
func (d *Database) LockPath() string {
	return d.opts.LockPath
}

// WithLock runs fn while holding the advisory lock for this catalog. Use it
// around multi-statement sequences that must not interleave with another
// process, such as a bulk library import. Each statement inside fn still
// runs through its own connection and retry loop.
func (d *Database) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return filelock.With(ctx, d.opts.LockPath, d.opts.Lock, func() error {
		return fn(ctx)
	})
}

func (d *Database) initialize(ctx context.Context) error {
	if !journalModes[d.opts.JournalMode] {
		return fmt.Errorf("unsupported journal mode %q", d.opts.JournalMode)
	}

	return retryBusy(ctx, "migrate", d.opts.MaxRetries, d.opts.RetryDelay, func() error {
		db, err := sql.Open("sqlite3", d.dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		var mode string
		if err := db.QueryRowContext(ctx, "PRAGMA journal_mode = "+d.opts.JournalMode).Scan(&mode); err != nil {
			return fmt.Errorf("failed to set journal mode: %w", err)
		}
		if !strings.EqualFold(mode, d.opts.JournalMode) {
			logging.Warn("Requested journal mode %s, database reports %s", d.opts.JournalMode, mode)
		}

		return migrations.MigrateUp(db)
	})
}

// connect opens a fresh single-connection pool and applies the per-connection
// pragmas outside any transaction, where SQLite honours them.
func (d *Database) connect(ctx context.Context) (*sqlx.DB, *sqlx.Conn, error) {
	db, err := sqlx.Open("sqlite3", d.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", d.opts.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	// WAL persists in the file; the rollback-journal variants are
	// per-connection and must be set again.
	if d.opts.JournalMode != "WAL" && d.opts.JournalMode != DefaultJournalMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = "+d.opts.JournalMode)
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			conn.Close()
			db.Close()
			return nil, nil, err
		}
	}
	return db, conn, nil
}

// read runs fn on a fresh connection without an explicit transaction.
func (d *Database) read(ctx context.Context, op string, fn func(q querier) error) (err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	err = retryBusy(ctx, op, d.opts.MaxRetries, d.opts.RetryDelay, func() error {
		db, conn, err := d.connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		defer conn.Close()

		return fn(conn)
	})
	return classify(err)
}

// write runs fn inside an IMMEDIATE transaction on a fresh connection and
// commits if fn succeeds. Any failure rolls back, so a retried attempt never
// leaves partial state behind.
func (d *Database) write(ctx context.Context, op string, fn func(q querier) error) (err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	err = retryBusy(ctx, op, d.opts.MaxRetries, d.opts.RetryDelay, func() error {
		db, conn, err := d.connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		defer conn.Close()

		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error("failed to rollback %s: %v", op, rbErr)
			}
			return err
		}
		return tx.Commit()
	})
	return classify(err)
}

// retryBusy calls fn until it succeeds, fails with a non-busy error, or has
// been attempted maxRetries times. The wait before attempt n+1 is
// delay*n. On exhaustion the returned error wraps both ErrTransientBusy and
// the last driver error.
func retryBusy(ctx context.Context, op string, maxRetries int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		wait := delay * time.Duration(attempt)
		metrics.DBBusyRetries.WithLabelValues(op).Inc()
		logging.Debug("Database busy during %s, retrying in %v (attempt %d/%d)", op, wait, attempt, maxRetries)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %w)", op, ctx.Err(), err)
		case <-timer.C:
		}
	}

	metrics.DBBusyExhausted.WithLabelValues(op).Inc()
	logging.Warn("Database still busy after %d attempts during %s: %v", maxRetries, op, err)
	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrTransientBusy, maxRetries, err)
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics records the size of the database file.
func (d *Database) UpdateDBMetrics() {
	if info, err := os.Stat(d.dbPath); err == nil {
		metrics.DBSizeBytes.Set(float64(info.Size()))
	}
}

// SchemaVersion reports the applied schema version, whether a migration
// failed part way, and the latest version this binary knows.
func (d *Database) SchemaVersion(ctx context.Context) (version uint, dirty bool, latest uint, err error) {
	err = retryBusy(ctx, "schema_version", d.opts.MaxRetries, d.opts.RetryDelay, func() error {
		db, err := sql.Open("sqlite3", d.dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		version, dirty, latest, err = migrations.Status(db)
		return err
	})
	return version, dirty, latest, err
}

func rowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	metrics.DBRowsAffected.WithLabelValues(op).Observe(float64(n))
	return n, nil
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check if directory is writable by testing
	testFile := filepath.Join(dir, fmt.Sprintf(".perm-test-%d", os.Getpid()))
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// A leftover journal from a crashed writer must be writable or every
	// connection will fail to roll it back.
	for _, suffix := range []string{"-journal", "-wal"} {
		p := dbPath + suffix
		if info, err := os.Stat(p); err == nil && info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		}
	}

	return nil
}
