package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	"stax/internal/metrics"
)

// CreateStack inserts a stack and returns its id. A duplicate name or path
// fails with ErrUniqueViolation.
func (d *Database) CreateStack(ctx context.Context, name, path string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("stack name is required")
	}
	if path != "" {
		path = filepath.Clean(path)
	}

	var id int64
	err := d.write(ctx, "create_stack", func(q querier) error {
		res, err := q.ExecContext(ctx, "INSERT INTO stacks (name, path) VALUES (?, ?)", name, path)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create stack %q: %w", name, err)
	}
	return id, nil
}

// GetAllStacks returns every stack ordered by name.
func (d *Database) GetAllStacks(ctx context.Context) ([]Stack, error) {
	var stacks []Stack
	err := d.read(ctx, "get_all_stacks", func(q querier) error {
		stacks = stacks[:0]
		return sqlx.SelectContext(ctx, q, &stacks, "SELECT * FROM stacks ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stacks: %w", err)
	}
	return stacks, nil
}

// GetStack returns the stack with id, or nil if there is none.
func (d *Database) GetStack(ctx context.Context, id int64) (*Stack, error) {
	return d.getStack(ctx, "get_stack", "SELECT * FROM stacks WHERE id = ?", id)
}

// GetStackByPath returns the stack rooted at path, or nil if there is none.
func (d *Database) GetStackByPath(ctx context.Context, path string) (*Stack, error) {
	return d.getStack(ctx, "get_stack", "SELECT * FROM stacks WHERE path = ?", filepath.Clean(path))
}

// GetStackByName returns the stack called name, or nil if there is none.
func (d *Database) GetStackByName(ctx context.Context, name string) (*Stack, error) {
	return d.getStack(ctx, "get_stack", "SELECT * FROM stacks WHERE name = ?", name)
}

func (d *Database) getStack(ctx context.Context, op, query string, arg any) (*Stack, error) {
	var s Stack
	found := false
	err := d.read(ctx, op, func(q querier) error {
		err := sqlx.GetContext(ctx, q, &s, query, arg)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get stack: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

// DeleteStack removes a stack together with its lists and elements. It
// returns false if no stack had that id.
func (d *Database) DeleteStack(ctx context.Context, id int64) (bool, error) {
	return d.execCount(ctx, "delete_stack", "DELETE FROM stacks WHERE id = ?", id)
}

func (d *Database) execCount(ctx context.Context, op, query string, args ...any) (bool, error) {
	var n int64
	err := d.write(ctx, op, func(q querier) error {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = rowsAffected(op, res)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%s failed: %w", op, err)
	}
	return n > 0, nil
}

// CatalogStats counts the rows of every catalog table. sqlx maps the
// lower-cased column aliases onto the metrics.Stats fields.
func (d *Database) CatalogStats(ctx context.Context) (metrics.Stats, error) {
	var stats metrics.Stats
	err := d.read(ctx, "catalog_stats", func(q querier) error {
		return sqlx.GetContext(ctx, q, &stats, `
			SELECT
				(SELECT COUNT(*) FROM stacks) AS stacks,
				(SELECT COUNT(*) FROM lists) AS lists,
				(SELECT COUNT(*) FROM elements) AS elements,
				(SELECT COUNT(*) FROM favorites) AS favorites,
				(SELECT COUNT(*) FROM playlists) AS playlists,
				(SELECT COUNT(*) FROM ingestion_history) AS history`)
	})
	if err != nil {
		return metrics.Stats{}, fmt.Errorf("failed to count catalog rows: %w", err)
	}
	return stats, nil
}
