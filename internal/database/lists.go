package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ancestorsQuery walks parent links from a list up to its top-level list and
// returns the chain top-level first.
const ancestorsQuery = `
	WITH RECURSIVE chain(id, parent_list_id, depth) AS (
		SELECT id, parent_list_id, 0 FROM lists WHERE id = ?
		UNION ALL
		SELECT l.id, l.parent_list_id, c.depth + 1
		FROM lists l JOIN chain c ON l.id = c.parent_list_id
		WHERE c.depth < 256
	)
	SELECT l.* FROM chain c JOIN lists l ON l.id = c.id
	ORDER BY c.depth DESC`

// CreateList inserts a list into a stack, optionally under parentListID,
// and returns its id. The parent must exist and belong to the same stack.
func (d *Database) CreateList(ctx context.Context, stackID int64, name string, parentListID *int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("list name is required")
	}

	var id int64
	err := d.write(ctx, "create_list", func(q querier) error {
		if parentListID != nil {
			var parentStack int64
			err := sqlx.GetContext(ctx, q, &parentStack, "SELECT stack_id FROM lists WHERE id = ?", *parentListID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: parent list %d", ErrListNotFound, *parentListID)
			}
			if err != nil {
				return err
			}
			if parentStack != stackID {
				return fmt.Errorf("%w: parent list %d is in stack %d, not %d",
					ErrListStackMismatch, *parentListID, parentStack, stackID)
			}
		}

		res, err := q.ExecContext(ctx,
			"INSERT INTO lists (stack_id, parent_list_id, name) VALUES (?, ?, ?)",
			stackID, parentListID, name)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create list %q: %w", name, err)
	}
	return id, nil
}

// GetListsByStack returns the direct children of parentListID in a stack, or
// the stack's top-level lists when parentListID is nil. It does not recurse.
// Results are ordered by name.
func (d *Database) GetListsByStack(ctx context.Context, stackID int64, parentListID *int64) ([]List, error) {
	query := "SELECT * FROM lists WHERE stack_id = ? AND parent_list_id IS NULL ORDER BY name"
	args := []any{stackID}
	if parentListID != nil {
		query = "SELECT * FROM lists WHERE stack_id = ? AND parent_list_id = ? ORDER BY name"
		args = append(args, *parentListID)
	}

	var lists []List
	err := d.read(ctx, "get_lists_by_stack", func(q querier) error {
		lists = lists[:0]
		return sqlx.SelectContext(ctx, q, &lists, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get lists for stack %d: %w", stackID, err)
	}
	return lists, nil
}

// GetSubLists returns the direct children of a list ordered by name.
func (d *Database) GetSubLists(ctx context.Context, parentListID int64) ([]List, error) {
	var lists []List
	err := d.read(ctx, "get_sub_lists", func(q querier) error {
		lists = lists[:0]
		return sqlx.SelectContext(ctx, q, &lists,
			"SELECT * FROM lists WHERE parent_list_id = ? ORDER BY name", parentListID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sub-lists of %d: %w", parentListID, err)
	}
	return lists, nil
}

// GetList returns the list with id, or nil if there is none.
func (d *Database) GetList(ctx context.Context, id int64) (*List, error) {
	var l List
	found := false
	err := d.read(ctx, "get_list", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &l, "SELECT * FROM lists WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get list %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &l, nil
}

// GetListHierarchy returns the list and its ancestors, top-level list first.
// It returns an empty slice if the list does not exist.
func (d *Database) GetListHierarchy(ctx context.Context, id int64) ([]List, error) {
	var chain []List
	err := d.read(ctx, "get_list_hierarchy", func(q querier) error {
		chain = chain[:0]
		return sqlx.SelectContext(ctx, q, &chain, ancestorsQuery, id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get hierarchy of list %d: %w", id, err)
	}
	return chain, nil
}

// listLocation is a list's ancestor chain plus its stack, read together on
// one connection.
func (d *Database) listLocation(ctx context.Context, op string, id int64) ([]List, *Stack, error) {
	var chain []List
	var stack Stack
	found := false
	err := d.read(ctx, op, func(q querier) error {
		chain = chain[:0]
		if err := sqlx.SelectContext(ctx, q, &chain, ancestorsQuery, id); err != nil {
			return err
		}
		if len(chain) == 0 {
			return nil
		}
		err := sqlx.GetContext(ctx, q, &stack, "SELECT * FROM stacks WHERE id = ?", chain[0].StackID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil || !found {
		return chain, nil, err
	}
	return chain, &stack, nil
}

// GetRepositoryPathForList returns the on-disk directory of a list: the
// stack path joined with every list name down the hierarchy. It returns ""
// if the list does not exist or its stack has no path.
func (d *Database) GetRepositoryPathForList(ctx context.Context, id int64) (string, error) {
	chain, stack, err := d.listLocation(ctx, "get_repository_path", id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository path for list %d: %w", id, err)
	}
	if stack == nil || stack.Path == "" {
		return "", nil
	}

	parts := make([]string, 0, len(chain)+1)
	parts = append(parts, stack.Path)
	for _, l := range chain {
		parts = append(parts, l.Name)
	}
	return filepath.Join(parts...), nil
}

// GetListDisplayPath returns "Stack / List / Sub-list" using sep between
// names. It returns "" if the list does not exist.
func (d *Database) GetListDisplayPath(ctx context.Context, id int64, sep string) (string, error) {
	chain, stack, err := d.listLocation(ctx, "get_list_display_path", id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve display path for list %d: %w", id, err)
	}
	if len(chain) == 0 {
		return "", nil
	}

	names := make([]string, 0, len(chain)+1)
	if stack != nil && stack.Name != "" {
		names = append(names, stack.Name)
	}
	for _, l := range chain {
		names = append(names, l.Name)
	}
	return strings.Join(names, sep), nil
}

// DeleteList removes a list together with its sub-lists and elements. It
// returns false if no list had that id.
func (d *Database) DeleteList(ctx context.Context, id int64) (bool, error) {
	return d.execCount(ctx, "delete_list", "DELETE FROM lists WHERE id = ?", id)
}
