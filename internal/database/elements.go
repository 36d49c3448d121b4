package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// CreateElement inserts an element into a list and returns its id. typ must
// be one of the three element types or ErrInvalidEnum is returned.
func (d *Database) CreateElement(ctx context.Context, listID int64, name string, typ ElementType, f ElementFields) (int64, error) {
	if !typ.Valid() {
		return 0, fmt.Errorf("%w: element type %q", ErrInvalidEnum, typ)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("element name is required")
	}

	var frameRange *string
	if f.FrameRange != "" {
		frameRange = &f.FrameRange
	}

	var id int64
	err := d.write(ctx, "create_element", func(q querier) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO elements (
				list_id, name, type, filepath_soft, filepath_hard, is_hard_copy,
				frame_range, format, comment, tags, preview_path, gif_preview_path,
				video_preview_path, geometry_preview_path, is_deprecated, file_size
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			listID, name, typ, f.FilepathSoft, f.FilepathHard, f.IsHardCopy,
			frameRange, f.Format, f.Comment, joinTags(f.Tags), f.PreviewPath, f.GIFPreviewPath,
			f.VideoPreviewPath, f.GeometryPreviewPath, f.IsDeprecated, f.FileSize,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create element %q: %w", name, err)
	}
	return id, nil
}

// GetElementsByList returns a list's elements ordered by name. Deprecated
// elements are skipped unless q.IncludeDeprecated is set. A list that does
// not exist yields ErrListNotFound.
func (d *Database) GetElementsByList(ctx context.Context, listID int64, eq ElementQuery) ([]Element, error) {
	query := "SELECT * FROM elements WHERE list_id = ?"
	args := []any{listID}
	if !eq.IncludeDeprecated {
		query += " AND is_deprecated = 0"
	}
	query += " ORDER BY name, id"
	if eq.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, eq.Limit, max(eq.Offset, 0))
	}

	var elements []Element
	err := d.read(ctx, "get_elements_by_list", func(q querier) error {
		if err := requireList(ctx, q, listID); err != nil {
			return err
		}
		elements = elements[:0]
		return sqlx.SelectContext(ctx, q, &elements, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get elements for list %d: %w", listID, err)
	}
	return elements, nil
}

// CountElements returns the number of elements in a list, honouring
// includeDeprecated the same way GetElementsByList does.
func (d *Database) CountElements(ctx context.Context, listID int64, includeDeprecated bool) (int, error) {
	query := "SELECT COUNT(*) FROM elements WHERE list_id = ?"
	if !includeDeprecated {
		query += " AND is_deprecated = 0"
	}

	var n int
	err := d.read(ctx, "count_elements", func(q querier) error {
		if err := requireList(ctx, q, listID); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, q, &n, query, listID)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count elements for list %d: %w", listID, err)
	}
	return n, nil
}

func requireList(ctx context.Context, q querier, listID int64) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, "SELECT EXISTS(SELECT 1 FROM lists WHERE id = ?)", listID); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %d", ErrListNotFound, listID)
	}
	return nil
}

// GetElement returns the element with id, or nil if there is none.
func (d *Database) GetElement(ctx context.Context, id int64) (*Element, error) {
	var e Element
	found := false
	err := d.read(ctx, "get_element", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &e, "SELECT * FROM elements WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get element %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &e, nil
}

// setClause builds the SET list and arguments for the fields present in u.
func (u ElementUpdate) setClause() ([]string, []any, error) {
	var cols []string
	var args []any
	set := func(col string, v any) {
		cols = append(cols, col+" = ?")
		args = append(args, v)
	}

	if u.ListID != nil {
		set("list_id", *u.ListID)
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, nil, errors.New("element name cannot be empty")
		}
		set("name", name)
	}
	if u.Type != nil {
		if !u.Type.Valid() {
			return nil, nil, fmt.Errorf("%w: element type %q", ErrInvalidEnum, *u.Type)
		}
		set("type", *u.Type)
	}
	if u.FilepathSoft != nil {
		set("filepath_soft", *u.FilepathSoft)
	}
	if u.FilepathHard != nil {
		set("filepath_hard", *u.FilepathHard)
	}
	if u.IsHardCopy != nil {
		set("is_hard_copy", *u.IsHardCopy)
	}
	switch {
	case u.ClearFrameRange:
		set("frame_range", nil)
	case u.FrameRange != nil:
		set("frame_range", *u.FrameRange)
	}
	if u.Format != nil {
		set("format", *u.Format)
	}
	if u.Comment != nil {
		set("comment", *u.Comment)
	}
	if u.Tags != nil {
		set("tags", joinTags(*u.Tags))
	}
	if u.PreviewPath != nil {
		set("preview_path", *u.PreviewPath)
	}
	if u.GIFPreviewPath != nil {
		set("gif_preview_path", *u.GIFPreviewPath)
	}
	if u.VideoPreviewPath != nil {
		set("video_preview_path", *u.VideoPreviewPath)
	}
	if u.GeometryPreviewPath != nil {
		set("geometry_preview_path", *u.GeometryPreviewPath)
	}
	if u.IsDeprecated != nil {
		set("is_deprecated", *u.IsDeprecated)
	}
	if u.FileSize != nil {
		set("file_size", *u.FileSize)
	}
	return cols, args, nil
}

// UpdateElement writes the fields set in u. It returns false without
// touching the database when u sets nothing, and false when no element has
// that id.
func (d *Database) UpdateElement(ctx context.Context, id int64, u ElementUpdate) (bool, error) {
	cols, args, err := u.setClause()
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, nil
	}

	query := "UPDATE elements SET " + strings.Join(cols, ", ") + " WHERE id = ?"
	args = append(args, id)

	var n int64
	err = d.write(ctx, "update_element", func(q querier) error {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = rowsAffected("update_element", res)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to update element %d: %w", id, err)
	}
	return n > 0, nil
}

// SetDeprecated marks every listed element deprecated or active. Missing ids
// are skipped; the number of rows changed is returned.
func (d *Database) SetDeprecated(ctx context.Context, ids []int64, deprecated bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("UPDATE elements SET is_deprecated = ? WHERE id IN (?)", deprecated, ids)
	if err != nil {
		return 0, err
	}

	var n int64
	err = d.write(ctx, "set_deprecated", func(q querier) error {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = rowsAffected("set_deprecated", res)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update deprecation: %w", err)
	}
	return n, nil
}

// DeleteElement removes an element. Favorites and playlist entries go with
// it; ingestion history keeps its rows with a NULL element id.
func (d *Database) DeleteElement(ctx context.Context, id int64) (bool, error) {
	return d.execCount(ctx, "delete_element", "DELETE FROM elements WHERE id = ?", id)
}

// escapeLike escapes LIKE wildcards using backslash as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SearchElements matches text against one allow-listed property. Loose
// matching is a case-insensitive substring match; strict is equality.
// Results are ordered by name.
func (d *Database) SearchElements(ctx context.Context, text string, prop SearchProperty, match MatchType) ([]Element, error) {
	col, ok := searchColumns[prop]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSearchProperty, prop)
	}

	var query string
	var arg string
	switch match {
	case MatchLoose, "":
		query = "SELECT * FROM elements WHERE " + col + ` LIKE ? ESCAPE '\' ORDER BY name, id`
		arg = "%" + escapeLike(text) + "%"
	case MatchStrict:
		query = "SELECT * FROM elements WHERE " + col + " = ? ORDER BY name, id"
		arg = text
	default:
		return nil, fmt.Errorf("%w: match type %q", ErrInvalidSearchProperty, match)
	}

	var elements []Element
	err := d.read(ctx, "search_elements", func(q querier) error {
		elements = elements[:0]
		return sqlx.SelectContext(ctx, q, &elements, query, arg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search elements: %w", err)
	}
	return elements, nil
}
