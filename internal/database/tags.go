package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// GetAllTags returns every distinct tag used by any element, sorted
// case-insensitively.
func (d *Database) GetAllTags(ctx context.Context) ([]string, error) {
	var raw []string
	err := d.read(ctx, "get_all_tags", func(q querier) error {
		raw = raw[:0]
		return sqlx.SelectContext(ctx, q, &raw, "SELECT DISTINCT tags FROM elements WHERE tags != ''")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}

	seen := make(map[string]bool)
	var tags []string
	for _, s := range raw {
		for _, t := range splitTags(s) {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})
	return tags, nil
}

// SearchElementsByTags returns elements carrying any of tags, or all of them
// when matchAll is set. Tags compare exactly after trimming. Results are
// ordered by name.
func (d *Database) SearchElementsByTags(ctx context.Context, tags []string, matchAll bool) ([]Element, error) {
	want := splitTags(strings.Join(tags, ","))
	if len(want) == 0 {
		return nil, nil
	}

	// Narrow with LIKE, then check whole tags in Go so "plate" does not
	// match "plates".
	conds := make([]string, 0, len(want))
	args := make([]any, 0, len(want))
	for _, t := range want {
		conds = append(conds, `tags LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(t)+"%")
	}
	joiner := " OR "
	if matchAll {
		joiner = " AND "
	}
	query := "SELECT * FROM elements WHERE " + strings.Join(conds, joiner) + " ORDER BY name, id"

	var candidates []Element
	err := d.read(ctx, "search_elements_by_tags", func(q querier) error {
		candidates = candidates[:0]
		return sqlx.SelectContext(ctx, q, &candidates, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search elements by tags: %w", err)
	}

	var out []Element
	for _, e := range candidates {
		have := make(map[string]bool)
		for _, t := range e.TagList() {
			have[t] = true
		}
		matched := 0
		for _, t := range want {
			if have[t] {
				matched++
			}
		}
		if (matchAll && matched == len(want)) || (!matchAll && matched > 0) {
			out = append(out, e)
		}
	}
	return out, nil
}

// modifyTags rewrites an element's tags inside one transaction. It returns
// false if the element does not exist.
func (d *Database) modifyTags(ctx context.Context, op string, id int64, fn func([]string) []string) (bool, error) {
	found := false
	err := d.write(ctx, op, func(q querier) error {
		var current string
		err := sqlx.GetContext(ctx, q, &current, "SELECT tags FROM elements WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		updated := joinTags(fn(splitTags(current)))
		if updated == current {
			return nil
		}
		_, err = q.ExecContext(ctx, "UPDATE elements SET tags = ? WHERE id = ?", updated, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to update tags of element %d: %w", id, err)
	}
	return found, nil
}

// AddTagToElement adds tag if it is not already present. It returns false
// for an empty tag or a missing element.
func (d *Database) AddTagToElement(ctx context.Context, id int64, tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.Contains(tag, ",") {
		return false, nil
	}
	return d.modifyTags(ctx, "add_tag", id, func(tags []string) []string {
		return append(tags, tag)
	})
}

// RemoveTagFromElement removes tag if present. It returns false for an empty
// tag or a missing element.
func (d *Database) RemoveTagFromElement(ctx context.Context, id int64, tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false, nil
	}
	return d.modifyTags(ctx, "remove_tag", id, func(tags []string) []string {
		out := tags[:0]
		for _, t := range tags {
			if t != tag {
				out = append(out, t)
			}
		}
		return out
	})
}

// ReplaceElementTags sets the element's tags to exactly tags.
func (d *Database) ReplaceElementTags(ctx context.Context, id int64, tags []string) (bool, error) {
	return d.modifyTags(ctx, "replace_tags", id, func([]string) []string {
		return tags
	})
}
