package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const playlistSelect = `
	SELECT p.*, (SELECT COUNT(*) FROM playlist_items pi WHERE pi.playlist_id = p.id) AS item_count
	FROM playlists p`

// CreatePlaylist inserts a playlist and returns its id. Names are unique.
func (d *Database) CreatePlaylist(ctx context.Context, name, description, createdBy, machine string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("playlist name is required")
	}

	var id int64
	err := d.write(ctx, "create_playlist", func(q querier) error {
		res, err := q.ExecContext(ctx,
			"INSERT INTO playlists (name, description, created_by, created_on_machine) VALUES (?, ?, ?, ?)",
			name, description, createdBy, machine)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	return id, nil
}

// GetAllPlaylists returns every playlist, newest first.
func (d *Database) GetAllPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	err := d.read(ctx, "get_all_playlists", func(q querier) error {
		playlists = playlists[:0]
		return sqlx.SelectContext(ctx, q, &playlists, playlistSelect+" ORDER BY p.created_at DESC, p.id DESC")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return playlists, nil
}

// GetPlaylist returns the playlist with id, or nil if there is none.
func (d *Database) GetPlaylist(ctx context.Context, id int64) (*Playlist, error) {
	var p Playlist
	found := false
	err := d.read(ctx, "get_playlist", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &p, playlistSelect+" WHERE p.id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist %d: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// UpdatePlaylist renames a playlist and/or changes its description. Nil
// fields are left alone. It returns false if nothing was requested or the
// playlist does not exist.
func (d *Database) UpdatePlaylist(ctx context.Context, id int64, name, description *string) (bool, error) {
	var cols []string
	var args []any
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return false, errors.New("playlist name cannot be empty")
		}
		cols = append(cols, "name = ?")
		args = append(args, n)
	}
	if description != nil {
		cols = append(cols, "description = ?")
		args = append(args, *description)
	}
	if len(cols) == 0 {
		return false, nil
	}
	args = append(args, id)

	return d.execCount(ctx, "update_playlist",
		"UPDATE playlists SET "+strings.Join(cols, ", ")+" WHERE id = ?", args...)
}

// DeletePlaylist removes a playlist and its items. The elements are kept.
func (d *Database) DeletePlaylist(ctx context.Context, id int64) (bool, error) {
	return d.execCount(ctx, "delete_playlist", "DELETE FROM playlists WHERE id = ?", id)
}

// AddToPlaylist appends an element to a playlist. sortOrder nil places it
// after the current last item. An element already in the playlist is left
// where it is and its item id is returned with added == false.
func (d *Database) AddToPlaylist(ctx context.Context, playlistID, elementID int64, sortOrder *int) (id int64, added bool, err error) {
	err = d.write(ctx, "add_to_playlist", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &id,
			"SELECT id FROM playlist_items WHERE playlist_id = ? AND element_id = ?", playlistID, elementID)
		if err == nil {
			added = false
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		order := 0
		if sortOrder != nil {
			order = *sortOrder
		} else if err := sqlx.GetContext(ctx, q, &order,
			"SELECT IFNULL(MAX(sort_order), 0) + 1 FROM playlist_items WHERE playlist_id = ?", playlistID); err != nil {
			return err
		}

		res, err := q.ExecContext(ctx,
			"INSERT INTO playlist_items (playlist_id, element_id, sort_order) VALUES (?, ?, ?)",
			playlistID, elementID, order)
		if err != nil {
			return err
		}
		added = true
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to add element %d to playlist %d: %w", elementID, playlistID, err)
	}
	return id, added, nil
}

// RemoveFromPlaylist removes an element from a playlist.
func (d *Database) RemoveFromPlaylist(ctx context.Context, playlistID, elementID int64) (bool, error) {
	return d.execCount(ctx, "remove_from_playlist",
		"DELETE FROM playlist_items WHERE playlist_id = ? AND element_id = ?", playlistID, elementID)
}

// IsInPlaylist reports whether the element is in the playlist.
func (d *Database) IsInPlaylist(ctx context.Context, playlistID, elementID int64) (bool, error) {
	var exists bool
	err := d.read(ctx, "is_in_playlist", func(q querier) error {
		return sqlx.GetContext(ctx, q, &exists,
			"SELECT EXISTS(SELECT 1 FROM playlist_items WHERE playlist_id = ? AND element_id = ?)",
			playlistID, elementID)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check playlist membership: %w", err)
	}
	return exists, nil
}

// GetPlaylistElements returns a playlist's elements in sort order.
func (d *Database) GetPlaylistElements(ctx context.Context, playlistID int64) ([]PlaylistElement, error) {
	var items []PlaylistElement
	err := d.read(ctx, "get_playlist_elements", func(q querier) error {
		items = items[:0]
		return sqlx.SelectContext(ctx, q, &items, `
			SELECT e.*, pi.sort_order, pi.created_at AS added_at
			FROM elements e
			INNER JOIN playlist_items pi ON pi.element_id = e.id
			WHERE pi.playlist_id = ?
			ORDER BY pi.sort_order, pi.id`, playlistID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get elements of playlist %d: %w", playlistID, err)
	}
	return items, nil
}

// ReorderPlaylist assigns sort orders 0, 1, 2, ... following elementIDs.
// Elements not in the playlist are ignored; items not named keep their
// previous order.
func (d *Database) ReorderPlaylist(ctx context.Context, playlistID int64, elementIDs []int64) error {
	err := d.write(ctx, "reorder_playlist", func(q querier) error {
		for i, elementID := range elementIDs {
			if _, err := q.ExecContext(ctx,
				"UPDATE playlist_items SET sort_order = ? WHERE playlist_id = ? AND element_id = ?",
				i, playlistID, elementID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder playlist %d: %w", playlistID, err)
	}
	return nil
}
