package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// nullableUser maps an empty user name to NULL so "no user" is stored one way.
func nullableUser(user string) *string {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil
	}
	return &user
}

// favoriteMatch selects the favorite row for an element, machine and user,
// treating NULL and "" as the same user.
const favoriteMatch = "element_id = ? AND machine_name = ? AND IFNULL(user_name, '') = IFNULL(?, '')"

// AddFavorite marks an element as a favorite for machine and user (user may
// be empty). Adding the same favorite again is not an error: the existing id
// is returned with added == false.
func (d *Database) AddFavorite(ctx context.Context, elementID int64, machine, user string) (id int64, added bool, err error) {
	u := nullableUser(user)
	err = d.write(ctx, "add_favorite", func(q querier) error {
		res, err := q.ExecContext(ctx,
			"INSERT INTO favorites (element_id, machine_name, user_name) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
			elementID, machine, u)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			added = true
			id, err = res.LastInsertId()
			return err
		}
		added = false
		return sqlx.GetContext(ctx, q, &id, "SELECT id FROM favorites WHERE "+favoriteMatch, elementID, machine, u)
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to add favorite for element %d: %w", elementID, err)
	}
	return id, added, nil
}

// RemoveFavorite deletes a favorite and reports whether one existed.
func (d *Database) RemoveFavorite(ctx context.Context, elementID int64, machine, user string) (bool, error) {
	return d.execCount(ctx, "remove_favorite",
		"DELETE FROM favorites WHERE "+favoriteMatch, elementID, machine, nullableUser(user))
}

// IsFavorite reports whether the element is a favorite for machine and user.
func (d *Database) IsFavorite(ctx context.Context, elementID int64, machine, user string) (bool, error) {
	var exists bool
	err := d.read(ctx, "is_favorite", func(q querier) error {
		return sqlx.GetContext(ctx, q, &exists,
			"SELECT EXISTS(SELECT 1 FROM favorites WHERE "+favoriteMatch+")",
			elementID, machine, nullableUser(user))
	})
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return exists, nil
}

// GetFavorites returns the favorite elements of machine and user ordered by
// element name.
func (d *Database) GetFavorites(ctx context.Context, machine, user string) ([]Element, error) {
	var elements []Element
	err := d.read(ctx, "get_favorites", func(q querier) error {
		elements = elements[:0]
		return sqlx.SelectContext(ctx, q, &elements, `
			SELECT e.* FROM elements e
			INNER JOIN favorites f ON f.element_id = e.id
			WHERE f.machine_name = ? AND IFNULL(f.user_name, '') = IFNULL(?, '')
			ORDER BY e.name, e.id`,
			machine, nullableUser(user))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	return elements, nil
}
