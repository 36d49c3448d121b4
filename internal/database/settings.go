package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Setting is a catalog-wide key/value pair, such as the default preview
// size shared by every machine using the catalog.
type Setting struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt string `db:"updated_at" json:"updatedAt"`
}

// GetSetting returns the value stored under key and whether it exists.
func (d *Database) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	found := false
	err := d.read(ctx, "get_setting", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &value, "SELECT value FROM settings WHERE key = ?", key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return value, found, nil
}

// SetSetting stores value under key, replacing any previous value.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("setting key is required")
	}
	err := d.write(ctx, "set_setting", func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. It reports whether the key existed.
func (d *Database) DeleteSetting(ctx context.Context, key string) (bool, error) {
	return d.execCount(ctx, "delete_setting", "DELETE FROM settings WHERE key = ?", key)
}

// GetAllSettings returns every setting ordered by key.
func (d *Database) GetAllSettings(ctx context.Context) ([]Setting, error) {
	var settings []Setting
	err := d.read(ctx, "get_all_settings", func(q querier) error {
		settings = settings[:0]
		return sqlx.SelectContext(ctx, q, &settings,
			"SELECT key, value, CAST(updated_at AS TEXT) AS updated_at FROM settings ORDER BY key")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}
