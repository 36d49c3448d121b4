package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// historyColumns is the CSV header; it matches the ingestion_history columns.
var historyColumns = []string{
	"id", "element_id", "action", "source_path", "target_list", "status", "message", "ingested_at",
}

// LogIngestion appends an ingestion history row and returns its id. A nil
// or dangling ElementID never causes a failure; a dangling id is stored as
// NULL.
func (d *Database) LogIngestion(ctx context.Context, rec IngestionRecord) (int64, error) {
	if !rec.Status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, rec.Status)
	}
	if strings.TrimSpace(rec.Action) == "" {
		return 0, fmt.Errorf("ingestion action is required")
	}

	var id int64
	err := d.write(ctx, "log_ingestion", func(q querier) error {
		// The element may already be gone (failed ingest rolled back, or
		// deleted since); history must still be written.
		res, err := q.ExecContext(ctx, `
			INSERT INTO ingestion_history (element_id, action, source_path, target_list, status, message)
			VALUES ((SELECT id FROM elements WHERE id = ?), ?, ?, ?, ?, ?)`,
			rec.ElementID, rec.Action, rec.SourcePath, rec.TargetList, rec.Status, rec.Message)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to log ingestion: %w", err)
	}
	return id, nil
}

// GetIngestionHistory returns up to limit entries, most recent first. A
// limit of zero or less returns every entry.
func (d *Database) GetIngestionHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	return d.history(ctx, "get_ingestion_history", limit)
}

func (d *Database) history(ctx context.Context, op string, limit int) ([]HistoryEntry, error) {
	query := "SELECT * FROM ingestion_history ORDER BY ingested_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var entries []HistoryEntry
	err := d.read(ctx, op, func(q querier) error {
		entries = entries[:0]
		return sqlx.SelectContext(ctx, q, &entries, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ingestion history: %w", err)
	}
	return entries, nil
}

// ExportHistoryToCSV writes up to limit history entries (all when limit <= 0),
// most recent first, to path with a header row. With no entries nothing is
// written and 0 is returned.
func (d *Database) ExportHistoryToCSV(ctx context.Context, path string, limit int) (int, error) {
	entries, err := d.history(ctx, "export_history", limit)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(historyColumns); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		elementID := ""
		if e.ElementID != nil {
			elementID = strconv.FormatInt(*e.ElementID, 10)
		}
		record := []string{
			strconv.FormatInt(e.ID, 10),
			elementID,
			e.Action,
			e.SourcePath,
			e.TargetList,
			string(e.Status),
			e.Message,
			e.IngestedAt.UTC().Format(time.DateTime),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return 0, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return len(entries), nil
}
