package database

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHistorySurvivesElementDeletionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	stackID := mustCreateStack(t, db, "Shots", "/mnt/shots")
	listID := mustCreateList(t, db, stackID, "seq010", nil)
	elemID := mustCreateElement(t, db, listID, "plateA", Type2D, ElementFields{})

	for _, action := range []string{"ingest", "update"} {
		if _, err := db.LogIngestion(ctx, IngestionRecord{
			Action:     action,
			SourcePath: "/src/plateA.exr",
			TargetList: "Shots / seq010",
			Status:     StatusSuccess,
			ElementID:  &elemID,
		}); err != nil {
			t.Fatalf("LogIngestion failed: %v", err)
		}
	}

	if _, err := db.DeleteElement(ctx, elemID); err != nil {
		t.Fatalf("DeleteElement failed: %v", err)
	}

	entries, err := db.GetIngestionHistory(ctx, 0)
	if err != nil {
		t.Fatalf("GetIngestionHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ElementID != nil {
			t.Errorf("entry %d element id = %d, want NULL", e.ID, *e.ElementID)
		}
	}
}

func TestLogIngestionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	missing := int64(9999)
	id, err := db.LogIngestion(ctx, IngestionRecord{
		Action:    "ingest",
		Status:    StatusError,
		Message:   "copy failed",
		ElementID: &missing,
	})
	if err != nil {
		t.Fatalf("LogIngestion with dangling element id failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("id = %d", id)
	}

	_, err = db.LogIngestion(ctx, IngestionRecord{Action: "ingest", Status: "maybe"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
	_, err = db.LogIngestion(ctx, IngestionRecord{Status: StatusSuccess})
	if err == nil {
		t.Error("expected error for empty action")
	}

	for i := 0; i < 3; i++ {
		if _, err := db.LogIngestion(ctx, IngestionRecord{Action: "ingest", Status: StatusSuccess}); err != nil {
			t.Fatalf("LogIngestion failed: %v", err)
		}
	}

	entries, err := db.GetIngestionHistory(ctx, 2)
	if err != nil {
		t.Fatalf("GetIngestionHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID < entries[1].ID {
		t.Errorf("history not most recent first: %d before %d", entries[0].ID, entries[1].ID)
	}

	all, _ := db.GetIngestionHistory(ctx, 0)
	last := all[len(all)-1]
	if last.ElementID != nil || last.Status != StatusError || last.Message != "copy failed" {
		t.Errorf("oldest entry = %+v", last)
	}
}

func TestExportHistoryToCSVIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")

	n, err := db.ExportHistoryToCSV(ctx, path, 0)
	if err != nil {
		t.Fatalf("ExportHistoryToCSV on empty history failed: %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d rows, want 0", n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("no file should be written for empty history, stat err = %v", err)
	}

	stackID := mustCreateStack(t, db, "Shots", "/mnt/shots")
	listID := mustCreateList(t, db, stackID, "seq010", nil)
	elemID := mustCreateElement(t, db, listID, "plateA", Type2D, ElementFields{})
	if _, err := db.LogIngestion(ctx, IngestionRecord{
		Action: "ingest", SourcePath: "/src/a, b.exr", Status: StatusSuccess, ElementID: &elemID,
	}); err != nil {
		t.Fatalf("LogIngestion failed: %v", err)
	}
	if _, err := db.LogIngestion(ctx, IngestionRecord{
		Action: "ingest", SourcePath: "/src/c.exr", Status: StatusError, Message: `bad "header"`,
	}); err != nil {
		t.Fatalf("LogIngestion failed: %v", err)
	}

	n, err = db.ExportHistoryToCSV(ctx, path, 0)
	if err != nil {
		t.Fatalf("ExportHistoryToCSV failed: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d rows, want 2", n)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d CSV records, want header + 2", len(records))
	}
	for i, col := range historyColumns {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	// Most recent first: the error entry without an element.
	if records[1][1] != "" || records[1][6] != `bad "header"` {
		t.Errorf("first row = %v", records[1])
	}
	if records[2][3] != "/src/a, b.exr" {
		t.Errorf("second row source path = %q", records[2][3])
	}
}
