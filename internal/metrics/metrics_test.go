package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeProvider struct {
	stats Stats
	err   error
}

func (f fakeProvider) CatalogStats(_ context.Context) (Stats, error) {
	return f.stats, f.err
}

func TestCollectorCollect(t *testing.T) {
	c := NewCollector(fakeProvider{stats: Stats{Stacks: 2, Lists: 5, Elements: 40, Favorites: 3}}, 0)
	c.Collect(context.Background())

	tests := []struct {
		entity string
		want   float64
	}{
		{"stacks", 2},
		{"lists", 5},
		{"elements", 40},
		{"favorites", 3},
		{"playlists", 0},
	}
	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			got := testutil.ToFloat64(CatalogEntities.WithLabelValues(tt.entity))
			if got != tt.want {
				t.Errorf("CatalogEntities{%s} = %v, want %v", tt.entity, got, tt.want)
			}
		})
	}
}

func TestCollectorCollectErrorKeepsPreviousValues(t *testing.T) {
	CatalogEntities.WithLabelValues("history").Set(7)

	c := NewCollector(fakeProvider{err: errors.New("boom")}, 0)
	c.Collect(context.Background())

	if got := testutil.ToFloat64(CatalogEntities.WithLabelValues("history")); got != 7 {
		t.Errorf("history gauge = %v, want 7", got)
	}
}

func TestCollectorNilProvider(_ *testing.T) {
	c := NewCollector(nil, 0)
	c.Collect(context.Background())
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()
	before := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("open"))

	obs.ObserveRetryAttempt("open")
	obs.ObserveRetryAttempt("open")

	if got := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("open")); got != before+2 {
		t.Errorf("retry attempts = %v, want %v", got, before+2)
	}
}

func TestWriteTextfile(t *testing.T) {
	InitializeMetrics()
	DBQueryTotal.WithLabelValues("create_stack", "success").Inc()

	path := filepath.Join(t.TempDir(), "nested", "stax.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `stax_db_queries_total{operation="create_stack",status="success"}`) {
		t.Errorf("textfile missing stax_db_queries_total sample:\n%s", data)
	}
}
