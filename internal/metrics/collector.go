package metrics

import (
	"context"
	"time"

	"stax/internal/logging"
)

// StatsProvider supplies catalog row counts.
type StatsProvider interface {
	CatalogStats(ctx context.Context) (Stats, error)
}

// Stats holds the current catalog counts
type Stats struct {
	Stacks    int
	Lists     int
	Elements  int
	Favorites int
	Playlists int
	History   int
}

// Collector updates the catalog gauges, either once or on an interval while
// a long-running command such as a library import is in progress.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	go c.collectLoop(ctx)
}

// Stop stops the collection loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop(ctx context.Context) {
	defer close(c.doneChan)

	c.Collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Collect reads the counts once and publishes them.
func (c *Collector) Collect(ctx context.Context) {
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.CatalogStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogEntities.WithLabelValues("stacks").Set(float64(stats.Stacks))
	CatalogEntities.WithLabelValues("lists").Set(float64(stats.Lists))
	CatalogEntities.WithLabelValues("elements").Set(float64(stats.Elements))
	CatalogEntities.WithLabelValues("favorites").Set(float64(stats.Favorites))
	CatalogEntities.WithLabelValues("playlists").Set(float64(stats.Playlists))
	CatalogEntities.WithLabelValues("history").Set(float64(stats.History))

	logging.Debug("Metrics collected: stacks=%d, lists=%d, elements=%d, favorites=%d",
		stats.Stacks, stats.Lists, stats.Elements, stats.Favorites)
}
