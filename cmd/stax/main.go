package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"stax/internal/config"
	"stax/internal/database"
	"stax/internal/filesystem"
	"stax/internal/logging"
	"stax/internal/memory"
	"stax/internal/metrics"
	"stax/internal/preview"

	"github.com/spf13/cobra"
)

// skipDB marks commands that run without opening the catalog.
const skipDB = "skip-db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.finish()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app carries what every command shares: the resolved configuration, the
// catalog, and the single preview cache of this process.
type app struct {
	cfgPath string
	cfg     *config.Config
	db      *database.Database
	cache   *preview.Cache
	mem     *memory.Monitor
	out     io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "stax",
		Short: "Catalog for VFX stock footage, plates and toolsets",
		Long: `stax manages a shared catalog of stock footage, plates, geometry and
node-graph toolsets. The catalog is a single SQLite file that many
workstations may open at once over a network share.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $STAX_CONFIG)")

	root.AddCommand(
		newStackCmd(a),
		newListCmd(a),
		newElementCmd(a),
		newTagCmd(a),
		newFavCmd(a),
		newPlaylistCmd(a),
		newHistoryCmd(a),
		newImportCmd(a),
		newPreviewCmd(a),
		newSettingCmd(a),
		newStatsCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logging.Configure(cfg.LogLevel, cfg.LogFormat)
	cfg.LogSummary()
	memory.ConfigureFromEnv()

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	if _, ok := cmd.Annotations[skipDB]; ok {
		return nil
	}

	start := time.Now()
	db, err := database.New(cmd.Context(), cfg.DBPath, cfg.DatabaseOptions())
	if err != nil {
		return fmt.Errorf("failed to open catalog %s: %w", cfg.DBPath, err)
	}
	a.db = db
	logging.Debug("Catalog %s ready in %v", cfg.DBPath, time.Since(start))
	return nil
}

// previewCache builds the process-wide preview cache on first use.
func (a *app) previewCache() (*preview.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	c, err := preview.NewCache(a.cfg.PreviewCacheSize, a.cfg.PreviewCacheBytes())
	if err != nil {
		return nil, err
	}
	a.cache = c
	a.mem = memory.NewMonitor(memory.DefaultConfig())
	a.mem.Start()
	return c, nil
}

func (a *app) loader() (*preview.Loader, error) {
	c, err := a.previewCache()
	if err != nil {
		return nil, err
	}
	return preview.NewLoader(c, preview.Options{
		MaxDimension: a.cfg.PreviewMaxDim,
		FFmpegPath:   a.cfg.FFmpegPath,
		Memory:       a.mem,
	}), nil
}

// finish stops background sampling and publishes the final metrics to the
// textfile, if one is configured.
func (a *app) finish() {
	a.mem.Stop()
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return
	}
	if a.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		metrics.NewCollector(a.db, time.Minute).Collect(ctx)
		cancel()
		a.db.UpdateDBMetrics()
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		logging.Warn("%v", err)
	}
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func parseIDs(args []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, s := range args {
		id, err := parseID(s, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// errNotFound reports a missing row by kind and id.
func errNotFound(kind string, id interface{}) error {
	return fmt.Errorf("%s %v not found", kind, id)
}

