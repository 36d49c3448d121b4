package main

import (
	"fmt"
	"time"

	"stax/internal/library"
	"stax/internal/logging"
	"stax/internal/metrics"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		opts     library.Options
		copyMode string
	)
	cmd := &cobra.Command{
		Use:   "import <directory>",
		Short: "Import a directory tree as a stack",
		Long: `Import a directory tree as a stack. Sub-directories become lists and
frame sequences are collapsed into single elements. Running the import
again only adds what is new.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if copyMode == "" {
				copyMode = a.cfg.DefaultCopy
			}
			policy, err := library.ParseCopyPolicy(copyMode)
			if err != nil {
				return err
			}
			opts.Copy = policy
			opts.Progress = func(p library.Progress) {
				if p.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "  failed %s: %v\n", p.Path, p.Err)
					return
				}
				logging.Debug("  [%d] %s", p.Processed, p.Path)
			}

			if a.cfg.MetricsFile != "" {
				collector := metrics.NewCollector(a.db, 30*time.Second)
				collector.Start(ctx)
				defer collector.Stop()
			}

			res, err := library.New(a.db).Import(ctx, args[0], opts)
			if err != nil {
				return err
			}
			a.printf("Stack %d: %d ingested, %d skipped, %d failed, %d new lists (%v)\n",
				res.StackID, res.Ingested, res.Skipped, res.Failed, res.Lists, res.Duration.Round(time.Millisecond))
			if res.Failed > 0 {
				return fmt.Errorf("%d item(s) failed, see stax history ls", res.Failed)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.StackName, "stack-name", "", "name for a new stack (default: directory name)")
	f.StringVar(&opts.ListPrefix, "prefix", "", "prefix for list names")
	f.IntVar(&opts.MaxDepth, "depth", library.DefaultMaxDepth, "directory levels turned into lists")
	f.StringVar(&copyMode, "copy", "", "soft or hard (default from config)")
	f.StringVar(&opts.Comment, "comment", "", "comment for every element")
	f.StringSliceVar(&opts.Tags, "tags", nil, "comma-separated tags for every element")
	return cmd
}
