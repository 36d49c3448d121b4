package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the ingestion history",
	}

	var limit int
	ls := &cobra.Command{
		Use:   "ls",
		Short: "Show recent ingestions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.db.GetIngestionHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.printf("No history.\n")
				return nil
			}
			w := a.table()
			fmt.Fprintln(w, "TIME\tACTION\tSTATUS\tSOURCE\tTARGET\tMESSAGE")
			for _, h := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					h.IngestedAt.Format("2006-01-02 15:04:05"), h.Action, h.Status, h.SourcePath, h.TargetList, h.Message)
			}
			return w.Flush()
		},
	}
	ls.Flags().IntVar(&limit, "limit", 50, "number of entries (0 for all)")
	cmd.AddCommand(ls)

	var exportLimit int
	export := &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write the history to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.db.ExportHistoryToCSV(cmd.Context(), args[0], exportLimit)
			if err != nil {
				return err
			}
			if n == 0 {
				a.printf("No history to export.\n")
				return nil
			}
			a.printf("Exported %d entries to %s\n", n, args[0])
			return nil
		},
	}
	export.Flags().IntVar(&exportLimit, "limit", 0, "number of entries (0 for all)")
	cmd.AddCommand(export)

	return cmd
}
