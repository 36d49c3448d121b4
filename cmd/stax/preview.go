package main

import (
	"fmt"

	"stax/internal/database"
	"stax/internal/preview"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Decode and cache element previews",
	}

	var all bool
	warm := &cobra.Command{
		Use:   "warm <list-id>",
		Short: "Decode the previews of a list into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			elems, err := a.db.GetElementsByList(cmd.Context(), id, database.ElementQuery{IncludeDeprecated: all})
			if err != nil {
				return err
			}
			l, err := a.loader()
			if err != nil {
				return err
			}
			n, err := l.WarmList(cmd.Context(), elems)
			a.printCacheStats(l.Cache())
			if err != nil {
				return fmt.Errorf("decoded %d of %d previews: %w", n, len(elems), err)
			}
			a.printf("Decoded %d preview(s) for %d element(s)\n", n, len(elems))
			return nil
		},
	}
	warm.Flags().BoolVar(&all, "all", false, "include deprecated elements")
	cmd.AddCommand(warm)

	var out string
	get := &cobra.Command{
		Use:   "get <element-id>",
		Short: "Decode an element preview, optionally saving it with -o",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getElement(cmd, a, args[0])
			if err != nil {
				return err
			}
			l, err := a.loader()
			if err != nil {
				return err
			}
			src := preview.Source(e)
			img, err := l.Load(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("preview of element %d (%s): %w", e.ID, src, err)
			}
			b := img.Bounds()
			a.printf("%s: %dx%d\n", src, b.Dx(), b.Dy())
			if out != "" {
				if err := preview.Save(img, out); err != nil {
					return err
				}
				a.printf("Saved %s\n", out)
			}
			return nil
		},
	}
	get.Flags().StringVarP(&out, "output", "o", "", "write the preview to this file (format from extension)")
	cmd.AddCommand(get)

	return cmd
}

func (a *app) printCacheStats(c *preview.Cache) {
	s := c.Stats()
	a.printf("Cache: %d/%d entries, %s, hit rate %.0f%% (%d hits, %d misses, %d evictions)\n",
		s.Size, s.MaxSize, humanize.IBytes(uint64(s.MemoryBytes)), s.HitRate*100, s.Hits, s.Misses, s.Evictions)
}
