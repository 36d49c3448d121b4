package main

import (
	"fmt"

	"stax/internal/config"

	"github.com/spf13/cobra"
)

func newSettingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setting",
		Short: "Manage catalog-wide settings stored in the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok, err := a.db.GetSetting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("setting", args[0])
			}
			a.printf("%s\n", v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.SetSetting(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <key>",
		Short: "Delete a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.db.DeleteSetting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("setting", args[0])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List all settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.db.GetAllSettings(cmd.Context())
			if err != nil {
				return err
			}
			w := a.table()
			fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
			for _, s := range settings {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Key, s.Value, s.UpdatedAt)
			}
			return w.Flush()
		},
	})

	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog counts and schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.db.CatalogStats(ctx)
			if err != nil {
				return err
			}
			version, dirty, latest, err := a.db.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			schema := fmt.Sprintf("v%d of v%d", version, latest)
			if dirty {
				schema += " (dirty)"
			}
			w := a.table()
			fmt.Fprintf(w, "Catalog:\t%s\n", a.db.Path())
			fmt.Fprintf(w, "Schema:\t%s\n", schema)
			fmt.Fprintf(w, "Stacks:\t%d\n", s.Stacks)
			fmt.Fprintf(w, "Lists:\t%d\n", s.Lists)
			fmt.Fprintf(w, "Elements:\t%d\n", s.Elements)
			fmt.Fprintf(w, "Favorites:\t%d\n", s.Favorites)
			fmt.Fprintf(w, "Playlists:\t%d\n", s.Playlists)
			fmt.Fprintf(w, "History:\t%d\n", s.History)
			return w.Flush()
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration as TOML",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipDB: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Write(a.out)
		},
	})
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipDB: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := config.GetBuildInfo()
			a.printf("stax %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
			return nil
		},
	}
}
