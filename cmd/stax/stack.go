package main

import (
	"fmt"
	"strconv"
	"strings"

	"stax/internal/database"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage stacks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name> <path>",
		Short: "Create a stack rooted at path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.db.CreateStack(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			a.printf("Created stack %d: %s\n", id, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List all stacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stacks, err := a.db.GetAllStacks(cmd.Context())
			if err != nil {
				return err
			}
			if len(stacks) == 0 {
				a.printf("No stacks.\n")
				return nil
			}
			w := a.table()
			fmt.Fprintln(w, "ID\tNAME\tPATH\tCREATED")
			for _, s := range stacks {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Path, humanize.Time(s.CreatedAt))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a stack and its top-level lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := lookupStack(cmd, a, args[0])
			if err != nil {
				return err
			}
			lists, err := a.db.GetListsByStack(ctx, s.ID, nil)
			if err != nil {
				return err
			}
			a.printf("Stack %d: %s\n", s.ID, s.Name)
			a.printf("Path:    %s\n", s.Path)
			a.printf("Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
			a.printf("Lists:   %d\n", len(lists))
			for _, l := range lists {
				a.printf("  %d\t%s\n", l.ID, l.Name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stack with all its lists and elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "stack")
			if err != nil {
				return err
			}
			ok, err := a.db.DeleteStack(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("stack", id)
			}
			a.printf("Deleted stack %d\n", id)
			return nil
		},
	})

	return cmd
}

// lookupStack resolves a numeric id or a stack name.
func lookupStack(cmd *cobra.Command, a *app, ref string) (*database.Stack, error) {
	var (
		s   *database.Stack
		err error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		s, err = a.db.GetStack(cmd.Context(), id)
	} else {
		s, err = a.db.GetStackByName(cmd.Context(), strings.TrimSpace(ref))
	}
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errNotFound("stack", ref)
	}
	return s, nil
}
