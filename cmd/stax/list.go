package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage lists inside a stack",
	}

	var parent int64
	create := &cobra.Command{
		Use:   "create <stack-id> <name>",
		Short: "Create a list, optionally nested under --parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stackID, err := parseID(args[0], "stack")
			if err != nil {
				return err
			}
			var p *int64
			if parent > 0 {
				p = &parent
			}
			id, err := a.db.CreateList(cmd.Context(), stackID, args[1], p)
			if err != nil {
				return err
			}
			a.printf("Created list %d: %s\n", id, args[1])
			return nil
		},
	}
	create.Flags().Int64Var(&parent, "parent", 0, "parent list id")
	cmd.AddCommand(create)

	var lsParent int64
	ls := &cobra.Command{
		Use:   "ls <stack-id>",
		Short: "List the top-level lists of a stack, or the sub-lists of --parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stackID, err := parseID(args[0], "stack")
			if err != nil {
				return err
			}
			var p *int64
			if lsParent > 0 {
				p = &lsParent
			}
			lists, err := a.db.GetListsByStack(cmd.Context(), stackID, p)
			if err != nil {
				return err
			}
			w := a.table()
			fmt.Fprintln(w, "ID\tNAME\tELEMENTS\tCREATED")
			for _, l := range lists {
				n, err := a.db.CountElements(cmd.Context(), l.ID, false)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", l.ID, l.Name, n, humanize.Time(l.CreatedAt))
			}
			return w.Flush()
		},
	}
	ls.Flags().Int64Var(&lsParent, "parent", 0, "parent list id")
	cmd.AddCommand(ls)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show where a list sits in its stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			l, err := a.db.GetList(ctx, id)
			if err != nil {
				return err
			}
			if l == nil {
				return errNotFound("list", id)
			}
			display, err := a.db.GetListDisplayPath(ctx, id, " / ")
			if err != nil {
				return err
			}
			repo, err := a.db.GetRepositoryPathForList(ctx, id)
			if err != nil {
				return err
			}
			subs, err := a.db.GetSubLists(ctx, id)
			if err != nil {
				return err
			}
			n, err := a.db.CountElements(ctx, id, true)
			if err != nil {
				return err
			}
			a.printf("List %d: %s\n", l.ID, display)
			a.printf("Repository: %s\n", repo)
			a.printf("Elements:   %d\n", n)
			a.printf("Sub-lists:  %d\n", len(subs))
			for _, s := range subs {
				a.printf("  %d\t%s\n", s.ID, s.Name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a list with its sub-lists and elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			ok, err := a.db.DeleteList(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("list", id)
			}
			a.printf("Deleted list %d\n", id)
			return nil
		},
	})

	return cmd
}
