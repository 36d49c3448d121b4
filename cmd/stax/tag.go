package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newTagCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage element tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := a.db.GetAllTags(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tags {
				a.printf("%s\n", t)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <element-id> <tag>",
		Short: "Add a tag to an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}
			ok, err := a.db.AddTagToElement(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("element", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <element-id> <tag>",
		Short: "Remove a tag from an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}
			ok, err := a.db.RemoveTagFromElement(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("element", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <element-id> [tag]...",
		Short: "Replace all tags of an element",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}
			ok, err := a.db.ReplaceElementTags(cmd.Context(), id, args[1:])
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("element", id)
			}
			return nil
		},
	})

	var all bool
	search := &cobra.Command{
		Use:   "search <tag>...",
		Short: "Find elements carrying any (or, with --all, every) tag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tags []string
			for _, arg := range args {
				tags = append(tags, strings.Split(arg, ",")...)
			}
			elems, err := a.db.SearchElementsByTags(cmd.Context(), tags, all)
			if err != nil {
				return err
			}
			return a.printElements(elems)
		},
	}
	search.Flags().BoolVar(&all, "all", false, "require every tag")
	cmd.AddCommand(search)

	return cmd
}
