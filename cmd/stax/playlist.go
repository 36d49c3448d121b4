package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"stax/internal/database"
	"stax/internal/playlist"
)

func newPlaylistCmd(a *app) *cobra.Command {
	var who identity
	cmd := &cobra.Command{
		Use:     "playlist",
		Aliases: []string{"pl"},
		Short:   "Manage playlists",
	}
	who.register(cmd)

	var desc string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, user := who.resolve(a)
			id, err := a.db.CreatePlaylist(cmd.Context(), args[0], desc, user, machine)
			if err != nil {
				return err
			}
			a.printf("Created playlist %d: %s\n", id, args[0])
			return nil
		},
	}
	create.Flags().StringVar(&desc, "desc", "", "description")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pls, err := a.db.GetAllPlaylists(cmd.Context())
			if err != nil {
				return err
			}
			if len(pls) == 0 {
				a.printf("No playlists.\n")
				return nil
			}
			w := a.table()
			fmt.Fprintln(w, "ID\tNAME\tITEMS\tBY\tCREATED")
			for _, p := range pls {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s@%s\t%s\n",
					p.ID, p.Name, p.ItemCount, p.CreatedBy, p.CreatedOnMachine, humanize.Time(p.CreatedAt))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "List the elements of a playlist in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "playlist")
			if err != nil {
				return err
			}
			p, err := a.db.GetPlaylist(cmd.Context(), id)
			if err != nil {
				return err
			}
			if p == nil {
				return errNotFound("playlist", id)
			}
			items, err := a.db.GetPlaylistElements(cmd.Context(), id)
			if err != nil {
				return err
			}
			a.printf("Playlist %d: %s\n", p.ID, p.Name)
			if p.Description != "" {
				a.printf("%s\n", p.Description)
			}
			w := a.table()
			fmt.Fprintln(w, "#\tID\tNAME\tTYPE\tADDED")
			for _, it := range items {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", it.SortOrder, it.ID, it.Name, it.Type, humanize.Time(it.AddedAt))
			}
			return w.Flush()
		},
	})

	var newName, newDesc string
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename a playlist or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "playlist")
			if err != nil {
				return err
			}
			var name, description *string
			if cmd.Flags().Changed("name") {
				name = &newName
			}
			if cmd.Flags().Changed("desc") {
				description = &newDesc
			}
			ok, err := a.db.UpdatePlaylist(cmd.Context(), id, name, description)
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("playlist", id)
			}
			return nil
		},
	}
	edit.Flags().StringVar(&newName, "name", "", "new name")
	edit.Flags().StringVar(&newDesc, "desc", "", "new description")
	cmd.AddCommand(edit)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "playlist")
			if err != nil {
				return err
			}
			ok, err := a.db.DeletePlaylist(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("playlist", id)
			}
			a.printf("Deleted playlist %d\n", id)
			return nil
		},
	})

	var order int
	add := &cobra.Command{
		Use:   "add <playlist-id> <element-id>",
		Short: "Append an element, or place it with --order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "playlist/element")
			if err != nil {
				return err
			}
			var pos *int
			if cmd.Flags().Changed("order") {
				pos = &order
			}
			_, added, err := a.db.AddToPlaylist(cmd.Context(), ids[0], ids[1], pos)
			if err != nil {
				return err
			}
			if !added {
				a.printf("Element %d is already in playlist %d\n", ids[1], ids[0])
			}
			return nil
		},
	}
	add.Flags().IntVar(&order, "order", 0, "sort position")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <playlist-id> <element-id>",
		Short: "Remove an element from a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "playlist/element")
			if err != nil {
				return err
			}
			ok, err := a.db.RemoveFromPlaylist(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			if !ok {
				a.printf("Element %d was not in playlist %d\n", ids[1], ids[0])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reorder <playlist-id> <element-id>...",
		Short: "Set the playlist order to the given element ids",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "playlist/element")
			if err != nil {
				return err
			}
			return a.db.ReorderPlaylist(cmd.Context(), ids[0], ids[1:])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <id> <file.wpl>",
		Short: "Write a playlist as a WPL file for review players",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "playlist")
			if err != nil {
				return err
			}
			p, err := a.db.GetPlaylist(cmd.Context(), id)
			if err != nil {
				return err
			}
			if p == nil {
				return errNotFound("playlist", id)
			}
			items, err := a.db.GetPlaylistElements(cmd.Context(), id)
			if err != nil {
				return err
			}
			paths := make([]string, 0, len(items))
			for i := range items {
				paths = append(paths, items[i].Filepath())
			}
			if err := playlist.WriteFile(args[1], p.Name, paths); err != nil {
				return err
			}
			a.printf("Exported %d items to %s\n", len(paths), args[1])
			return nil
		},
	})

	var importName string
	importCmd := &cobra.Command{
		Use:   "import <file.wpl>",
		Short: "Create a playlist from a WPL file, matching items to elements by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pl, err := playlist.ParseWPL(args[0])
			if err != nil {
				return err
			}
			name := pl.Name
			if importName != "" {
				name = importName
			}
			machine, user := who.resolve(a)
			id, err := a.db.CreatePlaylist(ctx, name, "Imported from "+filepath.Base(args[0]), user, machine)
			if err != nil {
				return err
			}

			added := 0
			for _, it := range pl.Items {
				el, err := resolveItem(ctx, a.db, it)
				if err != nil {
					return err
				}
				if el == nil {
					a.printf("No element for %s\n", it.Src)
					continue
				}
				_, ok, err := a.db.AddToPlaylist(ctx, id, el.ID, nil)
				if err != nil {
					return err
				}
				if ok {
					added++
				}
			}
			a.printf("Created playlist %d: %s (%d of %d items matched)\n", id, name, added, len(pl.Items))
			return nil
		},
	}
	importCmd.Flags().StringVar(&importName, "name", "", "playlist name (default: the file's title)")
	cmd.AddCommand(importCmd)

	return cmd
}

// resolveItem finds the element a playlist entry refers to. Among elements
// with the entry's name, one whose path matches wins; otherwise the first.
func resolveItem(ctx context.Context, db *database.Database, it playlist.Item) (*database.Element, error) {
	if it.Name == "" {
		return nil, nil
	}
	els, err := db.SearchElements(ctx, it.Name, database.SearchName, database.MatchStrict)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	for i := range els {
		if filepath.ToSlash(els[i].Filepath()) == it.Path {
			return &els[i], nil
		}
	}
	return &els[0], nil
}
