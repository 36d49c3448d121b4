package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"stax/internal/database"
	"stax/internal/library"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newElementCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "element",
		Aliases: []string{"el"},
		Short:   "Manage elements",
	}
	cmd.AddCommand(
		newElementLsCmd(a),
		newElementShowCmd(a),
		newElementAddCmd(a),
		newElementUpdateCmd(a),
		newElementDeprecateCmd(a),
		newElementDeleteCmd(a),
		newElementSearchCmd(a),
	)
	return cmd
}

func newElementLsCmd(a *app) *cobra.Command {
	var q database.ElementQuery
	ls := &cobra.Command{
		Use:   "ls <list-id>",
		Short: "List the elements of a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			elems, err := a.db.GetElementsByList(cmd.Context(), id, q)
			if err != nil {
				return err
			}
			return a.printElements(elems)
		},
	}
	ls.Flags().BoolVar(&q.IncludeDeprecated, "all", false, "include deprecated elements")
	ls.Flags().IntVar(&q.Limit, "limit", 0, "maximum number of elements")
	ls.Flags().IntVar(&q.Offset, "offset", 0, "elements to skip")
	return ls
}

func newElementShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show every field of an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := getElement(cmd, a, args[0])
			if err != nil {
				return err
			}
			frames := ""
			if e.FrameRange != nil {
				frames = *e.FrameRange
			}
			w := a.table()
			fmt.Fprintf(w, "ID:\t%d\n", e.ID)
			fmt.Fprintf(w, "List:\t%d\n", e.ListID)
			fmt.Fprintf(w, "Name:\t%s\n", e.Name)
			fmt.Fprintf(w, "Type:\t%s\n", e.Type)
			fmt.Fprintf(w, "Format:\t%s\n", e.Format)
			fmt.Fprintf(w, "Frames:\t%s\n", frames)
			fmt.Fprintf(w, "Path:\t%s\n", e.Filepath())
			fmt.Fprintf(w, "Soft path:\t%s\n", e.FilepathSoft)
			fmt.Fprintf(w, "Hard path:\t%s\n", e.FilepathHard)
			fmt.Fprintf(w, "Size:\t%s\n", humanize.IBytes(uint64(e.FileSize)))
			fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(e.TagList(), ", "))
			fmt.Fprintf(w, "Comment:\t%s\n", e.Comment)
			fmt.Fprintf(w, "Preview:\t%s\n", e.PreviewPath)
			fmt.Fprintf(w, "Deprecated:\t%v\n", e.IsDeprecated)
			fmt.Fprintf(w, "Created:\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"))
			return w.Flush()
		},
	}
}

func newElementAddCmd(a *app) *cobra.Command {
	var (
		name, copyMode, comment string
		tags                    []string
	)
	add := &cobra.Command{
		Use:   "add <list-id> <file>",
		Short: "Ingest a single file into a list",
		Long: `Ingest a single file into a list. The element type and format are
taken from the file extension. Use "stax import" for frame sequences
and whole directory trees.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			listID, err := parseID(args[0], "list")
			if err != nil {
				return err
			}
			if copyMode == "" {
				copyMode = a.cfg.DefaultCopy
			}
			policy, err := library.ParseCopyPolicy(copyMode)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if name == "" {
				base := filepath.Base(path)
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}

			item := library.Item{Name: name, Path: path, Files: []string{path}}
			id, err := library.New(a.db).Ingest(cmd.Context(), listID, item, library.IngestOptions{
				Copy:    policy,
				Comment: comment,
				Tags:    tags,
			})
			if err != nil {
				return err
			}
			a.printf("Created element %d: %s\n", id, name)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "element name (default: file name without extension)")
	add.Flags().StringVar(&copyMode, "copy", "", "soft or hard (default from config)")
	add.Flags().StringVar(&comment, "comment", "", "comment")
	add.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	return add
}

func newElementUpdateCmd(a *app) *cobra.Command {
	var (
		name, typ, format, comment, frames, preview string
		listID                                      int64
		clearFrames                                 bool
	)
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change element fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}

			var u database.ElementUpdate
			f := cmd.Flags()
			if f.Changed("name") {
				u.Name = &name
			}
			if f.Changed("type") {
				t, err := database.ParseElementType(typ)
				if err != nil {
					return err
				}
				u.Type = &t
			}
			if f.Changed("format") {
				u.Format = &format
			}
			if f.Changed("comment") {
				u.Comment = &comment
			}
			if f.Changed("frames") {
				u.FrameRange = &frames
			}
			if f.Changed("preview") {
				u.PreviewPath = &preview
			}
			if f.Changed("move-to") {
				u.ListID = &listID
			}
			u.ClearFrameRange = clearFrames

			ok, err := a.db.UpdateElement(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("element", id)
			}
			a.printf("Updated element %d\n", id)
			return nil
		},
	}
	f := update.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&typ, "type", "", "2D, 3D or Toolset")
	f.StringVar(&format, "format", "", "format label")
	f.StringVar(&comment, "comment", "", "comment")
	f.StringVar(&frames, "frames", "", "frame range such as 1001-1100")
	f.BoolVar(&clearFrames, "clear-frames", false, "remove the frame range")
	f.StringVar(&preview, "preview", "", "preview image path")
	f.Int64Var(&listID, "move-to", 0, "move to another list")
	return update
}

func newElementDeprecateCmd(a *app) *cobra.Command {
	var undo bool
	dep := &cobra.Command{
		Use:   "deprecate <id>...",
		Short: "Hide elements from normal listings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "element")
			if err != nil {
				return err
			}
			n, err := a.db.SetDeprecated(cmd.Context(), ids, !undo)
			if err != nil {
				return err
			}
			a.printf("Updated %d element(s)\n", n)
			return nil
		},
	}
	dep.Flags().BoolVar(&undo, "undo", false, "restore deprecated elements")
	return dep
}

func newElementDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an element",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}
			ok, err := a.db.DeleteElement(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return errNotFound("element", id)
			}
			a.printf("Deleted element %d\n", id)
			return nil
		},
	}
}

func newElementSearchCmd(a *app) *cobra.Command {
	var (
		by     string
		strict bool
	)
	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Search elements by a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			match := database.MatchLoose
			if strict {
				match = database.MatchStrict
			}
			elems, err := a.db.SearchElements(cmd.Context(), args[0], database.SearchProperty(by), match)
			if err != nil {
				return err
			}
			return a.printElements(elems)
		},
	}
	search.Flags().StringVar(&by, "by", string(database.SearchName), "name, format, type, comment or tags")
	search.Flags().BoolVar(&strict, "strict", false, "exact match instead of substring")
	return search
}

func getElement(cmd *cobra.Command, a *app, ref string) (*database.Element, error) {
	id, err := parseID(ref, "element")
	if err != nil {
		return nil, err
	}
	e, err := a.db.GetElement(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errNotFound("element", id)
	}
	return e, nil
}

func (a *app) printElements(elems []database.Element) error {
	if len(elems) == 0 {
		a.printf("No elements.\n")
		return nil
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tFORMAT\tFRAMES\tSIZE\tTAGS")
	for _, e := range elems {
		frames := ""
		if e.FrameRange != nil {
			frames = *e.FrameRange
		}
		name := e.Name
		if e.IsDeprecated {
			name += " (deprecated)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, name, e.Type, e.Format, frames, humanize.IBytes(uint64(e.FileSize)), e.Tags)
	}
	return w.Flush()
}
