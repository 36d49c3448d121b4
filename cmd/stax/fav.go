package main

import (
	"github.com/spf13/cobra"
)

// identity holds the --machine and --user overrides shared by the
// favorites and playlist commands.
type identity struct {
	machine, user string
}

func (id *identity) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&id.machine, "machine", "", "machine name (default from config)")
	cmd.PersistentFlags().StringVar(&id.user, "user", "", "user name (default from config)")
}

func (id *identity) resolve(a *app) (machine, user string) {
	machine, user = a.cfg.Machine, a.cfg.User
	if id.machine != "" {
		machine = id.machine
	}
	if id.user != "" {
		user = id.user
	}
	return machine, user
}

func newFavCmd(a *app) *cobra.Command {
	var who identity
	cmd := &cobra.Command{
		Use:   "fav",
		Short: "Manage favorites for this machine and user",
	}
	who.register(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "add <element-id>",
		Short: "Mark an element as a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}
			machine, user := who.resolve(a)
			_, added, err := a.db.AddFavorite(cmd.Context(), id, machine, user)
			if err != nil {
				return err
			}
			if added {
				a.printf("Added element %d to favorites\n", id)
			} else {
				a.printf("Element %d is already a favorite\n", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <element-id>",
		Short: "Remove a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "element")
			if err != nil {
				return err
			}
			machine, user := who.resolve(a)
			ok, err := a.db.RemoveFavorite(cmd.Context(), id, machine, user)
			if err != nil {
				return err
			}
			if !ok {
				a.printf("Element %d was not a favorite\n", id)
				return nil
			}
			a.printf("Removed element %d from favorites\n", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, user := who.resolve(a)
			elems, err := a.db.GetFavorites(cmd.Context(), machine, user)
			if err != nil {
				return err
			}
			return a.printElements(elems)
		},
	})

	return cmd
}
