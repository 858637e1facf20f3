package main

import (
	"fmt"

	"github.com/Sternrassler/ordering-favorites/pkg/favorites"
	"github.com/spf13/cobra"
)

func newAddCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id>",
		Short: "Mark an entity as a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.AddFavorite(ctx, root.cfg.List.FavoriteURL, ids[0]); err != nil {
				return fmt.Errorf("add favorite %d: %w", ids[0], err)
			}
			a.ctrl.Start(ctx)
			return printJSON(cmd.OutOrStdout(), a.ctrl.RemoveFromAccumulated(ids[0], favorites.Changes{Favorite: true}))
		},
	}
}

func newRemoveCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"unfavorite"},
		Short:   "Remove a favorite and print the remaining list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := newApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			a.ctrl.Start(ctx)
			list, err := a.ctrl.Unfavorite(ctx, ids[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
}
