package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Sternrassler/ordering-favorites/pkg/favorites"
	"github.com/spf13/cobra"
)

var errReorderFailed = errors.New("reorder failed")

func newReorderCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reorder <order-id>...",
		Short: "Re-submit one or more past orders",
		Long: "Re-submit past orders. With several ids, one order per business is\n" +
			"submitted concurrently and the first failure is reported.",
		Args: cobra.MinimumNArgs(1),
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

			// Failed reorders are enriched from the loaded list.
			a.ctrl.Start(ctx)

			var state favorites.ReorderState
			if len(ids) == 1 {
				state = a.ctrl.Reorder(ctx, ids[0])
			} else {
				state = a.ctrl.ReorderGroup(ctx, ids)
			}

			if err := printJSON(cmd.OutOrStdout(), state); err != nil {
				return err
			}
			if state.Error {
				return errReorderFailed
			}
			return nil
		},
	}
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
