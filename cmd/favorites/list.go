package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func newListCommand(root *rootOptions) *cobra.Command {
	var (
		page     int
		pageSize int
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the reconciled favorites as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			list := a.ctrl.FetchPage(ctx, page, pageSize)
			if all && list.Error == nil {
				list = a.ctrl.LoadAll(ctx)
			}

			if err := printJSON(cmd.OutOrStdout(), a.ctrl.Snapshot()); err != nil {
				return err
			}
			if list.Error != nil {
				return list.Error
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page to load")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (defaults to list.pagination.page_size)")
	cmd.Flags().BoolVar(&all, "all", false, "load every page after --page")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
