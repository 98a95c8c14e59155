package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newColorsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "colors",
		Short: "Manage the language colors table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Fetch the language colors again from the linguist repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			colorService := newColorService(*cfg)
			if err := colorService.ForceRefresh(cmd.Context()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d language colors saved to %s\n", colorService.Len(), cfg.Colors.CacheFile)
			return nil
		},
	})

	return cmd
}
