package cmd

import (
	"errors"
	"fmt"

	"github.com/Scalingo/sclng-language-stats/service"
	"github.com/spf13/cobra"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the languages stats cache",
	}

	cmd.AddCommand(newCachePurgeCmd(opts))

	return cmd
}

// newCachePurgeCmd deletes cached records, this is the only way a record is removed
func newCachePurgeCmd(opts *rootOptions) *cobra.Command {
	var all bool

	purgeCmd := &cobra.Command{
		Use:   "purge [account]",
		Short: "Delete the cached stats of an account, or of every account with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give either an account or --all")
			}

			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			// no aggregation is done here, the cache does not need the github service
			cacheService, err := service.NewCacheService(*cfg, nil)
			if err != nil {
				return err
			}

			if all {
				count, err := cacheService.PurgeAll()
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d cached entries from %s\n", count, cfg.Cache.Dir)
				return nil
			}

			if err := cacheService.Purge(args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared cached stats of %s\n", args[0])
			return nil
		},
	}

	purgeCmd.Flags().BoolVar(&all, "all", false, "delete the cached stats of every account")

	return purgeCmd
}
