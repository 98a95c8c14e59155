package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Scalingo/sclng-language-stats/model"
	"github.com/Scalingo/sclng-language-stats/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type statsOptions struct {
	refresh bool
	primary bool
	svgPath string
}

// newStatsCmd prints the languages stats of an account through the cache
// example:
//
//	langstats stats octocat --refresh --svg octocat.svg
//	langstats stats octocat --primary
func newStatsCmd(opts *rootOptions) *cobra.Command {
	options := statsOptions{}

	statsCmd := &cobra.Command{
		Use:   "stats [account]",
		Short: "Print the languages stats of an account as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			p, err := newPipeline(ctx, *cfg)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")

			if options.primary {
				counts, code, _ := p.github.PrimaryLanguageCounts(ctx, args[0])
				if err := encoder.Encode(model.NewPrimaryLanguagesResponse(counts, code)); err != nil {
					return err
				}

				return rateLimitError(code)
			}

			stats, code, rateLimitInfo := p.cache.GetOrFetch(ctx, args[0], p.cache.DefaultTTL(), options.refresh)

			log.WithFields(log.Fields{
				"remaining": rateLimitInfo.Remaining,
				"reset":     rateLimitInfo.Reset,
			}).Debug("github rate limit after fetch")

			if err := encoder.Encode(model.StatsResponse{Stats: stats, ErrorCode: code}); err != nil {
				return err
			}

			if svgPath := strings.TrimSpace(options.svgPath); svgPath != "" && len(stats) > 0 {
				colorService := newColorService(*cfg)
				if err := colorService.Init(ctx); err != nil {
					log.WithError(err).Warning("unable to load language colors. default color will be used")
				}

				chartService := service.NewChartService(cfg.Chart, colorService)
				if err := os.WriteFile(svgPath, []byte(chartService.Render(stats, chartService.DefaultOptions())), 0o644); err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "chart written to %s\n", svgPath)
			}

			return rateLimitError(code)
		},
	}

	statsCmd.Flags().BoolVar(&options.refresh, "refresh", false, "bypass the cache and fetch from github")
	statsCmd.Flags().BoolVar(&options.primary, "primary", false, "count repositories per primary language instead, never cached")
	statsCmd.Flags().StringVar(&options.svgPath, "svg", "", "also write the chart to this SVG file")

	return statsCmd
}

func rateLimitError(code model.APIErrorCode) error {
	if code == model.RateLimitExceeded {
		return model.ErrRateLimitReached
	}

	return nil
}
