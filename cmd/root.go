// Package cmd holds the command line entry points: the API server and the operator commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Scalingo/sclng-language-stats/config"
	"github.com/Scalingo/sclng-language-stats/logger"
	"github.com/Scalingo/sclng-language-stats/service"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

// Execute builds the root command and runs it
func Execute(version string) error {
	return newRootCmd(version).ExecuteContext(context.Background())
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "langstats",
		Short:        "Languages statistics of GitHub accounts, as JSON or SVG chart",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the TOML configuration file (default config/config.toml)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newCacheCmd(opts))
	rootCmd.AddCommand(newColorsCmd(opts))

	return rootCmd
}

// loadConfig loads the configuration and configures the logger to write on logOutput
func (o *rootOptions) loadConfig(logOutput io.Writer) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load configuration: %w", err)
	}

	logger.SetupWithOutput(cfg.Logs, logOutput)
	return cfg, nil
}

// pipeline groups the services needed to compute language stats
type pipeline struct {
	github service.GithubService
	cache  service.CacheService
}

// newPipeline sets up the github client, the local rate limiter and the cache
// we build the http client here and pass it to the services to easily replace it in tests
func newPipeline(ctx context.Context, cfg config.Config) (*pipeline, error) {
	httpClient := service.NewHTTPClient(ctx, cfg.Github)

	githubClient, err := service.NewGithubClient(cfg.Github, httpClient)
	if err != nil {
		return nil, err
	}

	rateLimiter := service.NewRateLimiter(ctx, githubClient, cfg.Github.FallbackRateLimit)

	githubService, err := service.NewGithubService(cfg, httpClient, rateLimiter)
	if err != nil {
		return nil, err
	}

	cacheService, err := service.NewCacheService(cfg, githubService)
	if err != nil {
		return nil, err
	}

	return &pipeline{github: githubService, cache: cacheService}, nil
}

// newColorService uses its own http client: the colors source is public and must not receive the github token
func newColorService(cfg config.Config) service.ColorService {
	timeout, err := cfg.Github.RequestTimeoutDuration()
	if err != nil {
		timeout = 0
	}

	return service.NewColorService(cfg.Colors, &http.Client{Timeout: timeout})
}
