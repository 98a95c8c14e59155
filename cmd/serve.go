package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Scalingo/sclng-language-stats/controller"
	"github.com/Scalingo/sclng-language-stats/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(os.Stderr)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			p, err := newPipeline(ctx, *cfg)
			if err != nil {
				return err
			}

			// colors must be ready before the server accepts requests
			// if they can't be loaded, every language gets the default color
			colorService := newColorService(*cfg)
			if err := colorService.Init(ctx); err != nil {
				log.WithError(err).Error("unable to load language colors. default color will be used")
			}

			chartService := service.NewChartService(cfg.Chart, colorService)
			apiController := controller.NewAPIController(*cfg, p.cache, chartService, p.github)

			// setup server and define all routes
			gin.SetMode(gin.ReleaseMode)
			router := controller.NewRouter(apiController)

			server := &http.Server{
				Addr:              ":" + cfg.API.ListenPort,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			if len(cfg.Tasks.WarmupAccounts) > 0 {
				warmupService := service.NewWarmupService(*cfg, p.cache)
				go warmupService.Warmup(context.WithoutCancel(ctx), cfg.Tasks.WarmupAccounts)
			}

			// start with configuration
			go func() {
				log.Info("server listening on port " + cfg.API.ListenPort)

				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.WithError(err).Error("error while starting server")
				}
			}()

			// wait for interrupt signal to gracefully shut down the server with a timeout of 15 seconds.
			// kill default send syscall.SIGTERM
			// kill -2 is syscall.SIGINT
			quit := make(chan os.Signal, 1)

			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info("SIGINT, SIGTERM received, will shut down server ...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("Server forced to shutdown")
				return err
			}

			log.Info("Application stopped gracefully !")
			return nil
		},
	}
}
