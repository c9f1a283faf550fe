package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"companystatus/config"
	qhttp "companystatus/http"
	"companystatus/logging"
	"companystatus/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prediction HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, level, p, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	exports, err := qhttp.NewExportStore(cfg.Export.CacheSize, cfg.Export.FileName)
	if err != nil {
		return err
	}
	handlers := qhttp.NewHandlers(p, exports, monitoring.NewMetricsCollector(), cfg.Http.AllowedOrigins, logger)
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxUploadBytes: cfg.Http.MaxUploadBytes,
	}, handlers, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return server.Stop()
	})
	g.Go(func() error {
		// only the log level is applied live; other changes need a restart
		err := config.Watch(ctx, configPath, logger, func(c *config.Config) {
			if err := logging.SetLevel(level, c.Log.Level); err != nil {
				logger.Warn("ignoring log level", zap.String("level", c.Log.Level), zap.Error(err))
				return
			}
			logger.Info("log level changed", zap.String("level", c.Log.Level))
		})
		if err != nil {
			logger.Warn("config watch disabled", zap.String("path", configPath), zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("exiting")
	return nil
}
