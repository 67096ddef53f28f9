package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jsonrelay/internal/config"
	"jsonrelay/internal/core/engine"
	"jsonrelay/internal/metrics"
	"jsonrelay/internal/pkg/logger"
	"jsonrelay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Long:  `Load the endpoint configuration and start accepting submissions over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load()
		if err != nil {
			return err
		}

		// 初始化全局 logger
		zl, err := logger.NewWithFormat(settings.Log.Level, settings.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer zl.Sync()
		log := logger.NewLogger(zl)

		snapshot, warnings, err := engine.Load(settings.Endpoints.File)
		if err != nil {
			log.Error("Failed to load endpoint configuration",
				zap.String("path", settings.Endpoints.File),
				zap.Error(err),
			)
			return err
		}
		logWarnings(log, warnings)
		log.Info("Loaded endpoint configuration",
			zap.String("path", snapshot.Source()),
			zap.Strings("endpoints", snapshot.IDs()),
			zap.Time("loaded_at", snapshot.LoadedAt()),
		)

		holder := engine.NewHolder(snapshot)
		m := metrics.New(nil)

		opts := []server.Option{server.WithRedactRules(settings.Log.Redact)}
		if !settings.Metrics.Enabled {
			opts = append(opts, server.WithoutMetricsRoute())
		}
		srv := server.NewHTTPServer(settings.Server, holder, log, m, opts...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if settings.Endpoints.Watch {
			watcher := engine.NewWatcher(settings.Endpoints.File, holder, zl,
				engine.WithReloadHook(func(_ *engine.Engine, _ []engine.Warning, err error) {
					m.RecordReload(err)
				}),
			)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					log.Error("Endpoint watcher stopped", zap.Error(err))
				}
			}()
		}

		return srv.Start(ctx)
	},
}

func logWarnings(log *logger.Logger, warnings []engine.Warning) {
	for _, w := range warnings {
		log.Warn("Endpoint configuration warning",
			zap.String("endpoint", w.Endpoint),
			zap.String("field", w.Field),
			zap.String("message", w.Message),
		)
	}
}

func SetupServeCmd() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "Server port")
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "Server host")
	serveCmd.Flags().StringP("endpoints", "e", "config.json", "Endpoint configuration file (JSON or YAML)")
	serveCmd.Flags().Bool("watch", false, "Reload the endpoint configuration when the file changes")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("endpoints.file", serveCmd.Flags().Lookup("endpoints"))
	viper.BindPFlag("endpoints.watch", serveCmd.Flags().Lookup("watch"))
}
