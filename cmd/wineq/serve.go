package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"winequality/config"
	"winequality/db"
	qhttp "winequality/http"
	"winequality/logging"
	"winequality/ml"
	"winequality/monitoring"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction form and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 1. Load the model; there is nothing to serve without it
	store, err := ml.OpenStore(cfg.Model.Path, cfg.Model.Type)
	if err != nil {
		logger.Fatal("failed to load model", zap.String("path", cfg.Model.Path), zap.Error(err))
	}
	info := store.Info()
	logger.Info("model loaded",
		zap.String("type", info.Type),
		zap.String("checksum", info.Checksum),
		zap.Int("trees", info.Trees),
		zap.Int("nodes", info.Nodes),
		zap.Int("depth", info.Depth))

	// 2. Prediction history
	history, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer history.Close()
	logger.Info("prediction history opened", zap.String("path", cfg.Database.Path))

	metrics := monitoring.NewMetricsCollector()
	if counts, err := history.LabelCounts(ctx); err != nil {
		logger.Warn("could not seed metrics from history", zap.Error(err))
	} else {
		metrics.Seed(counts)
	}

	// 3. Live feed and artifact watcher
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed, err := monitoring.NewFeed(cfg.Feed.RecentSize, cfg.HTTP.AllowedOrigins, logger)
	if err != nil {
		return err
	}
	go feed.Run(ctx)

	if cfg.Model.Watch {
		go func() {
			if err := ml.WatchArtifact(ctx, cfg.Model.Path, logger); err != nil {
				logger.Warn("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	// 4. HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}, &qhttp.Handlers{
		Schema:    ml.WineSchema(),
		Predictor: ml.NewPredictor(store.Classifier()),
		Model:     info,
		History:   history,
		Metrics:   metrics,
		Feed:      feed,
		Logger:    logger,
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	// 5. Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		if err := server.Stop(); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}

	if cfg.Model.SaveOnExit {
		start := time.Now()
		written, err := store.Save()
		switch {
		case errors.Is(err, ml.ErrModelReplaced):
			logger.Warn("model artifact changed on disk; leaving it in place", zap.String("path", cfg.Model.Path))
		case err != nil:
			logger.Error("save model", zap.Error(err))
		default:
			logger.Info("model saved", zap.Bool("written", written), zap.Duration("elapsed", time.Since(start)))
		}
	}
	logger.Info("exiting")
	return nil
}
