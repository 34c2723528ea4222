package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stablestream/internal/chain"
	"stablestream/internal/metrics"
	"stablestream/internal/pipeline"
	"stablestream/internal/server"
	"stablestream/internal/source"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := loadRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := cfg.Validate(networkIDs(reg)); err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	enabled := cfg.EnabledNetworks(networkIDs(reg))
	sources := make([]pipeline.Source, 0, len(enabled))
	for _, id := range enabled {
		client, err := chain.NewClient(ctx, cfg.RPC[id])
		if err != nil {
			return fmt.Errorf("connect rpc for %s: %w", id, err)
		}
		defer client.Close()

		src, err := source.NewEVMSource(source.Config{
			Network:      id,
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, client, reg, m, logger)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	manager, err := pipeline.NewManager(sources, pipeline.Config{
		SubscriberBuffer: cfg.SubscriberBuffer,
	}, m, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Listen:        cfg.Listen,
		Keepalive:     cfg.Keepalive,
		EnableMetrics: cfg.Metrics,
	}, manager, reg, m, logger)

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.Strings("networks", enabled),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("subscriber_buffer", cfg.SubscriberBuffer),
		zap.Bool("metrics", cfg.Metrics),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
