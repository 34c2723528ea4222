package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stablestream/internal/config"
	"stablestream/internal/registry"
)

func main() {
	root := &cobra.Command{
		Use:          "stables",
		Short:        "Live stablecoin transfer stream",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the aggregated transfer stream over SSE",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	addRegistryFlags(serveCmd)
	serveCmd.Flags().Duration("poll-interval", 2*time.Second, "head polling interval")
	serveCmd.Flags().Uint64("batch-size", 500, "blocks per eth_getLogs request")
	serveCmd.Flags().Int("max-retries", 5, "maximum retry attempts per upstream call")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().Duration("keepalive", 3*time.Second, "SSE keepalive interval")
	serveCmd.Flags().Int("subscriber-buffer", 256, "events buffered per stream client")
	serveCmd.Flags().Bool("metrics", true, "expose /metrics")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	networksCmd := &cobra.Command{
		Use:   "networks",
		Short: "Print the network registry",
		RunE:  runNetworks,
	}

	addRegistryFlags(networksCmd)
	networksCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(networksCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare registry symbols and decimals with on-chain ERC20 metadata",
		RunE:  runVerify,
	}

	addRegistryFlags(verifyCmd)
	verifyCmd.Flags().Duration("timeout", 30*time.Second, "per-network timeout")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(verifyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRegistryFlags(cmd *cobra.Command) {
	cmd.Flags().String("registry", "", "registry file (yaml/json/toml); built-in table when empty")
	cmd.Flags().String("registry-dsn", "", "Postgres DSN to load the registry from")
	cmd.Flags().StringSlice("networks", nil, "networks to enable (comma-separated); default all with an rpc url")
	cmd.Flags().StringToString("rpc", nil, "rpc url per network (id=url,...)")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Flags())
}

// loadRegistry prefers Postgres, then a registry file, then the built-in table.
func loadRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (*registry.Registry, error) {
	switch {
	case cfg.RegistryDSN != "":
		logger.Info("registry from postgres")
		reg, err := registry.LoadPostgres(ctx, cfg.RegistryDSN)
		if err != nil {
			return nil, fmt.Errorf("load registry: %w", err)
		}
		return reg, nil
	case cfg.Registry != "":
		logger.Info("registry from file", zap.String("path", cfg.Registry))
		reg, err := registry.LoadFile(cfg.Registry)
		if err != nil {
			return nil, fmt.Errorf("load registry: %w", err)
		}
		return reg, nil
	default:
		return registry.Default(), nil
	}
}

func networkIDs(reg *registry.Registry) []string {
	networks := reg.Networks()
	ids := make([]string, 0, len(networks))
	for _, network := range networks {
		ids = append(ids, network.ID)
	}
	return ids
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
