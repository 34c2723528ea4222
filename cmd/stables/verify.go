package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stablestream/internal/chain"
	"stablestream/internal/erc20"
	"stablestream/internal/registry"
)

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reg, err := loadRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}

	enabled := cfg.EnabledNetworks(networkIDs(reg))
	if len(enabled) == 0 {
		return fmt.Errorf("no networks enabled")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tSYMBOL\tADDRESS\tON-CHAIN\tDECIMALS\tSTATUS")

	mismatches := 0
	for _, id := range enabled {
		rpcURL := cfg.RPC[id]
		if rpcURL == "" {
			return fmt.Errorf("network %s has no rpc url", id)
		}

		netCtx, cancel := context.WithTimeout(ctx, timeout)
		n, err := verifyNetwork(netCtx, w, reg, id, rpcURL, logger)
		cancel()
		if err != nil {
			return err
		}
		mismatches += n
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if mismatches > 0 {
		return fmt.Errorf("%d registry entries differ from on-chain metadata", mismatches)
	}
	return nil
}

func verifyNetwork(ctx context.Context, w io.Writer, reg *registry.Registry, id, rpcURL string, logger *zap.Logger) (int, error) {
	client, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("connect rpc for %s: %w", id, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain id for %s: %w", id, err)
	}
	logger.Info("verifying network", zap.String("network", id), zap.String("chain_id", chainID.String()))

	return verifyContracts(ctx, w, client, id, reg.Contracts(id), logger), nil
}

// verifyContracts writes one row per contract and returns the number of rows
// that did not match.
func verifyContracts(ctx context.Context, w io.Writer, caller erc20.Caller, network string, contracts []registry.TokenContract, logger *zap.Logger) int {
	mismatches := 0
	for _, contract := range contracts {
		start := time.Now()
		meta, err := erc20.FetchTokenMeta(ctx, caller, common.HexToAddress(contract.Address), logger)
		if err != nil {
			logger.Warn("fetch token meta failed", zap.String("network", network), zap.String("address", contract.Address), zap.Error(err))
			fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\tERROR: %v\n", network, contract.Symbol, contract.Address, err)
			mismatches++
			continue
		}
		logger.Debug("token meta", zap.String("address", contract.Address), zap.Duration("elapsed", time.Since(start)))

		problems := compareMeta(contract, meta)
		status := "ok"
		if len(problems) > 0 {
			status = strings.Join(problems, "; ")
			mismatches++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", network, contract.Symbol, contract.Address, meta.Symbol, meta.Decimals, status)
	}
	return mismatches
}

func compareMeta(contract registry.TokenContract, meta erc20.TokenMeta) []string {
	var problems []string
	if contract.Decimals != meta.Decimals {
		problems = append(problems, fmt.Sprintf("decimals %d != %d", contract.Decimals, meta.Decimals))
	}
	if meta.Symbol != "" && !strings.EqualFold(contract.Symbol, meta.Symbol) {
		problems = append(problems, fmt.Sprintf("symbol %s != %s", contract.Symbol, meta.Symbol))
	}
	return problems
}
