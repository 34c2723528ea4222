package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"stablestream/internal/registry"
)

type networkListing struct {
	registry.Network
	RPC       string                   `json:"rpc,omitempty"`
	Contracts []registry.TokenContract `json:"contracts"`
}

func runNetworks(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := loadRegistry(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	networks := reg.Networks()
	out := make([]networkListing, 0, len(networks))
	for _, network := range networks {
		out = append(out, networkListing{
			Network:   network,
			RPC:       cfg.RPC[network.ID],
			Contracts: reg.Contracts(network.ID),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
