package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPostgres reads the registry from the networks and stablecoins tables:
//
//	networks(id text primary key, label text)
//	stablecoins(network_id text, address text, symbol text, type text, decimals smallint)
func LoadPostgres(ctx context.Context, dsn string) (*Registry, error) {
	if dsn == "" {
		return nil, fmt.Errorf("registry dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT id, label FROM networks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query networks: %w", err)
	}
	var networks []Network
	for rows.Next() {
		var n Network
		if err := rows.Scan(&n.ID, &n.Label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan network: %w", err)
		}
		networks = append(networks, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read networks: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT network_id, address, symbol, type, decimals
		FROM stablecoins
		ORDER BY network_id, symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query stablecoins: %w", err)
	}
	defer rows.Close()

	var coins []stablecoinRow
	for rows.Next() {
		var row stablecoinRow
		if err := rows.Scan(&row.networkID, &row.address, &row.symbol, &row.kind, &row.decimals); err != nil {
			return nil, fmt.Errorf("scan stablecoin: %w", err)
		}
		coins = append(coins, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stablecoins: %w", err)
	}

	entries, err := buildEntries(networks, coins)
	if err != nil {
		return nil, err
	}
	return New(entries)
}

// stablecoinRow is one row of the stablecoins table.
type stablecoinRow struct {
	networkID string
	address   string
	symbol    string
	kind      string
	decimals  int16
}

// buildEntries groups stablecoin rows under their networks, keeping network order.
func buildEntries(networks []Network, coins []stablecoinRow) ([]NetworkEntry, error) {
	entries := make([]NetworkEntry, 0, len(networks))
	index := make(map[string]int, len(networks))
	for _, n := range networks {
		index[n.ID] = len(entries)
		entries = append(entries, NetworkEntry{Network: n})
	}

	for _, row := range coins {
		i, ok := index[row.networkID]
		if !ok {
			return nil, fmt.Errorf("stablecoin %s references unknown network %s", row.address, row.networkID)
		}
		if row.decimals < 0 || row.decimals > 255 {
			return nil, fmt.Errorf("stablecoin %s: decimals out of range: %d", row.address, row.decimals)
		}
		entries[i].Contracts = append(entries[i].Contracts, TokenContract{
			Address:  row.address,
			Symbol:   row.symbol,
			Type:     row.kind,
			Decimals: uint8(row.decimals),
		})
	}
	return entries, nil
}
