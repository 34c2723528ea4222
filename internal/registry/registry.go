package registry

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// Network identifies a supported chain.
type Network struct {
	ID    string `json:"id" mapstructure:"id"`
	Label string `json:"label" mapstructure:"label"`
}

// TokenContract describes a monitored stablecoin contract.
type TokenContract struct {
	Address  string `json:"address" mapstructure:"address"`
	Symbol   string `json:"symbol" mapstructure:"symbol"`
	Type     string `json:"type" mapstructure:"type"`
	Decimals uint8  `json:"decimals" mapstructure:"decimals"`
}

// NetworkEntry is the input shape for building a Registry.
type NetworkEntry struct {
	Network   `mapstructure:",squash"`
	Contracts []TokenContract `json:"contracts" mapstructure:"contracts"`
}

// Registry maps networks to their monitored contracts. It is read-only after New.
type Registry struct {
	networks  []Network
	contracts map[string][]TokenContract
	byAddress map[string]map[string]TokenContract
	sets      map[string]mapset.Set[string]
}

// New validates entries and builds a Registry. Addresses are normalized to lowercase.
func New(entries []NetworkEntry) (*Registry, error) {
	r := &Registry{
		contracts: make(map[string][]TokenContract, len(entries)),
		byAddress: make(map[string]map[string]TokenContract, len(entries)),
		sets:      make(map[string]mapset.Set[string], len(entries)),
	}

	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("network id is required")
		}
		if _, ok := r.byAddress[id]; ok {
			return nil, fmt.Errorf("duplicate network: %s", id)
		}

		label := strings.TrimSpace(entry.Label)
		if label == "" {
			label = id
		}

		set := mapset.NewThreadUnsafeSet[string]()
		lookup := make(map[string]TokenContract, len(entry.Contracts))
		contracts := make([]TokenContract, 0, len(entry.Contracts))
		for _, contract := range entry.Contracts {
			addr, err := NormalizeAddress(contract.Address)
			if err != nil {
				return nil, fmt.Errorf("network %s: %w", id, err)
			}
			if !set.Add(addr) {
				return nil, fmt.Errorf("network %s: duplicate contract %s", id, addr)
			}
			contract.Address = addr
			contract.Symbol = strings.TrimSpace(contract.Symbol)
			lookup[addr] = contract
			contracts = append(contracts, contract)
		}

		r.networks = append(r.networks, Network{ID: id, Label: label})
		r.contracts[id] = contracts
		r.byAddress[id] = lookup
		r.sets[id] = set
	}

	sort.Slice(r.networks, func(i, j int) bool { return r.networks[i].ID < r.networks[j].ID })
	return r, nil
}

// Networks returns all networks sorted by id.
func (r *Registry) Networks() []Network {
	out := make([]Network, len(r.networks))
	copy(out, r.networks)
	return out
}

// Network returns the network with the given id.
func (r *Registry) Network(id string) (Network, bool) {
	for _, n := range r.networks {
		if n.ID == id {
			return n, true
		}
	}
	return Network{}, false
}

// Contracts returns the contracts monitored on a network.
func (r *Registry) Contracts(id string) []TokenContract {
	contracts := r.contracts[id]
	out := make([]TokenContract, len(contracts))
	copy(out, contracts)
	return out
}

// Addresses returns the monitored contract addresses of a network for log filtering.
func (r *Registry) Addresses(id string) []common.Address {
	contracts := r.contracts[id]
	out := make([]common.Address, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, common.HexToAddress(c.Address))
	}
	return out
}

// Contains reports whether address is monitored on the network. Matching is case-insensitive.
func (r *Registry) Contains(id, address string) bool {
	set, ok := r.sets[id]
	if !ok {
		return false
	}
	return set.Contains(strings.ToLower(strings.TrimSpace(address)))
}

// Lookup returns the contract metadata for an address on a network.
func (r *Registry) Lookup(id, address string) (TokenContract, bool) {
	lookup, ok := r.byAddress[id]
	if !ok {
		return TokenContract{}, false
	}
	c, ok := lookup[strings.ToLower(strings.TrimSpace(address))]
	return c, ok
}

// NormalizeAddress validates a hex address and returns its lowercase form.
func NormalizeAddress(input string) (string, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return "", fmt.Errorf("invalid address: %s", input)
	}
	return strings.ToLower(common.HexToAddress(input).Hex()), nil
}
