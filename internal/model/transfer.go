package model

import (
	"encoding/json"
	"math/big"
)

// BlockMeta locates a log on chain.
type BlockMeta struct {
	Number    uint64 `json:"number"`
	Hash      string `json:"hash"`
	Timestamp uint64 `json:"timestamp"`
}

// TransferEvent is a decoded ERC20 Transfer restricted to a registry contract.
// Addresses are lowercase hex.
type TransferEvent struct {
	From            string
	To              string
	Value           *big.Int
	Network         string
	ContractAddress string
	Symbol          string
	Decimals        uint8
	Block           BlockMeta
	TxHash          string
	TxIndex         uint64
	LogIndex        uint64
}

type transferEventJSON struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	Value           string    `json:"value"`
	Network         string    `json:"network"`
	ContractAddress string    `json:"contract_address"`
	Symbol          string    `json:"symbol,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	Block           BlockMeta `json:"block"`
	TxHash          string    `json:"tx_hash"`
	TxIndex         uint64    `json:"tx_index"`
	LogIndex        uint64    `json:"log_index"`
}

// MarshalJSON renders Value as a base-10 string so no precision is lost.
func (e TransferEvent) MarshalJSON() ([]byte, error) {
	out := transferEventJSON{
		From:            e.From,
		To:              e.To,
		Value:           ValueString(e.Value),
		Network:         e.Network,
		ContractAddress: e.ContractAddress,
		Symbol:          e.Symbol,
		Block:           e.Block,
		TxHash:          e.TxHash,
		TxIndex:         e.TxIndex,
		LogIndex:        e.LogIndex,
	}
	if e.Symbol != "" {
		out.Amount = FormatAmount(e.Value, e.Decimals)
	}
	return json.Marshal(out)
}

// Tag stamps the originating network on an event.
func Tag(event TransferEvent, network string) TransferEvent {
	event.Network = network
	return event
}

// ValueString returns the decimal representation of v, "0" for nil.
func ValueString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
