package erc20

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"stablestream/internal/model"
)

// TransferDecoder decodes ERC20 Transfer(address,address,uint256) logs.
type TransferDecoder struct {
	event   abi.Event
	indexed abi.Arguments
}

// NewTransferDecoder builds a decoder from the ERC20 ABI.
func NewTransferDecoder() (*TransferDecoder, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	event, ok := parsed.Events["Transfer"]
	if !ok {
		return nil, fmt.Errorf("erc20 abi has no Transfer event")
	}

	indexed := make(abi.Arguments, 0, 2)
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	return &TransferDecoder{event: event, indexed: indexed}, nil
}

// Topic0 returns the Transfer event signature hash.
func (d *TransferDecoder) Topic0() common.Hash {
	return d.event.ID
}

// CanDecode checks if the log carries the Transfer signature.
func (d *TransferDecoder) CanDecode(log types.Log) bool {
	return len(log.Topics) > 0 && log.Topics[0] == d.event.ID
}

// Decode converts a raw log into a TransferEvent. The network is left empty.
// ERC721 transfers share topic0 but index the third argument; they are rejected.
func (d *TransferDecoder) Decode(log types.Log) (model.TransferEvent, error) {
	if !d.CanDecode(log) {
		return model.TransferEvent{}, fmt.Errorf("unsupported topic0")
	}
	if len(log.Topics) != len(d.indexed)+1 {
		return model.TransferEvent{}, fmt.Errorf("expected %d topics, got %d", len(d.indexed)+1, len(log.Topics))
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, d.indexed, log.Topics[1:]); err != nil {
		return model.TransferEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	if len(log.Data) != 32 {
		return model.TransferEvent{}, fmt.Errorf("expected 32 data bytes, got %d", len(log.Data))
	}
	values, err := d.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.TransferEvent{}, fmt.Errorf("unpack Transfer: %w", err)
	}
	if len(values) != 1 {
		return model.TransferEvent{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return model.TransferEvent{}, fmt.Errorf("unsupported value type %T", values[0])
	}

	return model.TransferEvent{
		From:            lowerHex(indexed.From),
		To:              lowerHex(indexed.To),
		Value:           new(big.Int).Set(value),
		ContractAddress: lowerHex(log.Address),
		Block: model.BlockMeta{
			Number: log.BlockNumber,
			Hash:   log.BlockHash.Hex(),
		},
		TxHash:   log.TxHash.Hex(),
		TxIndex:  uint64(log.TxIndex),
		LogIndex: uint64(log.Index),
	}, nil
}

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
