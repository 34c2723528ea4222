package model

import "fmt"

// DecodeError records a raw log that could not be decoded into a TransferEvent.
// It is reported and skipped; it never ends a stream.
type DecodeError struct {
	Network     string `json:"network"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Reason      string `json:"error"`
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s:%d on %s: %s", e.TxHash, e.LogIndex, e.Network, e.Reason)
}
