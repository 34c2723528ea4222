// Package source opens live Transfer event streams for a single network.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"stablestream/internal/erc20"
	"stablestream/internal/metrics"
	"stablestream/internal/model"
	"stablestream/internal/registry"
)

// LogReader is the chain-data capability a source needs.
type LogReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Config holds runtime settings for one network source.
type Config struct {
	Network      string
	FromBlock    uint64 // 0 starts at the latest head
	PollInterval time.Duration
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// EVMSource streams decoded Transfer events for the registry contracts of one network.
type EVMSource struct {
	cfg       Config
	reader    LogReader
	registry  *registry.Registry
	decoder   *erc20.TransferDecoder
	addresses []common.Address
	topic0    []common.Hash
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewEVMSource builds a source for cfg.Network. The network must exist in reg and
// have at least one contract.
func NewEVMSource(cfg Config, reader LogReader, reg *registry.Registry, m *metrics.Metrics, logger *zap.Logger) (*EVMSource, error) {
	if reader == nil {
		return nil, fmt.Errorf("log reader is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if _, ok := reg.Network(cfg.Network); !ok {
		return nil, fmt.Errorf("unknown network: %s", cfg.Network)
	}
	addresses := reg.Addresses(cfg.Network)
	if len(addresses) == 0 {
		return nil, fmt.Errorf("network %s has no contracts", cfg.Network)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	decoder, err := erc20.NewTransferDecoder()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EVMSource{
		cfg:       cfg,
		reader:    reader,
		registry:  reg,
		decoder:   decoder,
		addresses: addresses,
		topic0:    []common.Hash{decoder.Topic0()},
		logger:    logger.With(zap.String("network", cfg.Network)),
		metrics:   m,
	}, nil
}

// Network returns the network id this source reads.
func (s *EVMSource) Network() string {
	return s.cfg.Network
}

// Stream follows the chain head and calls emit for every accepted event in block
// order. It only returns on ctx cancellation, an emit error or an *UpstreamError.
func (s *EVMSource) Stream(ctx context.Context, emit func(model.TransferEvent) error) error {
	next := s.cfg.FromBlock
	if next == 0 {
		head, err := s.latest(ctx)
		if err != nil {
			return err
		}
		next = head
	}

	s.logger.Info("source start", zap.Uint64("from", next), zap.Int("contracts", len(s.addresses)))

	for {
		head, err := s.latest(ctx)
		if err != nil {
			return err
		}

		for next <= head {
			blockRange := nextRange(next, head, s.cfg.BatchSize)
			logs, err := s.filterLogs(ctx, blockRange)
			if err != nil {
				return err
			}
			for _, log := range logs {
				if err := s.handle(ctx, log, emit); err != nil {
					return err
				}
			}
			if len(logs) > 0 {
				s.logger.Debug("range complete", zap.Int("logs", len(logs)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
			}
			next = blockRange.To + 1
		}

		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *EVMSource) handle(ctx context.Context, log types.Log, emit func(model.TransferEvent) error) error {
	if log.Removed {
		return nil
	}

	event, err := s.decoder.Decode(log)
	if err != nil {
		s.metrics.DecodeError(s.cfg.Network)
		decodeErr := decodeErrorFromLog(s.cfg.Network, log, err)
		s.logger.Debug("skip undecodable log", zap.Error(decodeErr))
		return nil
	}

	contract, ok := s.registry.Lookup(s.cfg.Network, event.ContractAddress)
	if !ok {
		s.metrics.EventFiltered(s.cfg.Network)
		return nil
	}
	event.Symbol = contract.Symbol
	event.Decimals = contract.Decimals

	ts, err := s.blockTimestamp(ctx, log.BlockNumber)
	if err != nil {
		return err
	}
	event.Block.Timestamp = ts

	s.metrics.EventDecoded(s.cfg.Network)
	return emit(event)
}

func (s *EVMSource) latest(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = s.reader.LatestBlockNumber(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("latest block failed", zap.Error(err))
		}
		return err
	})
	return head, s.upstream(ctx, "latest block", err)
}

func (s *EVMSource) filterLogs(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = s.reader.FilterLogs(ctx, blockRange.From, blockRange.To, s.addresses, s.topic0)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, s.upstream(ctx, "filter logs", err)
}

func (s *EVMSource) blockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = s.reader.BlockTimestamp(ctx, number)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("block timestamp failed", zap.Error(err), zap.Uint64("block_number", number))
		}
		return err
	})
	return ts, s.upstream(ctx, "block timestamp", err)
}

// upstream wraps exhausted-retry failures; cancellation passes through unchanged.
func (s *EVMSource) upstream(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &UpstreamError{Network: s.cfg.Network, Op: op, Err: err}
}

func decodeErrorFromLog(network string, log types.Log, err error) *model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return &model.DecodeError{
		Network:     network,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Reason:      err.Error(),
	}
}
