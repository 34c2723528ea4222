package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is the terminal error of a pipeline that was shut down on purpose.
	ErrStopped = errors.New("pipeline stopped")
	// ErrClosed is the terminal error of a subscription its consumer closed.
	ErrClosed = errors.New("subscription closed")
	// ErrSourceEnded is reported when a branch stream returns without an error.
	ErrSourceEnded = errors.New("source ended unexpectedly")
	// ErrUnknownNetwork is returned when a subscription filter names a network with no branch.
	ErrUnknownNetwork = errors.New("unknown network")
)

// AggregationError is a fatal branch failure. It terminates the whole aggregated stream.
type AggregationError struct {
	Network string
	Err     error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("network %s failed: %v", e.Network, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
