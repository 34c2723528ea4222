package source

import "fmt"

// UpstreamError reports that a network lost its chain-data source. It is fatal
// to the source that returns it.
type UpstreamError struct {
	Network string
	Op      string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Network, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
