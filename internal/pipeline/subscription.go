package pipeline

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"stablestream/internal/model"
)

// Subscription is one consumer's view of a Handle. Events is never closed;
// consumers select on Done and drain Events before reading Err.
type Subscription struct {
	handle   *Handle
	networks mapset.Set[string]
	events   chan model.TransferEvent
	done     chan struct{}
	err      error

	closeOnce     sync.Once
	terminateOnce sync.Once
}

func newSubscription(h *Handle, networks mapset.Set[string], buffer int) *Subscription {
	return &Subscription{
		handle:   h,
		networks: networks,
		events:   make(chan model.TransferEvent, buffer),
		done:     make(chan struct{}),
	}
}

// Events delivers tagged events for the subscribed networks.
func (s *Subscription) Events() <-chan model.TransferEvent {
	return s.events
}

// Done is closed when the subscription is closed or its pipeline terminates.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns nil until Done is closed.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Handle returns the pipeline this subscription is attached to.
func (s *Subscription) Handle() *Handle {
	return s.handle
}

// Close detaches the subscription. Closing the last one stops the pipeline.
// It is idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.handle.unsubscribe(s)
		s.terminate(ErrClosed)
	})
}

func (s *Subscription) accepts(network string) bool {
	return s.networks == nil || s.networks.Contains(network)
}

func (s *Subscription) terminate(err error) {
	s.terminateOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}
