package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stablestream/internal/metrics"
	"stablestream/internal/model"
)

// Handle is one running aggregation: a branch per network merged into a
// single stream that is broadcast to every subscription.
type Handle struct {
	generation uint64
	prev       *Handle
	sources    []Source
	networks   mapset.Set[string]
	cfg        Config
	release    func(*Handle)
	logger     *zap.Logger
	metrics    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu      sync.Mutex
	running bool
	subs    map[*Subscription]struct{}
	err     error
}

func newHandle(
	generation uint64,
	prev *Handle,
	sources []Source,
	networks mapset.Set[string],
	cfg Config,
	release func(*Handle),
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handle {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Handle{
		generation: generation,
		prev:       prev,
		sources:    sources,
		networks:   networks,
		cfg:        cfg,
		release:    release,
		logger:     logger.With(zap.Uint64("generation", generation)),
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		running:    true,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Running reports whether the handle still accepts subscriptions.
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Subscribers returns the number of attached subscriptions.
func (h *Handle) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Done is closed once every branch has returned and subscriptions are terminated.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the terminal error after Done is closed: an *AggregationError
// for a branch failure, ErrStopped otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Stop cancels every branch. It is safe to call more than once.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	h.cancel(ErrStopped)
}

// Subscribe registers a consumer. With networks set, only events from those
// networks are delivered.
func (h *Handle) Subscribe(networks ...string) (*Subscription, error) {
	var filter mapset.Set[string]
	if len(networks) > 0 {
		filter = mapset.NewThreadUnsafeSet[string]()
		for _, network := range networks {
			if !h.networks.Contains(network) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
			}
			filter.Add(network)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil, ErrStopped
	}
	sub := newSubscription(h, filter, h.cfg.SubscriberBuffer)
	h.subs[sub] = struct{}{}
	return sub, nil
}

// unsubscribe removes sub. Removing the last subscription stops the handle.
func (h *Handle) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub)
	last := len(h.subs) == 0 && h.running
	if last {
		h.running = false
	}
	h.mu.Unlock()

	if last {
		h.logger.Info("last subscriber left, stopping pipeline")
		h.cancel(ErrStopped)
	}
}

func (h *Handle) start() {
	go h.run()
}

func (h *Handle) run() {
	// A handle started while its predecessor is still unwinding waits for it,
	// so a network never has two upstream branches at once.
	if prev := h.prev; prev != nil {
		<-prev.Done()
		h.prev = nil
		if h.ctx.Err() != nil {
			h.finish(nil)
			return
		}
	}

	merged := make(chan model.TransferEvent, h.cfg.MergeBuffer)
	g, gctx := errgroup.WithContext(h.ctx)
	for _, src := range h.sources {
		src := src
		g.Go(func() error {
			return h.runBranch(gctx, src, merged)
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(merged)
	}()

	for event := range merged {
		h.broadcast(event)
	}
	h.finish(waitErr)
}

func (h *Handle) runBranch(ctx context.Context, src Source, out chan<- model.TransferEvent) error {
	network := src.Network()
	logger := h.logger.With(zap.String("network", network))
	logger.Debug("branch start")

	err := src.Stream(ctx, func(event model.TransferEvent) error {
		select {
		case out <- model.Tag(event, network):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if ctx.Err() != nil {
		logger.Debug("branch cancelled")
		return ctx.Err()
	}
	if err == nil {
		err = ErrSourceEnded
	}

	aggErr := &AggregationError{Network: network, Err: err}
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	h.cancel(aggErr)

	logger.Error("branch failed", zap.Error(err))
	h.metrics.BranchFailed(network)
	return aggErr
}

// broadcast hands event to every matching subscription without blocking.
// A subscription whose buffer is full misses the event.
func (h *Handle) broadcast(event model.TransferEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.accepts(event.Network) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			h.metrics.EventDropped()
			h.logger.Warn("subscriber buffer full, dropping event",
				zap.String("network", event.Network),
				zap.String("tx_hash", event.TxHash),
				zap.Uint64("log_index", event.LogIndex),
			)
		}
	}
}

// finish resolves the terminal error. A sibling cancelled by a failing branch
// may return before it, so the cancel cause is checked as well as waitErr.
func (h *Handle) finish(waitErr error) {
	var aggErr *AggregationError
	var err error
	switch {
	case errors.As(waitErr, &aggErr):
		err = aggErr
	case errors.As(context.Cause(h.ctx), &aggErr):
		err = aggErr
	default:
		err = ErrStopped
	}
	h.cancel(err)

	h.mu.Lock()
	h.running = false
	h.err = err
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(err)
	}

	if aggErr != nil {
		h.logger.Error("pipeline terminated", zap.Error(err), zap.Int("subscribers", len(subs)))
	} else {
		h.logger.Info("pipeline stopped", zap.Int("subscribers", len(subs)))
	}

	h.release(h)
	close(h.done)
}
