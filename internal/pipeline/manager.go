// Package pipeline merges per-network transfer streams into one live feed and
// keeps at most one such feed running per process.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"stablestream/internal/metrics"
	"stablestream/internal/model"
)

const (
	defaultMergeBuffer      = 64
	defaultSubscriberBuffer = 256
)

// Source is one network branch. Stream must block until ctx is done or the
// branch fails, calling emit for each event in order.
type Source interface {
	Network() string
	Stream(ctx context.Context, emit func(model.TransferEvent) error) error
}

// Config sizes the internal buffers.
type Config struct {
	MergeBuffer      int
	SubscriberBuffer int
}

// Manager owns the process-wide pipeline handle. Activate and Attach are
// serialized so only one set of branches runs at a time.
type Manager struct {
	sources  []Source
	networks mapset.Set[string]
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	current    *Handle
	generation uint64
}

// NewManager validates that every source reads a distinct network.
func NewManager(sources []Source, cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Manager, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}
	networks := mapset.NewThreadUnsafeSet[string]()
	for _, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("nil source")
		}
		if !networks.Add(src.Network()) {
			return nil, fmt.Errorf("duplicate source for network %s", src.Network())
		}
	}
	if cfg.MergeBuffer <= 0 {
		cfg.MergeBuffer = defaultMergeBuffer
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		sources:  append([]Source(nil), sources...),
		networks: networks,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Networks returns the network ids with a configured branch.
func (m *Manager) Networks() []string {
	out := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		out = append(out, src.Network())
	}
	return out
}

// Activate returns the running handle, or starts a new one if none is running.
// A handle started this way runs until Stop or a branch failure.
func (m *Manager) Activate() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h := m.current; h != nil && h.Running() {
		m.logger.Warn("pipeline already running, reusing handle", zap.Uint64("generation", h.generation))
		m.metrics.Activation("reused")
		return h
	}
	h := m.newHandleLocked()
	m.startLocked(h)
	return h
}

// Attach subscribes to the running pipeline, starting it first if needed.
// With no networks the subscription receives every event.
func (m *Manager) Attach(networks ...string) (*Subscription, error) {
	for _, network := range networks {
		if !m.networks.Contains(network) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h := m.current; h != nil && h.Running() {
		sub, err := h.Subscribe(networks...)
		if err == nil {
			m.logger.Warn("pipeline already running, attaching", zap.Uint64("generation", h.generation))
			m.metrics.Activation("reused")
			return sub, nil
		}
	}

	h := m.newHandleLocked()
	sub, err := h.Subscribe(networks...)
	if err != nil {
		return nil, err
	}
	m.startLocked(h)
	return sub, nil
}

// Current returns the handle last started, or nil once it has been released.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Stop shuts down the current pipeline, if any, and waits for it to finish.
func (m *Manager) Stop(ctx context.Context) error {
	h := m.Current()
	if h == nil {
		return nil
	}
	h.Stop()
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLocked publishes h as the current handle and launches its branches.
// Subscriptions taken before this call see every event.
func (m *Manager) startLocked(h *Handle) {
	m.current = h
	m.metrics.Activation("started")
	m.metrics.SetRunning(true)
	m.logger.Info("pipeline started", zap.Uint64("generation", h.generation), zap.Strings("networks", m.Networks()))
	h.start()
}

// newHandleLocked chains the new handle behind a current one that is still
// shutting down.
func (m *Manager) newHandleLocked() *Handle {
	m.generation++
	return newHandle(m.generation, m.current, m.sources, m.networks, m.cfg, m.release, m.metrics, m.logger)
}

// release clears the current reference if it still points at h.
func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == h {
		m.current = nil
		m.metrics.SetRunning(false)
	}
}
