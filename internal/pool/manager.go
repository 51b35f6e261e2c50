package pool

import (
	"context"
	"sync"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/logger"
)

// Manager owns one Pool per registered endpoint and is the single place
// that creates or tears one down, mirroring the ownership rule on
// endpoint.Registry ("owning for creation/deregistration, which drains
// the endpoint's pool first").
type Manager struct {
	cfg      *config.PoolConfig
	logger   logger.Logger
	registry *endpoint.Registry

	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewManager constructs a Manager bound to the given endpoint registry.
func NewManager(cfg *config.PoolConfig, log logger.Logger, registry *endpoint.Registry) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		pools:    make(map[string]*Pool),
	}
}

// Open registers ep and connects a pool for it.
func (m *Manager) Open(ctx context.Context, ep *endpoint.Endpoint) error {
	p := New(ep, m.cfg, m.logger)
	if err := p.Connect(ctx); err != nil {
		return err
	}

	m.registry.Register(ep)

	m.mu.Lock()
	m.pools[ep.ID] = p
	m.mu.Unlock()

	return nil
}

// Close drains and closes the pool for the given endpoint id and
// deregisters the endpoint.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	p, ok := m.pools[id]
	if ok {
		delete(m.pools, id)
	}
	m.mu.Unlock()

	if !ok {
		return errs.New(errs.EndpointUnavailable, "unknown endpoint").WithAttempted([]string{id})
	}

	if err := p.Drain(ctx); err != nil {
		return err
	}

	m.registry.Deregister(id)

	return nil
}

// Get returns the Pool for the given endpoint id, or nil.
func (m *Manager) Get(id string) *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.pools[id]
}

// All returns a snapshot slice of all managed pools.
func (m *Manager) All() []*Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}

	return out
}

// CloseAll drains and closes every managed pool, e.g. on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.RLock()
	pools := make([]*Pool, 0, len(m.pools))
	for _, p := range m.pools {
		pools = append(pools, p)
	}
	m.mu.RUnlock()

	for _, p := range pools {
		if err := p.Drain(ctx); err != nil {
			m.logger.Warnf("pool %s: drain on shutdown failed: %v", p.Endpoint().ID, err)
		}
	}
}
