// Package pool manages one pgx connection pool per endpoint.Endpoint,
// generalizing the single-database internal/repository/pg.Manager into a
// per-endpoint component the splitter/shard/balancer layers can each hold
// a reference to.
package pool

import (
	"context"
	"time"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/ewrap/pkg/ewrap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"
)

// Lease is a leased connection. Release must be called exactly once.
type Lease struct {
	conn    *pgxpool.Conn
	pool    *Pool
	started time.Time
}

// Conn returns the underlying pgx connection.
func (l *Lease) Conn() *pgx.Conn { return l.conn.Conn() }

// Release returns the connection to the pool and records the request
// outcome against the endpoint's rolling metrics.
func (l *Lease) Release(success bool) {
	l.conn.Release()
	l.pool.sem.Release(1)
	l.pool.endpoint.Metrics.RecordResult(time.Since(l.started), success)
}

// Pool is a single endpoint's connection pool. It wraps a pgxpool.Pool
// with an admission semaphore of MaxConnections permits. The sizing
// strategy only computes a target size (see CurrentTarget); neither the
// semaphore nor the pgxpool limits are changed by it.
type Pool struct {
	endpoint *endpoint.Endpoint
	cfg      *config.PoolConfig
	logger   logger.Logger

	pgpool *pgxpool.Pool
	sem    *semaphore.Weighted

	sizer    *sizer
	stopChan chan struct{}
}

// New constructs a Pool for the given endpoint. Connect must be called
// before use.
func New(ep *endpoint.Endpoint, cfg *config.PoolConfig, log logger.Logger) *Pool {
	return &Pool{
		endpoint: ep,
		cfg:      cfg,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes the underlying pgxpool and starts the maintenance
// loop that drives the configured sizing strategy. Mirrors
// pg.Manager.Connect's parse-then-construct shape, generalized to a
// per-endpoint DSN instead of a single global one.
func (p *Pool) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(p.endpoint.DSN)
	if err != nil {
		return errs.Wrap(errs.ConfigInvalid, err, "parsing endpoint dsn").WithAttempted([]string{p.endpoint.ID})
	}

	poolConfig.MaxConns = p.cfg.MaxConnections
	poolConfig.MinConns = p.cfg.MinConnections
	poolConfig.MaxConnLifetime = p.cfg.MaxConnAge
	poolConfig.MaxConnIdleTime = p.cfg.IdleTimeout

	pgpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return errs.Wrap(errs.EndpointUnavailable, err, "connecting to endpoint").WithAttempted([]string{p.endpoint.ID})
	}

	p.pgpool = pgpool

	initial := p.cfg.InitialConnections
	if p.cfg.Strategy == config.PoolSizingFixed {
		initial = p.cfg.MaxConnections
	}

	p.sem = semaphore.NewWeighted(int64(p.cfg.MaxConnections))
	p.sizer = newSizer(p.cfg, initial)

	if err := p.healthProbe(ctx); err != nil {
		return errs.Wrap(errs.EndpointUnavailable, err, "verifying endpoint connection").WithAttempted([]string{p.endpoint.ID})
	}

	p.endpoint.SetState(endpoint.StateHealthy)

	go p.maintainLoop(ctx)

	return nil
}

// healthProbe pings the endpoint and records latency/success into its
// rolling metrics.
func (p *Pool) healthProbe(ctx context.Context) error {
	if p.pgpool == nil {
		return ewrap.New("pool not connected")
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	start := time.Now()
	err := p.pgpool.Ping(attemptCtx)
	latency := time.Since(start)

	p.endpoint.Metrics.RecordResult(latency, err == nil)
	p.endpoint.Metrics.TouchHealthCheck(time.Now())

	if err != nil {
		return ewrap.Wrapf(err, "pinging endpoint %s", p.endpoint.ID)
	}

	return nil
}

// Probe runs an immediate health check rather than waiting for the next
// maintenance tick, and reports the resulting error, if any.
func (p *Pool) Probe(ctx context.Context) error {
	return p.healthProbe(ctx)
}

// Acquire waits, up to the configured acquire timeout, for admission
// under the current sizing target and then leases a live connection.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p.pgpool == nil {
		return nil, errs.New(errs.EndpointUnavailable, "endpoint not connected").WithAttempted([]string{p.endpoint.ID})
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		return nil, errs.Wrap(errs.Timeout, err, "acquiring pool slot").WithAttempted([]string{p.endpoint.ID})
	}

	conn, err := p.pgpool.Acquire(acquireCtx)
	if err != nil {
		p.sem.Release(1)

		return nil, errs.Wrap(errs.Timeout, err, "acquiring connection").WithAttempted([]string{p.endpoint.ID})
	}

	p.endpoint.Metrics.SetConnectionCount(int64(p.pgpool.Stat().AcquiredConns()))

	return &Lease{conn: conn, pool: p, started: time.Now()}, nil
}

// WithTx runs fn within a transaction leased from this pool, rolling
// back on error or panic and committing otherwise. Mirrors
// pg.Manager.Transaction, generalized to the per-endpoint pool.
func (p *Pool) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	tx, err := lease.Conn().Begin(ctx)
	if err != nil {
		lease.Release(false)

		return errs.Wrap(errs.ConnectionInvalid, err, "beginning transaction").WithAttempted([]string{p.endpoint.ID})
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			lease.Release(false)

			return errs.New(errs.ConnectionInvalid, "transaction failed and rollback failed").
				WithAttempted([]string{p.endpoint.ID})
		}

		lease.Release(false)

		return errs.Wrap(errs.ConnectionInvalid, err, "executing transaction").WithAttempted([]string{p.endpoint.ID})
	}

	if err := tx.Commit(ctx); err != nil {
		lease.Release(false)

		return errs.Wrap(errs.ConnectionInvalid, err, "committing transaction").WithAttempted([]string{p.endpoint.ID})
	}

	lease.Release(true)

	return nil
}

// Stats returns the underlying pgxpool statistics, or nil if unconnected.
func (p *Pool) Stats() *pgxpool.Stat {
	if p.pgpool == nil {
		return nil
	}

	return p.pgpool.Stat()
}

// Endpoint returns the endpoint this pool serves.
func (p *Pool) Endpoint() *endpoint.Endpoint { return p.endpoint }

// Drain waits for in-flight leases to settle and closes the underlying
// pool. Used before an endpoint is deregistered.
func (p *Pool) Drain(ctx context.Context) error {
	close(p.stopChan)

	if p.pgpool == nil {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(drainCtx, int64(p.cfg.MaxConnections)); err != nil {
		p.logger.Warnf("pool %s: draining timed out, closing with leases outstanding: %v", p.endpoint.ID, err)
	} else {
		p.sem.Release(int64(p.cfg.MaxConnections))
	}

	p.pgpool.Close()

	return nil
}

// maintainLoop periodically probes health and resizes the admission
// semaphore per the configured strategy. Mirrors the ticker/stopChan
// shape of pg.Monitor.Start/Stop.
func (p *Pool) maintainLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MaintenanceTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.healthProbe(ctx); err != nil {
				p.logger.Warnf("pool %s: health probe failed: %v", p.endpoint.ID, err)
			}

			p.resize()
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// resize samples current utilization and stores the sizer's new target.
// The admission semaphore keeps its MaxConnections permits; no permits
// are acquired or released here, so the target does not limit Acquire.
func (p *Pool) resize() {
	stat := p.Stats()
	if stat == nil {
		return
	}

	utilization := 0.0
	if stat.TotalConns() > 0 {
		utilization = float64(stat.AcquiredConns()) / float64(stat.TotalConns())
	}

	newTarget := p.sizer.sample(utilization)
	if newTarget == p.sizer.current() {
		return
	}

	p.sizer.setCurrent(newTarget)
}

// CurrentTarget returns the sizer's current target pool size.
func (p *Pool) CurrentTarget() int32 {
	if p.sizer == nil {
		return 0
	}

	return p.sizer.current()
}
