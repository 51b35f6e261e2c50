// Package metadata persists the data plane's own operational state —
// shard topology, migration progress, performance metrics/alerts and
// cache statistics — in a small control-plane schema. It uses database/sql
// over the pgx stdlib driver, rather than pgxpool directly, so it can be
// exercised by DATA-DOG/go-sqlmock in tests; the high-throughput data path
// in internal/pool stays on pgxpool.
package metadata

import (
	"context"
	"database/sql"
	"time"

	"github.com/hyp3rd/dbplane/internal/cache"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/monitor"
	"github.com/hyp3rd/dbplane/internal/shard"
)

// Store is the metadata/control-plane persistence layer.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened *sql.DB (e.g. sql.Open("pgx", dsn)).
func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate creates the control-plane schema if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shards (
			shard_id TEXT PRIMARY KEY,
			connection_string TEXT,
			state TEXT,
			weight INT,
			replica_count INT,
			range_start TEXT,
			range_end TEXT,
			region TEXT,
			az TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS shard_directory (
			shard_key TEXT PRIMARY KEY,
			shard_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS shard_migrations (
			id TEXT PRIMARY KEY,
			source_shard TEXT NOT NULL,
			dest_shard TEXT NOT NULL,
			state TEXT NOT NULL,
			progress DOUBLE PRECISION NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS shard_statistics (
			shard_id TEXT NOT NULL,
			collected_at TIMESTAMPTZ NOT NULL,
			row_count BIGINT NOT NULL,
			size_bytes BIGINT NOT NULL,
			PRIMARY KEY (shard_id, collected_at)
		)`,
		`CREATE TABLE IF NOT EXISTS performance_metrics (
			endpoint_id TEXT NOT NULL,
			collected_at TIMESTAMPTZ NOT NULL,
			response_time_ms DOUBLE PRECISION NOT NULL,
			error_rate DOUBLE PRECISION NOT NULL,
			health_score DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (endpoint_id, collected_at)
		)`,
		`CREATE TABLE IF NOT EXISTS performance_alerts (
			alert_id TEXT PRIMARY KEY,
			rule_name TEXT NOT NULL,
			endpoint_id TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			threshold_value DOUBLE PRECISION NOT NULL,
			current_value DOUBLE PRECISION NOT NULL,
			fired_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			acknowledged BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS query_cache_stats (
			collected_at TIMESTAMPTZ NOT NULL PRIMARY KEY,
			hits BIGINT NOT NULL,
			misses BIGINT NOT NULL,
			evictions BIGINT NOT NULL,
			entries INT NOT NULL,
			memory_used BIGINT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errs.Wrap(errs.ConfigInvalid, err, "applying metadata schema")
		}
	}

	return nil
}

// SaveMigration implements shard.Recorder.
func (s *Store) SaveMigration(ctx context.Context, m shard.Migration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shard_migrations (id, source_shard, dest_shard, state, progress, started_at, updated_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at,
			error = EXCLUDED.error
	`, m.ID, m.SourceShard, m.DestShard, string(m.State), m.Progress, m.StartedAt, m.UpdatedAt, m.Error)
	if err != nil {
		return errs.Wrap(errs.MigrationFailed, err, "persisting migration state").WithAttempted([]string{m.SourceShard, m.DestShard})
	}

	return nil
}

// SaveCacheStats implements cache.StatsSink.
func (s *Store) SaveCacheStats(ctx context.Context, stats cache.Stats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_cache_stats (collected_at, hits, misses, evictions, entries, memory_used)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, time.Now(), stats.Hits, stats.Misses, stats.Evictions, stats.Entries, stats.MemoryUsed)
	if err != nil {
		return errs.Wrap(errs.ConnectionInvalid, err, "persisting cache stats")
	}

	return nil
}

// SavePerformanceMetric records one endpoint's metrics sample.
func (s *Store) SavePerformanceMetric(ctx context.Context, endpointID string, responseTimeMS, errorRate, healthScore float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_metrics (endpoint_id, collected_at, response_time_ms, error_rate, health_score)
		VALUES ($1, $2, $3, $4, $5)
	`, endpointID, time.Now(), responseTimeMS, errorRate, healthScore)
	if err != nil {
		return errs.Wrap(errs.ConnectionInvalid, err, "persisting performance metric").WithAttempted([]string{endpointID})
	}

	return nil
}

// SaveAlert implements monitor.Recorder: it upserts by alert ID so a
// value update or resolution on an already-persisted alert overwrites
// the same row instead of duplicating it.
func (s *Store) SaveAlert(ctx context.Context, alert monitor.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_alerts
			(alert_id, rule_name, endpoint_id, metric_name, severity, message, threshold_value, current_value, fired_at, resolved_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (alert_id) DO UPDATE SET
			severity = EXCLUDED.severity,
			message = EXCLUDED.message,
			current_value = EXCLUDED.current_value,
			resolved_at = EXCLUDED.resolved_at,
			acknowledged = EXCLUDED.acknowledged
	`, alert.ID, alert.RuleName, alert.EndpointID, alert.Metric, string(alert.Severity), alert.Message,
		alert.Threshold, alert.CurrentValue, alert.FiredAt, alert.ResolvedAt, alert.Acknowledged)
	if err != nil {
		return errs.Wrap(errs.ConnectionInvalid, err, "persisting alert").WithAttempted([]string{alert.EndpointID})
	}

	return nil
}

// ShardRecord is a shard's persisted topology snapshot.
type ShardRecord struct {
	ID               string
	ConnectionString string
	State            string
	Weight           int
	ReplicaCount     int
	RangeStart       string
	RangeEnd         string
	Region           string
	AZ               string
}

// SaveShard upserts a shard's topology snapshot.
func (s *Store) SaveShard(ctx context.Context, r ShardRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shards (shard_id, connection_string, state, weight, replica_count, range_start, range_end, region, az, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (shard_id) DO UPDATE SET
			connection_string = EXCLUDED.connection_string,
			state = EXCLUDED.state,
			weight = EXCLUDED.weight,
			replica_count = EXCLUDED.replica_count,
			range_start = EXCLUDED.range_start,
			range_end = EXCLUDED.range_end,
			region = EXCLUDED.region,
			az = EXCLUDED.az,
			updated_at = EXCLUDED.updated_at
	`, r.ID, r.ConnectionString, r.State, r.Weight, r.ReplicaCount, r.RangeStart, r.RangeEnd, r.Region, r.AZ, time.Now())
	if err != nil {
		return errs.Wrap(errs.ConnectionInvalid, err, "persisting shard topology").WithAttempted([]string{r.ID})
	}

	return nil
}

// AssignShardKey upserts a shard_directory binding, for the directory
// sharding strategy.
func (s *Store) AssignShardKey(ctx context.Context, key, shardID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shard_directory (shard_key, shard_id)
		VALUES ($1, $2)
		ON CONFLICT (shard_key) DO UPDATE SET shard_id = EXCLUDED.shard_id
	`, key, shardID)
	if err != nil {
		return errs.Wrap(errs.MigrationFailed, err, "persisting shard directory assignment").WithAttempted([]string{shardID})
	}

	return nil
}

// LoadShardDirectory returns the full persisted shard_directory table,
// for rehydrating a Router's in-memory directory on startup.
func (s *Store) LoadShardDirectory(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT shard_key, shard_id FROM shard_directory`)
	if err != nil {
		return nil, errs.Wrap(errs.ConnectionInvalid, err, "loading shard directory")
	}
	defer rows.Close()

	out := make(map[string]string)

	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, errs.Wrap(errs.ConnectionInvalid, err, "scanning shard directory row")
		}

		out[key] = id
	}

	return out, rows.Err()
}
