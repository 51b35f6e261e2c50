package shard

import (
	"context"
	"time"
)

// MigrationState is the lifecycle state of a shard migration.
type MigrationState string

const (
	// MigrationPending has been recorded but not started.
	MigrationPending MigrationState = "pending"
	// MigrationRunning is copying rows from source to destination.
	MigrationRunning MigrationState = "running"
	// MigrationCompleted finished successfully.
	MigrationCompleted MigrationState = "completed"
	// MigrationFailed stopped on an unrecoverable error.
	MigrationFailed MigrationState = "failed"
)

// Migration tracks the progress of moving keys from one shard to
// another during an online topology change (shard split/merge/rebalance).
type Migration struct {
	ID          string
	SourceShard string
	DestShard   string
	State       MigrationState
	Progress    float64 // 0.0-1.0
	StartedAt   time.Time
	UpdatedAt   time.Time
	Error       string
}

// Recorder persists migration progress so it survives a process
// restart. internal/metadata.Store implements this against the
// shard_migrations table.
type Recorder interface {
	SaveMigration(ctx context.Context, m Migration) error
}

// BeginMigration registers a new migration and, if rec is non-nil,
// persists its initial state.
func (r *Router) BeginMigration(ctx context.Context, rec Recorder, id, source, dest string) (*Migration, error) {
	m := &Migration{
		ID:          id,
		SourceShard: source,
		DestShard:   dest,
		State:       MigrationPending,
		StartedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	r.mu.Lock()
	r.migrations[id] = m
	r.mu.Unlock()

	if rec != nil {
		if err := rec.SaveMigration(ctx, *m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// UpdateMigrationProgress advances a migration's progress and persists
// the new state.
func (r *Router) UpdateMigrationProgress(ctx context.Context, rec Recorder, id string, progress float64, state MigrationState, migErr string) error {
	r.mu.Lock()
	m, ok := r.migrations[id]
	if !ok {
		r.mu.Unlock()

		return nil
	}

	m.Progress = progress
	m.State = state
	m.Error = migErr
	m.UpdatedAt = time.Now()
	snapshot := *m
	r.mu.Unlock()

	if rec != nil {
		return rec.SaveMigration(ctx, snapshot)
	}

	return nil
}

// Migration returns a snapshot of the migration with the given id, or
// nil if unknown.
func (r *Router) Migration(id string) *Migration {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.migrations[id]
	if !ok {
		return nil
	}

	snapshot := *m

	return &snapshot
}
