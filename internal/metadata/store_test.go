package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hyp3rd/dbplane/internal/cache"
	"github.com/hyp3rd/dbplane/internal/monitor"
	"github.com/hyp3rd/dbplane/internal/shard"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("constructing sqlmock: %v", err)
	}

	return New(db), mock, func() { db.Close() }
}

func TestMigrateAppliesEverySchemaStatement(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	for i := 0; i < 7; i++ {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveMigration(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	m := shard.Migration{
		ID:          "mig-1",
		SourceShard: "s0",
		DestShard:   "s1",
		State:       shard.MigrationRunning,
		Progress:    0.5,
		StartedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	mock.ExpectExec("INSERT INTO shard_migrations").
		WithArgs(m.ID, m.SourceShard, m.DestShard, string(m.State), m.Progress, m.StartedAt, m.UpdatedAt, m.Error).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveMigration(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveCacheStats(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	stats := cache.Stats{Hits: 10, Misses: 2, Evictions: 1, Entries: 5, MemoryUsed: 1024}

	mock.ExpectExec("INSERT INTO query_cache_stats").
		WithArgs(sqlmock.AnyArg(), stats.Hits, stats.Misses, stats.Evictions, stats.Entries, stats.MemoryUsed).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveCacheStats(context.Background(), stats); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveAlert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	alert := monitor.Alert{
		ID:           "high_error_rate#ep0-1",
		RuleName:     "high_error_rate",
		EndpointID:   "ep0",
		Metric:       "error_rate",
		Severity:     monitor.SeverityCritical,
		Message:      "boom",
		Threshold:    0.2,
		CurrentValue: 0.9,
		FiredAt:      time.Now(),
	}

	mock.ExpectExec("INSERT INTO performance_alerts").
		WithArgs(alert.ID, alert.RuleName, alert.EndpointID, alert.Metric, string(alert.Severity), alert.Message,
			alert.Threshold, alert.CurrentValue, alert.FiredAt, alert.ResolvedAt, alert.Acknowledged).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveAlert(context.Background(), alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveShard(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rec := ShardRecord{ID: "s0", ConnectionString: "postgres://primary", State: "healthy", Weight: 3, ReplicaCount: 2, Region: "us-east", AZ: "us-east-1a"}

	mock.ExpectExec("INSERT INTO shards").
		WithArgs(rec.ID, rec.ConnectionString, rec.State, rec.Weight, rec.ReplicaCount, rec.RangeStart, rec.RangeEnd, rec.Region, rec.AZ, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SaveShard(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignAndLoadShardDirectory(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO shard_directory").
		WithArgs("tenant-1", "s0").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.AssignShardKey(context.Background(), "tenant-1", "s0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := sqlmock.NewRows([]string{"shard_key", "shard_id"}).
		AddRow("tenant-1", "s0").
		AddRow("tenant-2", "s1")

	mock.ExpectQuery("SELECT shard_key, shard_id FROM shard_directory").WillReturnRows(rows)

	dir, err := store.LoadShardDirectory(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir["tenant-1"] != "s0" || dir["tenant-2"] != "s1" {
		t.Fatalf("unexpected shard directory: %v", dir)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSavePerformanceMetric(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO performance_metrics").
		WithArgs("ep0", sqlmock.AnyArg(), 12.5, 0.01, 98.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.SavePerformanceMetric(context.Background(), "ep0", 12.5, 0.01, 98.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
