package dataplane

import (
	"context"
	"testing"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/shard"
)

func TestTablesInExtractsFromIntoAndUpdate(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"SELECT * FROM users WHERE id = 1", []string{"users"}},
		{"INSERT INTO orders (id) VALUES (1)", []string{"orders"}},
		{"UPDATE accounts SET balance = 1 WHERE id = 2", []string{"accounts"}},
		{"SELECT u.id FROM USERS u JOIN orders o ON o.user_id = u.id", []string{"users"}},
		{"SELECT 1", nil},
	}

	for _, tt := range tests {
		got := tablesIn(tt.query)

		if len(got) != len(tt.want) {
			t.Errorf("tablesIn(%q) = %v, want %v", tt.query, got, tt.want)

			continue
		}

		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("tablesIn(%q) = %v, want %v", tt.query, got, tt.want)

				break
			}
		}
	}
}

func TestTablesInDedupes(t *testing.T) {
	got := tablesIn("SELECT * FROM users WHERE id IN (SELECT user_id FROM users)")
	if len(got) != 1 || got[0] != "users" {
		t.Fatalf("expected a single deduplicated table, got %v", got)
	}
}

func newTestDB(t *testing.T, shardCfg *config.ShardConfig) *DB {
	t.Helper()

	reg := endpoint.NewRegistry()
	router := shard.New(shardCfg)
	router.AddShard(&shard.Shard{ID: "default"})

	return &DB{
		registry:      reg,
		shards:        router,
		recentQueries: make(map[string]recentQuery),
	}
}

func TestRouteShardSingleDefaultShardResolvesRegardlessOfKey(t *testing.T) {
	db := newTestDB(t, &config.ShardConfig{Strategy: config.ShardStrategyHash})

	sh, err := db.routeShard(nil)
	if err != nil {
		t.Fatalf("unexpected error with no params: %v", err)
	}

	if sh.ID != "default" {
		t.Fatalf("expected the default shard, got %s", sh.ID)
	}
}

func TestAddAndRemoveShard(t *testing.T) {
	db := newTestDB(t, &config.ShardConfig{Strategy: config.ShardStrategyDirectory})

	db.AddShard("extra", nil)

	if len(db.shards.All()) != 2 {
		t.Fatalf("expected 2 shards after AddShard, got %d", len(db.shards.All()))
	}

	db.RemoveShard("extra")

	if len(db.shards.All()) != 1 {
		t.Fatalf("expected 1 shard after RemoveShard, got %d", len(db.shards.All()))
	}
}

func TestGetStatisticsAndHealth(t *testing.T) {
	db := newTestDB(t, &config.ShardConfig{Strategy: config.ShardStrategyHash})

	ep := endpoint.New("ep0", "dsn", endpoint.RolePrimary, 1, "", "")
	db.registry.Register(ep)

	stats := db.GetStatistics()
	if stats["ep0"] != 100 {
		t.Fatalf("expected a fresh endpoint to score 100, got %v", stats["ep0"])
	}

	health := db.Health()
	if health["ep0"] != "healthy" {
		t.Fatalf("expected a fresh endpoint to be healthy, got %v", health["ep0"])
	}
}

func TestNextSessionIDIsUniqueAndOrdered(t *testing.T) {
	db := newTestDB(t, &config.ShardConfig{Strategy: config.ShardStrategyHash})

	first := db.NextSessionID()
	second := db.NextSessionID()

	if first == second {
		t.Fatal("expected successive session ids to differ")
	}

	if first == "" || second == "" {
		t.Fatal("expected non-empty session ids")
	}
}

func TestInvalidateCacheHelpersAreNilSafeWithoutCache(t *testing.T) {
	db := newTestDB(t, &config.ShardConfig{Strategy: config.ShardStrategyHash})

	if n := db.InvalidateCacheByTable("users"); n != 0 {
		t.Fatalf("expected 0 with no cache configured, got %d", n)
	}

	if n := db.InvalidateCacheByTags([]string{"x"}); n != 0 {
		t.Fatalf("expected 0 with no cache configured, got %d", n)
	}

	db.ClearCache() // must not panic with cache == nil
}

func TestExecuteAnalyticsWithoutBalancerReturnsError(t *testing.T) {
	db := newTestDB(t, &config.ShardConfig{Strategy: config.ShardStrategyHash})

	_, err := db.ExecuteAnalytics(context.Background(), "", "SELECT 1", nil)
	if err == nil {
		t.Fatal("expected an error when no analytics balancer is configured")
	}
}
