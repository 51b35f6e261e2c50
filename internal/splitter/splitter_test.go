package splitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyp3rd/dbplane/internal/config"
	"github.com/hyp3rd/dbplane/internal/endpoint"
	"github.com/hyp3rd/dbplane/internal/errs"
	"github.com/hyp3rd/dbplane/internal/logger"
	"github.com/hyp3rd/dbplane/internal/logger/adapter"
	"github.com/hyp3rd/dbplane/internal/pool"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()

	cfg := logger.DefaultConfig()
	cfg.Output = nilWriter{}

	log, err := adapter.NewAdapter(cfg)
	if err != nil {
		t.Fatalf("constructing test logger: %v", err)
	}

	return log
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func newSplitter(t *testing.T, cfg *config.SplitterConfig, primaryID string) (*Splitter, *endpoint.Registry) {
	t.Helper()

	reg := endpoint.NewRegistry()
	pools := pool.NewManager(&config.PoolConfig{AcquireTimeout: time.Second}, testLogger(t), reg)

	return New(cfg, reg, pools, testLogger(t), primaryID), reg
}

func TestMarkStickyAndIsSticky(t *testing.T) {
	s, _ := newSplitter(t, &config.SplitterConfig{SessionWindow: time.Minute, FailoverEnabled: true, MaxReplicaLag: time.Second}, "primary")

	if s.isSticky("sess1") {
		t.Fatal("expected session not to be sticky before any write")
	}

	s.markSticky("sess1")
	if !s.isSticky("sess1") {
		t.Fatal("expected session to be sticky right after a write")
	}

	s.markSticky("") // no-op for an empty session id
	if s.isSticky("") {
		t.Fatal("expected empty session id never to be sticky")
	}
}

func TestIsStickyExpires(t *testing.T) {
	s, _ := newSplitter(t, &config.SplitterConfig{SessionWindow: -time.Second, FailoverEnabled: true, MaxReplicaLag: time.Second}, "primary")

	s.markSticky("sess1")

	if s.isSticky("sess1") {
		t.Fatal("expected sticky window already in the past to have expired")
	}
}

func TestRouteWriteAlwaysGoesPrimaryAndMarksSticky(t *testing.T) {
	s, reg := newSplitter(t, &config.SplitterConfig{SessionWindow: time.Minute, FailoverEnabled: true, MaxReplicaLag: time.Second}, "primary")

	primary := endpoint.New("primary", "dsn", endpoint.RolePrimary, 1, "", "")
	reg.Register(primary)

	_, err := s.Route(context.Background(), "sess1", "UPDATE users SET name = 'x'")
	if err == nil {
		t.Fatal("expected an error since no pool was ever opened for the primary")
	}

	if !errs.Is(err, errs.EndpointUnavailable) {
		t.Fatalf("expected EndpointUnavailable, got %v", err)
	}

	if !s.isSticky("sess1") {
		t.Fatal("expected the write to mark the session sticky even though routing ultimately failed")
	}
}

func TestRouteReadFailoverDisabledSurfacesReplicaError(t *testing.T) {
	s, _ := newSplitter(t, &config.SplitterConfig{SessionWindow: time.Minute, FailoverEnabled: false, MaxReplicaLag: time.Second}, "primary")

	_, err := s.Route(context.Background(), "sess1", "SELECT * FROM users")
	if err == nil {
		t.Fatal("expected an error with no replicas registered")
	}

	var de *errs.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *errs.Error, got %T", err)
	}

	if len(de.Attempted) != 0 {
		t.Fatalf("expected no replicas to have been attempted, got %v", de.Attempted)
	}
}

func TestRouteReadFailoverEnabledFallsBackToPrimary(t *testing.T) {
	s, reg := newSplitter(t, &config.SplitterConfig{SessionWindow: time.Minute, FailoverEnabled: true, MaxReplicaLag: time.Second}, "primary")

	primary := endpoint.New("primary", "dsn", endpoint.RolePrimary, 1, "", "")
	reg.Register(primary)

	_, err := s.Route(context.Background(), "sess1", "SELECT * FROM users")
	if err == nil {
		t.Fatal("expected an error since no pool was ever opened for the primary")
	}

	var de *errs.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *errs.Error, got %T", err)
	}

	if len(de.Attempted) != 1 || de.Attempted[0] != "primary" {
		t.Fatalf("expected fallback to have attempted the primary, got %v", de.Attempted)
	}
}

func TestCompositeScoreFavorsHigherWeight(t *testing.T) {
	heavy := endpoint.New("heavy", "dsn", endpoint.RoleReplica, 100, "", "")
	light := endpoint.New("light", "dsn", endpoint.RoleReplica, 1, "", "")

	if compositeScore(heavy) <= compositeScore(light) {
		t.Fatalf("expected a higher-weighted replica to score better when all else is equal: heavy=%v light=%v",
			compositeScore(heavy), compositeScore(light))
	}
}

func TestPromotePrimary(t *testing.T) {
	s, reg := newSplitter(t, &config.SplitterConfig{SessionWindow: time.Minute, FailoverEnabled: true, MaxReplicaLag: time.Second}, "primary")

	primary := endpoint.New("primary", "dsn", endpoint.RolePrimary, 1, "", "")
	replica := endpoint.New("replica", "dsn", endpoint.RoleReplica, 1, "", "")
	reg.Register(primary)
	reg.Register(replica)

	if err := s.PromotePrimary("replica"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.PrimaryID() != "replica" {
		t.Fatalf("expected replica to become primary, got %s", s.PrimaryID())
	}

	if primary.Role != endpoint.RoleReplica {
		t.Fatalf("expected old primary demoted to replica role, got %v", primary.Role)
	}

	if replica.Role != endpoint.RolePrimary {
		t.Fatalf("expected promoted endpoint to carry the primary role, got %v", replica.Role)
	}

	if err := s.PromotePrimary("unknown"); err == nil {
		t.Fatal("expected promoting an unknown endpoint to fail")
	}
}
