package constants

import "time"

type ConfigEnvKey string

const (
	EnvPrefix = ConfigEnvKey("DBPLANE")
	// DBUsername is the environment variable name for the database username.
	DBUsername = ConfigEnvKey("DB_USERNAME")
	// DBPassword is the environment variable name for the database password.
	DBPassword = ConfigEnvKey("DB_PASSWORD")
)

// String implements the flag.Value interface.
func (k ConfigEnvKey) String() string {
	return string(k)
}

const (
	DefaultTimeout                   = 30 * time.Second
	QueryAPIPort                     = 8000
	QueryAPIReadTimeout              = "15s"
	QueryAPIWriteTimeout             = "15s"
	QueryAPIShutdownTimeout          = "5s"
	GRPCServerPort                   = 50051
	GRPCServerMaxConnectionIdle      = "15m"
	GRPCServerMaxConnectionAge       = "30m"
	GRPCServerMaxConnectionAgeGrace  = "5m"
	GRPCServerKeepaliveTime          = "5m"
	GRPCServerKeepaliveTimeout       = "20s"
	DBMaxOpenConns                   = 25
	DBMaxIdleConns                   = 25
	DBConnMaxLifetime                = "5m"
	PubSubAckDeadline                = "30s"
	PubSubRetryPolicyMinimumBackoff  = "10s"
	PubSubRetryPolicyMaximumBackoff  = "600s"
	PubSubRateLimitRequestsPerSecond = 100
	PubSubRateLimitBurstSize         = 50

	// Pool defaults.
	PoolMinConnections    = 5
	PoolMaxConnections    = 50
	PoolInitialConns      = 10
	PoolAcquireTimeout    = "30s"
	PoolIdleTimeout       = "5m"
	PoolStaleTimeout      = "1h"
	PoolMaxConnAge        = "2h"
	PoolMaintenanceTick   = "10s"
	PoolSampleWindow      = 100
	PoolUtilizationHigh   = 0.8
	PoolUtilizationLow    = 0.3
	PoolMaxScaleStep      = 5
	PoolMinIdleForScaleDn = 2

	// Splitter defaults.
	SplitterMaxLagMillis    = 1000
	SplitterSessionWindow   = "10s"
	SplitterFailoverEnabled = true

	// Shard router defaults.
	ShardVirtualNodes     = 150
	ShardReplicationFactor = 1

	// Load balancer defaults.
	BalancerBreakerFailureThreshold = 3
	BalancerBreakerSuccessThreshold = 2
	BalancerBreakerTimeout          = "60s"
	BalancerAffinityWindow          = "5m"
	BalancerWeightTick              = "30s"

	// Query cache defaults.
	CacheMaxEntries        = 10000
	CacheMaxMemoryBytes    = 256 << 20 // 256MiB
	CacheDefaultTTL        = "5m"
	CacheWarmingThreshold  = 5
	CacheWarmingTopN       = 20
	CacheCleanupTick       = "30s"
	CacheHybridFreqWeight  = 0.3
	CacheHybridRecenWeight = 0.7

	// Monitor defaults.
	MonitorCollectInterval  = "10s"
	MonitorAlertTick        = "2s"
	MonitorAlertRetention   = 30 // days
	MonitorMaxAlertsPerHour = 20
	MonitorDefaultCooldown  = "5m"
	MonitorCacheHitRateThreshold = 80.0
)
