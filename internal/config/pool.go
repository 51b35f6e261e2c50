package config

import (
	"time"

	"github.com/hyp3rd/ewrap/pkg/ewrap"
)

// implement the validatable interface.
var _ validatable = (*PoolConfig)(nil)

// PoolSizingStrategy selects how a pool.Pool grows and shrinks its
// connections over time.
type PoolSizingStrategy string

const (
	// PoolSizingFixed keeps the pool at MaxConnections at all times.
	PoolSizingFixed PoolSizingStrategy = "fixed"
	// PoolSizingDynamic scales between MinConnections and MaxConnections
	// based on instantaneous utilization.
	PoolSizingDynamic PoolSizingStrategy = "dynamic"
	// PoolSizingAdaptive scales using a rolling utilization window and
	// caps the size of any single scaling step.
	PoolSizingAdaptive PoolSizingStrategy = "adaptive"
)

// PoolConfig holds the per-endpoint connection pool configuration.
type PoolConfig struct {
	Strategy           PoolSizingStrategy `mapstructure:"strategy"`
	MinConnections     int32              `mapstructure:"min_connections"`
	MaxConnections     int32              `mapstructure:"max_connections"`
	InitialConnections int32              `mapstructure:"initial_connections"`
	AcquireTimeout     time.Duration      `mapstructure:"acquire_timeout"`
	IdleTimeout        time.Duration      `mapstructure:"idle_timeout"`
	StaleTimeout       time.Duration      `mapstructure:"stale_timeout"`
	MaxConnAge         time.Duration      `mapstructure:"max_conn_age"`
	MaintenanceTick    time.Duration      `mapstructure:"maintenance_tick"`
	SampleWindow       int                `mapstructure:"sample_window"`
	UtilizationHigh    float64            `mapstructure:"utilization_high"`
	UtilizationLow     float64            `mapstructure:"utilization_low"`
	MaxScaleStep       int32              `mapstructure:"max_scale_step"`
	MinIdleForScaleDn  int32              `mapstructure:"min_idle_for_scale_down"`
}

// Validate checks the validity of the PoolConfig struct and returns an
// ErrorGroup containing any configuration errors found.
func (c *PoolConfig) Validate(eg *ewrap.ErrorGroup) {
	switch c.Strategy {
	case PoolSizingFixed, PoolSizingDynamic, PoolSizingAdaptive:
	default:
		eg.Add(ewrap.New("invalid pool sizing strategy").WithMetadata("strategy", c.Strategy))
	}

	if c.MinConnections <= 0 {
		eg.Add(ewrap.New("invalid pool min_connections").WithMetadata("min_connections", c.MinConnections))
	}

	if c.MaxConnections <= 0 || c.MaxConnections < c.MinConnections {
		eg.Add(ewrap.New("invalid pool max_connections").WithMetadata("max_connections", c.MaxConnections))
	}

	if c.InitialConnections < c.MinConnections || c.InitialConnections > c.MaxConnections {
		eg.Add(ewrap.New("invalid pool initial_connections").WithMetadata("initial_connections", c.InitialConnections))
	}

	if c.AcquireTimeout <= 0 {
		eg.Add(ewrap.New("invalid pool acquire_timeout").WithMetadata("acquire_timeout", c.AcquireTimeout))
	}

	if c.UtilizationHigh <= 0 || c.UtilizationHigh > 1 {
		eg.Add(ewrap.New("invalid pool utilization_high").WithMetadata("utilization_high", c.UtilizationHigh))
	}

	if c.UtilizationLow < 0 || c.UtilizationLow >= c.UtilizationHigh {
		eg.Add(ewrap.New("invalid pool utilization_low").WithMetadata("utilization_low", c.UtilizationLow))
	}

	if c.MaxScaleStep <= 0 {
		eg.Add(ewrap.New("invalid pool max_scale_step").WithMetadata("max_scale_step", c.MaxScaleStep))
	}
}
