package pool

import (
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/dbplane/internal/config"
)

// sizer tracks a rolling utilization window and derives the pool's
// target connection count per the configured strategy.
type sizer struct {
	cfg *config.PoolConfig

	target int32

	mu      sync.Mutex
	samples []float64
}

func newSizer(cfg *config.PoolConfig, initial int32) *sizer {
	return &sizer{cfg: cfg, target: initial}
}

func (s *sizer) current() int32 { return atomic.LoadInt32(&s.target) }

func (s *sizer) setCurrent(v int32) { atomic.StoreInt32(&s.target, v) }

// sample folds a new utilization reading into the rolling window and
// returns the recommended target size for the configured strategy.
func (s *sizer) sample(utilization float64) int32 {
	switch s.cfg.Strategy {
	case config.PoolSizingFixed:
		return s.cfg.MaxConnections
	case config.PoolSizingDynamic:
		return s.dynamicTarget(utilization)
	case config.PoolSizingAdaptive:
		return s.adaptiveTarget(utilization)
	default:
		return s.current()
	}
}

// dynamicTarget reacts immediately to the instantaneous utilization
// reading, scaling by at most MaxScaleStep per tick.
func (s *sizer) dynamicTarget(utilization float64) int32 {
	cur := s.current()

	switch {
	case utilization >= s.cfg.UtilizationHigh:
		return clamp(cur+s.cfg.MaxScaleStep, s.cfg.MinConnections, s.cfg.MaxConnections)
	case utilization <= s.cfg.UtilizationLow:
		return clamp(cur-s.cfg.MaxScaleStep, s.cfg.MinConnections, s.cfg.MaxConnections)
	default:
		return cur
	}
}

// adaptiveTarget smooths the decision over a rolling window of samples
// before scaling, avoiding flapping on transient spikes.
func (s *sizer) adaptiveTarget(utilization float64) int32 {
	s.mu.Lock()
	s.samples = append(s.samples, utilization)
	if len(s.samples) > s.cfg.SampleWindow {
		s.samples = s.samples[len(s.samples)-s.cfg.SampleWindow:]
	}

	sum := 0.0
	for _, v := range s.samples {
		sum += v
	}

	avg := sum / float64(len(s.samples))
	enough := len(s.samples) >= minSamplesForAdapt(s.cfg.SampleWindow)
	s.mu.Unlock()

	if !enough {
		return s.current()
	}

	cur := s.current()

	switch {
	case avg >= s.cfg.UtilizationHigh:
		return clamp(cur+s.cfg.MaxScaleStep, s.cfg.MinConnections, s.cfg.MaxConnections)
	case avg <= s.cfg.UtilizationLow:
		return clamp(cur-s.cfg.MaxScaleStep, s.cfg.MinConnections, s.cfg.MaxConnections)
	default:
		return cur
	}
}

func minSamplesForAdapt(window int) int {
	quarter := window / 4
	if quarter < 1 {
		return 1
	}

	return quarter
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
