package sim

import (
	"fmt"
	"math"
)

// SchedulerConfig groups the chunked-prefill batch composition parameters.
type SchedulerConfig struct {
	ChunkSize               int64   // max prefill tokens per batch (C)
	EnableRollingPrefills   bool    // allow packing further prefill chunks into a batch
	PrefillFittingTolerance float64 // fraction of C that must remain free for packing, in [0,1)
	MaxBatchSize            int     // max requests per batch
	MaxBlocksPerSequence    int64   // blocks reserved per admitted request
}

// Validate checks the scheduler parameters.
func (c SchedulerConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be > 0, got %d", c.ChunkSize)
	}
	if c.PrefillFittingTolerance < 0 || c.PrefillFittingTolerance >= 1 || math.IsNaN(c.PrefillFittingTolerance) {
		return fmt.Errorf("prefill fitting tolerance must be in [0,1), got %v", c.PrefillFittingTolerance)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be > 0, got %d", c.MaxBatchSize)
	}
	if c.MaxBlocksPerSequence <= 0 {
		return fmt.Errorf("max blocks per sequence must be > 0, got %d", c.MaxBlocksPerSequence)
	}
	return nil
}

// ReplicaConfig groups replica count and per-replica memory capacity.
type ReplicaConfig struct {
	NumReplicas int   // number of replicas (must be > 0)
	NumBlocks   int64 // memory blocks per replica (must be > 0)
}

// Validate checks the replica parameters.
func (c ReplicaConfig) Validate() error {
	if c.NumReplicas <= 0 {
		return fmt.Errorf("num replicas must be > 0, got %d", c.NumReplicas)
	}
	if c.NumBlocks <= 0 {
		return fmt.Errorf("num blocks must be > 0, got %d", c.NumBlocks)
	}
	return nil
}

// LatencyCoeffs groups regression coefficients for the latency model.
type LatencyCoeffs struct {
	BetaCoeffs []float64 // batch time: beta0 + beta1*prefillTokens + beta2*decodeTokens (≥3 elements required)
}

// RouterConfig selects the replica routing policy.
type RouterConfig struct {
	Policy string // "round-robin" (default), "random", "least-outstanding"
}

// SimConfig groups everything needed to build a Simulator.
type SimConfig struct {
	Horizon   int64 // stop before dispatching events later than this tick
	MaxEvents int64 // stop after this many dispatched events (0 = unbounded)
	Seed      int64

	Scheduler SchedulerConfig
	Replica   ReplicaConfig
	Latency   LatencyCoeffs
	Router    RouterConfig
}

// DefaultSimConfig returns a single-replica configuration with the Sarathi
// defaults: 512-token chunks, no rolling prefills.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Horizon: math.MaxInt64,
		Seed:    42,
		Scheduler: SchedulerConfig{
			ChunkSize:               512,
			EnableRollingPrefills:   false,
			PrefillFittingTolerance: 0.0,
			MaxBatchSize:            128,
			MaxBlocksPerSequence:    256,
		},
		Replica: ReplicaConfig{
			NumReplicas: 1,
			NumBlocks:   32768,
		},
		Latency: LatencyCoeffs{
			BetaCoeffs: []float64{6000, 30, 40},
		},
		Router: RouterConfig{Policy: "round-robin"},
	}
}

// Validate checks every sub-config.
func (c SimConfig) Validate() error {
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be > 0, got %d", c.Horizon)
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("max events must be >= 0, got %d", c.MaxEvents)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Replica.Validate(); err != nil {
		return fmt.Errorf("replica: %w", err)
	}
	if c.Scheduler.MaxBlocksPerSequence > c.Replica.NumBlocks {
		return fmt.Errorf("max blocks per sequence (%d) exceeds replica capacity (%d blocks)",
			c.Scheduler.MaxBlocksPerSequence, c.Replica.NumBlocks)
	}
	if !IsValidRouterPolicy(c.Router.Policy) {
		return fmt.Errorf("unknown router policy %q; valid: %v", c.Router.Policy, ValidRouterPolicies())
	}
	return nil
}
