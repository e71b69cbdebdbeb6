package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/replica-sim/sim"
	"github.com/inference-sim/replica-sim/sim/workload"
)

// FileConfig is the --config YAML structure. Zero values leave the built-in
// defaults in place.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type FileConfig struct {
	Seed      *int64 `yaml:"seed,omitempty"`
	Horizon   int64  `yaml:"horizon,omitempty"`
	MaxEvents int64  `yaml:"max_events,omitempty"`

	Scheduler SchedulerFileConfig `yaml:"scheduler"`
	Replicas  ReplicaFileConfig   `yaml:"replicas"`

	BetaCoeffs []float64 `yaml:"beta_coeffs,omitempty"`
	Router     string    `yaml:"router,omitempty"`

	Workload *workload.WorkloadSpec `yaml:"workload,omitempty"`
}

// SchedulerFileConfig mirrors sim.SchedulerConfig.
type SchedulerFileConfig struct {
	ChunkSize               int64    `yaml:"chunk_size,omitempty"`
	EnableRollingPrefills   *bool    `yaml:"enable_rolling_prefills,omitempty"`
	PrefillFittingTolerance *float64 `yaml:"prefill_fitting_tolerance,omitempty"`
	MaxBatchSize            int      `yaml:"max_batch_size,omitempty"`
	MaxBlocksPerSequence    int64    `yaml:"max_blocks_per_sequence,omitempty"`
}

// ReplicaFileConfig mirrors sim.ReplicaConfig.
type ReplicaFileConfig struct {
	Count     int   `yaml:"count,omitempty"`
	NumBlocks int64 `yaml:"num_blocks,omitempty"`
}

// loadFileConfig parses a config file with strict field checking.
func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var cfg FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyTo overlays the file values onto cfg.
func (fc *FileConfig) applyTo(cfg *sim.SimConfig) {
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.Horizon > 0 {
		cfg.Horizon = fc.Horizon
	}
	if fc.MaxEvents > 0 {
		cfg.MaxEvents = fc.MaxEvents
	}
	if fc.Scheduler.ChunkSize > 0 {
		cfg.Scheduler.ChunkSize = fc.Scheduler.ChunkSize
	}
	if fc.Scheduler.EnableRollingPrefills != nil {
		cfg.Scheduler.EnableRollingPrefills = *fc.Scheduler.EnableRollingPrefills
	}
	if fc.Scheduler.PrefillFittingTolerance != nil {
		cfg.Scheduler.PrefillFittingTolerance = *fc.Scheduler.PrefillFittingTolerance
	}
	if fc.Scheduler.MaxBatchSize > 0 {
		cfg.Scheduler.MaxBatchSize = fc.Scheduler.MaxBatchSize
	}
	if fc.Scheduler.MaxBlocksPerSequence > 0 {
		cfg.Scheduler.MaxBlocksPerSequence = fc.Scheduler.MaxBlocksPerSequence
	}
	if fc.Replicas.Count > 0 {
		cfg.Replica.NumReplicas = fc.Replicas.Count
	}
	if fc.Replicas.NumBlocks > 0 {
		cfg.Replica.NumBlocks = fc.Replicas.NumBlocks
	}
	if len(fc.BetaCoeffs) > 0 {
		cfg.Latency.BetaCoeffs = append([]float64(nil), fc.BetaCoeffs...)
	}
	if fc.Router != "" {
		cfg.Router.Policy = fc.Router
	}
}

// resolveSimConfig layers defaults, the --config file and explicitly set
// flags, in that order, and validates the result.
func resolveSimConfig(cmd *cobra.Command) (sim.SimConfig, *FileConfig, error) {
	cfg := sim.DefaultSimConfig()
	var fileCfg *FileConfig
	if configPath != "" {
		var err error
		if fileCfg, err = loadFileConfig(configPath); err != nil {
			return cfg, nil, err
		}
		fileCfg.applyTo(&cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = simulationHorizon
	}
	if flags.Changed("max-events") {
		cfg.MaxEvents = maxEvents
	}
	if flags.Changed("chunk-size") {
		cfg.Scheduler.ChunkSize = chunkSize
	}
	if flags.Changed("enable-rolling-prefills") {
		cfg.Scheduler.EnableRollingPrefills = enableRollingPrefills
	}
	if flags.Changed("prefill-fitting-tolerance") {
		cfg.Scheduler.PrefillFittingTolerance = prefillFittingTolerance
	}
	if flags.Changed("max-batch-size") {
		cfg.Scheduler.MaxBatchSize = maxBatchSize
	}
	if flags.Changed("max-blocks-per-sequence") {
		cfg.Scheduler.MaxBlocksPerSequence = maxBlocksPerSequence
	}
	if flags.Changed("num-replicas") {
		cfg.Replica.NumReplicas = numReplicas
	}
	if flags.Changed("num-blocks") {
		cfg.Replica.NumBlocks = numBlocks
	}
	if flags.Changed("beta-coeffs") {
		cfg.Latency.BetaCoeffs = append([]float64(nil), betaCoeffs...)
	}
	if flags.Changed("router") {
		cfg.Router.Policy = routerPolicy
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, fileCfg, nil
}
