package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFlagCommand returns a command with the simulation flags registered,
// which also resets the package flag variables to their defaults.
func newFlagCommand(t *testing.T, args map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addSimFlags(cmd)
	for name, value := range args {
		require.NoError(t, cmd.Flags().Set(name, value), name)
	}
	return cmd
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const layeredConfig = `
seed: 11
horizon: 5000000
scheduler:
  chunk_size: 256
  enable_rolling_prefills: true
  prefill_fitting_tolerance: 0.1
replicas:
  count: 3
  num_blocks: 2048
beta_coeffs: [1000, 5, 7]
router: least-outstanding
`

func TestResolveSimConfig_DefaultsOnly(t *testing.T) {
	cfg, fileCfg, err := resolveSimConfig(newFlagCommand(t, nil))
	require.NoError(t, err)
	assert.Nil(t, fileCfg)
	assert.Equal(t, int64(512), cfg.Scheduler.ChunkSize)
	assert.Equal(t, "round-robin", cfg.Router.Policy)
}

func TestResolveSimConfig_FileThenFlags(t *testing.T) {
	// GIVEN a config file and an explicit chunk-size flag
	path := writeFile(t, "config.yaml", layeredConfig)
	cmd := newFlagCommand(t, map[string]string{"config": path, "chunk-size": "128"})

	// WHEN the config is resolved
	cfg, fileCfg, err := resolveSimConfig(cmd)
	require.NoError(t, err)

	// THEN the flag beats the file and the file beats the defaults
	require.NotNil(t, fileCfg)
	assert.Equal(t, int64(128), cfg.Scheduler.ChunkSize)
	assert.True(t, cfg.Scheduler.EnableRollingPrefills)
	assert.Equal(t, 0.1, cfg.Scheduler.PrefillFittingTolerance)
	assert.Equal(t, 3, cfg.Replica.NumReplicas)
	assert.Equal(t, int64(2048), cfg.Replica.NumBlocks)
	assert.Equal(t, []float64{1000, 5, 7}, cfg.Latency.BetaCoeffs)
	assert.Equal(t, "least-outstanding", cfg.Router.Policy)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, int64(5000000), cfg.Horizon)
	assert.Equal(t, 128, cfg.Scheduler.MaxBatchSize, "untouched values keep defaults")
}

func TestResolveSimConfig_UnknownFileKey_Rejected(t *testing.T) {
	path := writeFile(t, "config.yaml", "scheduler:\n  chunk_sise: 64\n")
	_, _, err := resolveSimConfig(newFlagCommand(t, map[string]string{"config": path}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_sise")
}

func TestResolveSimConfig_InvalidResult_Rejected(t *testing.T) {
	_, _, err := resolveSimConfig(newFlagCommand(t, map[string]string{"prefill-fitting-tolerance": "1.5"}))
	assert.ErrorContains(t, err, "tolerance")

	_, _, err = resolveSimConfig(newFlagCommand(t, map[string]string{"router": "nearest"}))
	assert.ErrorContains(t, err, "unknown router policy")
}

func TestResolveWorkload_Sources(t *testing.T) {
	// flags only
	cmd := newFlagCommand(t, map[string]string{"num-requests": "12", "rate": "50"})
	reqs, err := resolveWorkload(cmd, nil, 42)
	require.NoError(t, err)
	assert.Len(t, reqs, 12)

	// workload section of the config file
	fileCfg, err := loadFileConfig(writeFile(t, "config.yaml", `
workload:
  aggregate_rate: 10
  num_requests: 5
  clients:
    - id: c
      rate_fraction: 1
      arrival: {process: constant}
      prefill_distribution: {type: constant, params: {value: 64}}
      decode_distribution: {type: constant, params: {value: 4}}
`))
	require.NoError(t, err)
	reqs, err = resolveWorkload(newFlagCommand(t, nil), fileCfg, 42)
	require.NoError(t, err)
	require.Len(t, reqs, 5)
	assert.Equal(t, int64(100_000), reqs[0].ArrivalTime)
	assert.Equal(t, int64(64), reqs[0].NumPrefillTokens)

	// replay trace wins over everything
	tracePath := writeFile(t, "trace.csv", "arrival_time_us,num_prefill_tokens,num_decode_tokens\n0,10,2\n")
	reqs, err = resolveWorkload(newFlagCommand(t, map[string]string{"workload-trace": tracePath}), fileCfg, 42)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(10), reqs[0].NumPrefillTokens)
}

func TestResolveWorkload_ExplicitSeedOverridesSpec(t *testing.T) {
	specPath := writeFile(t, "workload.yaml", `
seed: 1
aggregate_rate: 10
num_requests: 20
clients:
  - id: c
    rate_fraction: 1
    arrival: {process: poisson}
    prefill_distribution: {type: exponential, params: {mean: 100}}
    decode_distribution: {type: exponential, params: {mean: 10}}
`)
	fromSpec, err := resolveWorkload(newFlagCommand(t, map[string]string{"workload-spec": specPath}), nil, 42)
	require.NoError(t, err)
	again, err := resolveWorkload(newFlagCommand(t, map[string]string{"workload-spec": specPath}), nil, 42)
	require.NoError(t, err)
	assert.Equal(t, fromSpec, again)

	overridden, err := resolveWorkload(newFlagCommand(t, map[string]string{"workload-spec": specPath, "seed": "42"}), nil, 42)
	require.NoError(t, err)
	assert.NotEqual(t, fromSpec, overridden)
}
