package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimConfig_IsValid(t *testing.T) {
	cfg := DefaultSimConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(512), cfg.Scheduler.ChunkSize)
	assert.False(t, cfg.Scheduler.EnableRollingPrefills)
	assert.Equal(t, 1, cfg.Replica.NumReplicas)
}

func TestSimConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
		errSub string
	}{
		{"zero horizon", func(c *SimConfig) { c.Horizon = 0 }, "horizon"},
		{"negative max events", func(c *SimConfig) { c.MaxEvents = -1 }, "max events"},
		{"zero chunk", func(c *SimConfig) { c.Scheduler.ChunkSize = 0 }, "chunk size"},
		{"tolerance one", func(c *SimConfig) { c.Scheduler.PrefillFittingTolerance = 1 }, "tolerance"},
		{"negative tolerance", func(c *SimConfig) { c.Scheduler.PrefillFittingTolerance = -0.1 }, "tolerance"},
		{"zero batch size", func(c *SimConfig) { c.Scheduler.MaxBatchSize = 0 }, "max batch size"},
		{"zero blocks per sequence", func(c *SimConfig) { c.Scheduler.MaxBlocksPerSequence = 0 }, "max blocks per sequence"},
		{"no replicas", func(c *SimConfig) { c.Replica.NumReplicas = 0 }, "num replicas"},
		{"no blocks", func(c *SimConfig) { c.Replica.NumBlocks = 0 }, "num blocks"},
		{"sequence larger than replica", func(c *SimConfig) {
			c.Replica.NumBlocks = 10
			c.Scheduler.MaxBlocksPerSequence = 11
		}, "exceeds replica capacity"},
		{"unknown router", func(c *SimConfig) { c.Router.Policy = "fastest" }, "unknown router policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestSimConfig_Validate_EmptyRouterDefaults(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Router.Policy = ""
	assert.NoError(t, cfg.Validate())
}
