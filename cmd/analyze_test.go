package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/inference-sim/replica-sim/sim"
	"github.com/inference-sim/replica-sim/sim/analytic"
)

func TestAnalyze_AnalyticOnly(t *testing.T) {
	cfg := sim.DefaultSimConfig()
	cfg.Scheduler.MaxBatchSize = 16
	report, err := analyze(cfg, 1.0, analytic.RequestSize{AvgPrefillTokens: 512, AvgDecodeTokens: 32}, 100, false)
	require.NoError(t, err)
	require.NotNil(t, report.Analytic)
	assert.Nil(t, report.Simulated)
	assert.InEpsilon(t, 1.0, report.Analytic.Throughput, 0.02)
}

func TestAnalyze_WithSimulation(t *testing.T) {
	// GIVEN a light load and a small simulated workload
	newFlagCommand(t, map[string]string{"num-requests": "30"})
	cfg := sim.DefaultSimConfig()
	cfg.Scheduler.MaxBatchSize = 16
	cfg.Replica.NumReplicas = 4

	// WHEN analyzed with simulation
	report, err := analyze(cfg, 2.0, analytic.RequestSize{AvgPrefillTokens: 256, AvgDecodeTokens: 16}, 100, true)
	require.NoError(t, err)

	// THEN the simulated side ran a single replica to completion
	require.NotNil(t, report.Simulated)
	assert.Equal(t, 30, report.Simulated.CompletedRequests)
	assert.Len(t, report.Simulated.PeakMemoryUsagePercent, 1)
}

func TestAnalyze_RateAboveCapacity(t *testing.T) {
	_, err := analyze(sim.DefaultSimConfig(), 1e6, analytic.RequestSize{AvgPrefillTokens: 512, AvgDecodeTokens: 32}, 100, false)
	assert.Error(t, err)
}
