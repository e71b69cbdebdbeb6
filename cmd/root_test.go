package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/replica-sim/sim"
	"github.com/inference-sim/replica-sim/sim/trace"
)

func smallConfig() sim.SimConfig {
	cfg := sim.DefaultSimConfig()
	cfg.Scheduler.ChunkSize = 64
	cfg.Scheduler.MaxBlocksPerSequence = 16
	cfg.Replica = sim.ReplicaConfig{NumReplicas: 2, NumBlocks: 256}
	return cfg
}

func smallWorkload(n int) []*sim.Request {
	reqs := make([]*sim.Request, n)
	for i := range reqs {
		reqs[i] = sim.NewRequest("r"+string(rune('A'+i)), int64(i)*2000, int64(50+i*37), int64(3+i%4))
	}
	return reqs
}

func TestSaveResults_MetricsPrintedToStdout(t *testing.T) {
	// GIVEN a completed run
	metrics := sim.NewMetrics()
	require.NoError(t, runSimulation(smallConfig(), smallWorkload(6), metrics, nil))

	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// WHEN SaveResults is called
	err := metrics.SaveResults(os.Stdout, "test", time.Now(), "")

	// Restore stdout and read captured output
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	// THEN the metrics JSON appears on stdout
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Simulation Metrics")
	assert.Contains(t, buf.String(), `"completed_requests": 6`)
}

func TestRunSimulation_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Replica.NumReplicas = 0
	assert.Error(t, runSimulation(cfg, nil, sim.NewMetrics(), nil))
}

func TestWriteTrace_YAMLWithSummary(t *testing.T) {
	// GIVEN a traced run
	st := trace.NewSimulationTrace("traced", trace.TraceLevelEvents)
	require.NoError(t, runSimulation(smallConfig(), smallWorkload(4), sim.NewMetrics(), st))

	// WHEN the trace is written
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, writeTrace(path, st))

	// THEN it reads back with a summary consistent with the events
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got traceFile
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.NotNil(t, got.Summary)
	require.NotNil(t, got.Trace)
	assert.Equal(t, len(st.Events), got.Summary.TotalEvents)
	assert.Equal(t, 4, got.Summary.EventsByKind["RequestEnd"])
	assert.Equal(t, st.Events, got.Trace.Events)
}

func TestCloneRequests_FreshState(t *testing.T) {
	orig := smallWorkload(3)
	require.NoError(t, runSimulation(smallConfig(), orig, sim.NewMetrics(), nil))
	require.True(t, orig[0].Completed())

	clones := cloneRequests(orig)
	for i, c := range clones {
		assert.NotSame(t, orig[i], c)
		assert.Equal(t, orig[i].ID, c.ID)
		assert.Equal(t, orig[i].NumPrefillTokens, c.NumPrefillTokens)
		assert.False(t, c.Completed())
		assert.Equal(t, sim.StateQueued, c.State)
	}
}

func TestDescribeWorkload(t *testing.T) {
	assert.Equal(t, "empty workload", describeWorkload(nil))
	assert.Contains(t, describeWorkload(smallWorkload(2)), "2 requests")
}
