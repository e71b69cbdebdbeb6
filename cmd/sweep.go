package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	sim "github.com/inference-sim/replica-sim/sim"
)

var (
	sweepChunkSizes  []int64 // chunk sizes to compare
	sweepParallelism int     // max concurrent runs
)

// sweepResult pairs one run's chunk size with its summary.
type sweepResult struct {
	ChunkSize int64
	Summary   sim.MetricsOutput
}

// sweepCmd runs one independent simulation per chunk size over the same workload
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Compare chunk sizes over the same workload with parallel independent runs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, fileCfg, err := resolveSimConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		requests, err := resolveWorkload(cmd, fileCfg, cfg.Seed)
		if err != nil {
			logrus.Fatalf("Unable to build workload: %v", err)
		}
		logrus.Infof("Sweeping chunk sizes %v over %s", sweepChunkSizes, describeWorkload(requests))

		results, err := runSweep(cfg, requests, sweepChunkSizes, sweepParallelism)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		for _, r := range results {
			fmt.Fprintln(os.Stdout, formatSweepLine(r))
		}
	},
}

// runSweep simulates every chunk size in its own Simulator. Runs share no
// state: each gets a private copy of the workload. Results are ordered by
// chunk size.
func runSweep(base sim.SimConfig, requests []*sim.Request, chunkSizes []int64, parallelism int) ([]sweepResult, error) {
	sizes := slices.Clone(chunkSizes)
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)

	results := make([]sweepResult, len(sizes))
	var g errgroup.Group
	g.SetLimit(max(parallelism, 1))
	for i, size := range sizes {
		g.Go(func() error {
			cfg := base
			cfg.Scheduler.ChunkSize = size
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("chunk size %d: %w", size, err)
			}
			metrics := sim.NewMetrics()
			if err := runSimulation(cfg, cloneRequests(requests), metrics, nil); err != nil {
				return fmt.Errorf("chunk size %d: %w", size, err)
			}
			results[i] = sweepResult{ChunkSize: size, Summary: metrics.Summarize(uuid.NewString())}
			logrus.Debugf("chunk size %d finished: %d requests", size, metrics.CompletedRequests)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func formatSweepLine(r sweepResult) string {
	s := r.Summary
	return fmt.Sprintf("chunk=%-6d completed=%-6d batches=%-7d ttft_p50=%.2fms ttft_p99=%.2fms e2e_p50=%.2fms e2e_p99=%.2fms tokens/s=%.1f",
		r.ChunkSize, s.CompletedRequests, s.NumBatches, s.TTFTMs.P50, s.TTFTMs.P99, s.E2EMs.P50, s.E2EMs.P99, s.TokensPerSec)
}
