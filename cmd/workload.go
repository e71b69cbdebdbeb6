package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/replica-sim/sim"
	"github.com/inference-sim/replica-sim/sim/workload"
)

// resolveWorkload picks the request source, most specific first: a replay
// trace, a workload spec file, the config file's workload section, and
// finally a single Gaussian client built from the rate and token flags.
// An explicit --seed overrides the spec's own seed.
func resolveWorkload(cmd *cobra.Command, fileCfg *FileConfig, simSeed int64) ([]*sim.Request, error) {
	if workloadTracePath != "" {
		logrus.Infof("Replaying workload trace %s", workloadTracePath)
		return workload.LoadReplayTrace(workloadTracePath)
	}

	var spec *workload.WorkloadSpec
	switch {
	case workloadSpecPath != "":
		var err error
		if spec, err = workload.LoadWorkloadSpec(workloadSpecPath); err != nil {
			return nil, err
		}
	case fileCfg != nil && fileCfg.Workload != nil:
		spec = fileCfg.Workload
	default:
		spec = flagWorkloadSpec(simSeed)
	}
	if cmd.Flags().Changed("seed") {
		spec.Seed = simSeed
	}
	return workload.GenerateRequests(spec)
}

// flagWorkloadSpec builds a single-client Poisson workload from the CLI flags.
func flagWorkloadSpec(seed int64) *workload.WorkloadSpec {
	return &workload.WorkloadSpec{
		Seed:          seed,
		AggregateRate: rate,
		NumRequests:   numRequests,
		Clients: []workload.ClientSpec{{
			ID:           "cli",
			RateFraction: 1.0,
			Arrival:      workload.ArrivalSpec{Process: "poisson"},
			PrefillDist: workload.DistSpec{Type: "gaussian", Params: map[string]float64{
				"mean": float64(prefillTokensMean), "std_dev": float64(prefillTokensStd),
				"min": float64(prefillTokensMin), "max": float64(prefillTokensMax),
			}},
			DecodeDist: workload.DistSpec{Type: "gaussian", Params: map[string]float64{
				"mean": float64(decodeTokensMean), "std_dev": float64(decodeTokensStd),
				"min": float64(decodeTokensMin), "max": float64(decodeTokensMax),
			}},
		}},
	}
}

// cloneRequests returns fresh, unscheduled copies so independent runs never
// share request state.
func cloneRequests(requests []*sim.Request) []*sim.Request {
	clones := make([]*sim.Request, len(requests))
	for i, req := range requests {
		clones[i] = sim.NewRequest(req.ID, req.ArrivalTime, req.NumPrefillTokens, req.NumDecodeTokens)
	}
	return clones
}

func describeWorkload(requests []*sim.Request) string {
	if len(requests) == 0 {
		return "empty workload"
	}
	var prefill, decode int64
	for _, req := range requests {
		prefill += req.NumPrefillTokens
		decode += req.NumDecodeTokens
	}
	n := int64(len(requests))
	return fmt.Sprintf("%d requests over %d ticks, mean prefill %d, mean decode %d",
		n, requests[n-1].ArrivalTime, prefill/n, decode/n)
}
