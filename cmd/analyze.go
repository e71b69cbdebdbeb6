package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/replica-sim/sim"
	"github.com/inference-sim/replica-sim/sim/analytic"
	"github.com/inference-sim/replica-sim/sim/workload"
)

var (
	analyzeMaxQueueSize int  // waiting room of the queueing model
	analyzeSimulate     bool // also simulate the same offered load
)

// analyzeReport is the JSON output of the analyze command.
type analyzeReport struct {
	Analytic  *analytic.Result   `json:"analytic"`
	Simulated *sim.MetricsOutput `json:"simulated,omitempty"`
}

// analyzeCmd evaluates the analytic queueing baseline for one replica
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Estimate steady-state latency and throughput of one replica with a queueing model",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, err := resolveSimConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		report, err := analyze(cfg, rate, analytic.RequestSize{
			AvgPrefillTokens: float64(prefillTokensMean),
			AvgDecodeTokens:  float64(decodeTokensMean),
		}, analyzeMaxQueueSize, analyzeSimulate)
		if err != nil {
			logrus.Fatalf("Analysis failed: %v", err)
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			logrus.Fatalf("Error marshalling analysis: %v", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	},
}

// analyze solves the baseline at requestRate and optionally simulates a
// single replica under a Poisson workload of constant-size requests.
func analyze(cfg sim.SimConfig, requestRate float64, size analytic.RequestSize, maxQueueSize int, simulate bool) (*analyzeReport, error) {
	baseline, err := analytic.NewBaseline(analytic.Config{
		Latency:      cfg.Latency,
		ChunkSize:    cfg.Scheduler.ChunkSize,
		MaxBatchSize: cfg.Scheduler.MaxBatchSize,
		MaxQueueSize: maxQueueSize,
	}, size)
	if err != nil {
		return nil, err
	}
	result, err := baseline.Analyze(requestRate)
	if err != nil {
		return nil, err
	}
	logrus.Infof("analytic baseline: %s", result)
	report := &analyzeReport{Analytic: result}
	if !simulate {
		return report, nil
	}

	spec := &workload.WorkloadSpec{
		Seed:          cfg.Seed,
		AggregateRate: requestRate,
		NumRequests:   numRequests,
		Clients: []workload.ClientSpec{{
			ID:           "analyze",
			RateFraction: 1.0,
			Arrival:      workload.ArrivalSpec{Process: "poisson"},
			PrefillDist:  workload.DistSpec{Type: "constant", Params: map[string]float64{"value": size.AvgPrefillTokens}},
			DecodeDist:   workload.DistSpec{Type: "constant", Params: map[string]float64{"value": size.AvgDecodeTokens}},
		}},
	}
	requests, err := workload.GenerateRequests(spec)
	if err != nil {
		return nil, err
	}
	cfg.Replica.NumReplicas = 1
	metrics := sim.NewMetrics()
	if err := runSimulation(cfg, requests, metrics, nil); err != nil {
		return nil, err
	}
	summary := metrics.Summarize("analyze")
	report.Simulated = &summary
	return report, nil
}
