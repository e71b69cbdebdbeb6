package cmd

import (
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/replica-sim/sim"
	"github.com/inference-sim/replica-sim/sim/promexport"
	"github.com/inference-sim/replica-sim/sim/trace"
)

var (
	// CLI flags for the simulation run
	configPath        string // YAML file with simulator and workload settings
	seed              int64  // Seed for workload generation and random routing
	simulationHorizon int64  // Total simulation time (in ticks)
	maxEvents         int64  // Event budget (0 = unbounded)
	logLevel          string // Log verbosity level

	// CLI flags for the replica scheduler
	chunkSize               int64     // Max prefill tokens per batch
	enableRollingPrefills   bool      // Pack further prefill chunks into a batch
	prefillFittingTolerance float64   // Fraction of the chunk that must stay free for packing
	maxBatchSize            int       // Max requests per batch
	maxBlocksPerSequence    int64     // Blocks reserved per admitted request
	numReplicas             int       // Number of replicas
	numBlocks               int64     // Memory blocks per replica
	betaCoeffs              []float64 // Batch time regression coefficients
	routerPolicy            string    // Replica routing policy

	// CLI flags for workload generation
	workloadSpecPath  string  // YAML workload spec
	workloadTracePath string  // CSV replay trace
	rate              float64 // Requests arrival per second
	numRequests       int64   // Number of requests
	prefillTokensMean int     // Average prefill token count
	prefillTokensStd  int     // Stdev prefill token count
	prefillTokensMin  int     // Min prefill token count
	prefillTokensMax  int     // Max prefill token count
	decodeTokensMean  int     // Average decode token count
	decodeTokensStd   int     // Stdev decode token count
	decodeTokensMin   int     // Min decode token count
	decodeTokensMax   int     // Max decode token count

	// CLI flags for outputs
	resultsPath  string // JSON metrics file
	traceOutput  string // YAML event trace file
	promTextfile string // Prometheus textfile
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "replica-sim",
	Short: "Discrete-event simulator for chunked-prefill LLM inference replicas",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

// runCmd executes one simulation using parameters from the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the replica simulation",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, fileCfg, err := resolveSimConfig(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		requests, err := resolveWorkload(cmd, fileCfg, cfg.Seed)
		if err != nil {
			logrus.Fatalf("Unable to build workload: %v", err)
		}

		runID := uuid.NewString()
		logrus.Infof("Starting run %s: %s, %d replicas, chunk=%d, rolling=%v, router=%s",
			runID, describeWorkload(requests), cfg.Replica.NumReplicas, cfg.Scheduler.ChunkSize,
			cfg.Scheduler.EnableRollingPrefills, cfg.Router.Policy)
		startTime := time.Now()

		metrics := sim.NewMetrics()
		sinks := sim.MultiSink{metrics}
		var exporter *promexport.Exporter
		if promTextfile != "" {
			if exporter, err = promexport.New(runID); err != nil {
				logrus.Fatalf("Unable to create prometheus exporter: %v", err)
			}
			sinks = append(sinks, exporter)
		}
		var simTrace *trace.SimulationTrace
		if traceOutput != "" {
			simTrace = trace.NewSimulationTrace(runID, trace.TraceLevelEvents)
		}

		if err := runSimulation(cfg, requests, sinks, simTrace); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		if err := metrics.SaveResults(os.Stdout, runID, startTime, resultsPath); err != nil {
			logrus.Fatalf("Unable to save results: %v", err)
		}
		if simTrace != nil {
			if err := writeTrace(traceOutput, simTrace); err != nil {
				logrus.Fatalf("Unable to write trace: %v", err)
			}
		}
		if exporter != nil {
			if err := exporter.WriteTextfile(promTextfile); err != nil {
				logrus.Fatalf("Unable to write prometheus metrics: %v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// runSimulation builds a simulator for cfg, injects requests and runs it to completion.
func runSimulation(cfg sim.SimConfig, requests []*sim.Request, metrics sim.MetricsSink, st *trace.SimulationTrace) error {
	s, err := sim.NewSimulator(cfg, metrics)
	if err != nil {
		return err
	}
	s.SetTrace(st)
	for _, req := range requests {
		s.InjectArrival(req)
	}
	return s.Run()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addSimFlags registers the scheduler, replica and workload flags on cmd.
func addSimFlags(cmd *cobra.Command) {
	defaults := sim.DefaultSimConfig()

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (explicit flags override file values)")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for workload generation and random routing")
	cmd.Flags().Int64Var(&simulationHorizon, "horizon", math.MaxInt64, "Total simulation horizon (in ticks)")
	cmd.Flags().Int64Var(&maxEvents, "max-events", 0, "Stop after this many events (0 = unbounded)")

	// Replica scheduler configs
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", defaults.Scheduler.ChunkSize, "Max prefill tokens per batch")
	cmd.Flags().BoolVar(&enableRollingPrefills, "enable-rolling-prefills", false, "Pack further prefill chunks into a batch")
	cmd.Flags().Float64Var(&prefillFittingTolerance, "prefill-fitting-tolerance", 0.0, "Fraction of the chunk that must stay free to pack another prefill, in [0,1)")
	cmd.Flags().IntVar(&maxBatchSize, "max-batch-size", defaults.Scheduler.MaxBatchSize, "Max requests per batch")
	cmd.Flags().Int64Var(&maxBlocksPerSequence, "max-blocks-per-sequence", defaults.Scheduler.MaxBlocksPerSequence, "Memory blocks reserved per admitted request")
	cmd.Flags().IntVar(&numReplicas, "num-replicas", defaults.Replica.NumReplicas, "Number of replicas")
	cmd.Flags().Int64Var(&numBlocks, "num-blocks", defaults.Replica.NumBlocks, "Memory blocks per replica")
	cmd.Flags().Float64SliceVar(&betaCoeffs, "beta-coeffs", defaults.Latency.BetaCoeffs, "Comma-separated beta coefficients (beta0,beta1,beta2) in ticks")
	cmd.Flags().StringVar(&routerPolicy, "router", defaults.Router.Policy, "Replica routing policy (round-robin, random, least-outstanding)")

	// Workload generation configs
	cmd.Flags().StringVar(&workloadSpecPath, "workload-spec", "", "YAML workload spec (overrides the rate/token flags)")
	cmd.Flags().StringVar(&workloadTracePath, "workload-trace", "", "CSV replay trace (arrival_time_us,num_prefill_tokens,num_decode_tokens)")
	cmd.Flags().Float64Var(&rate, "rate", 1.0, "Requests arrival per second")
	cmd.Flags().Int64Var(&numRequests, "num-requests", 100, "Number of requests")
	cmd.Flags().IntVar(&prefillTokensMean, "prefill-tokens", 512, "Average prefill token count")
	cmd.Flags().IntVar(&prefillTokensStd, "prefill-tokens-stdev", 256, "Stddev prefill token count")
	cmd.Flags().IntVar(&prefillTokensMin, "prefill-tokens-min", 2, "Min prefill token count")
	cmd.Flags().IntVar(&prefillTokensMax, "prefill-tokens-max", 7000, "Max prefill token count")
	cmd.Flags().IntVar(&decodeTokensMean, "decode-tokens", 256, "Average decode token count")
	cmd.Flags().IntVar(&decodeTokensStd, "decode-tokens-stdev", 128, "Stddev decode token count")
	cmd.Flags().IntVar(&decodeTokensMin, "decode-tokens-min", 1, "Min decode token count")
	cmd.Flags().IntVar(&decodeTokensMax, "decode-tokens-max", 7000, "Max decode token count")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addSimFlags(runCmd)
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "File to save the JSON metrics report, including per-request details")
	runCmd.Flags().StringVar(&traceOutput, "trace-output", "", "File to save the YAML event trace")
	runCmd.Flags().StringVar(&promTextfile, "prom-textfile", "", "File to save Prometheus metrics in text exposition format")

	addSimFlags(sweepCmd)
	sweepCmd.Flags().Int64SliceVar(&sweepChunkSizes, "chunk-sizes", []int64{256, 512, 1024}, "Comma-separated chunk sizes to compare")
	sweepCmd.Flags().IntVar(&sweepParallelism, "parallelism", 4, "Max runs executing at once")

	addSimFlags(analyzeCmd)
	analyzeCmd.Flags().IntVar(&analyzeMaxQueueSize, "max-queue-size", 1000, "Requests allowed to wait beyond the batch limit")
	analyzeCmd.Flags().BoolVar(&analyzeSimulate, "simulate", false, "Also simulate a Poisson workload at the same rate for comparison")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(analyzeCmd)
}
