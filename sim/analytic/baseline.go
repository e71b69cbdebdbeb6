// Package analytic provides a queueing-theory baseline for a single replica.
// It models the replica as a state-dependent M/M/1 queue whose service rate
// with n requests in service follows the same beta coefficients and chunk
// size the simulator uses, and reports steady-state averages to compare
// against simulated results.
package analytic

import (
	"fmt"
	"math"

	"github.com/llm-inferno/queue-analysis/pkg/queue"

	"github.com/inference-sim/replica-sim/sim"
)

// Epsilon keeps the solved rate range strictly inside the stable region.
const Epsilon = 0.001

// RequestSize holds the mean token counts of the modeled workload.
type RequestSize struct {
	AvgPrefillTokens float64
	AvgDecodeTokens  float64
}

// Config describes the replica being modeled.
type Config struct {
	Latency      sim.LatencyCoeffs
	ChunkSize    int64
	MaxBatchSize int
	MaxQueueSize int // requests allowed to wait beyond MaxBatchSize
}

// Baseline is a solved-on-demand queueing model of one replica.
type Baseline struct {
	config   Config
	size     RequestSize
	servRate []float32 // requests/ms with n = index+1 requests in service
	model    *queue.MM1ModelStateDependent
}

// Result holds the steady-state averages at a given request rate.
type Result struct {
	RequestRate     float64 `json:"request_rate"`         // requests/s offered
	Throughput      float64 `json:"throughput"`           // requests/s served
	AvgRespTimeMs   float64 `json:"avg_response_time_ms"` // queueing + service
	AvgWaitTimeMs   float64 `json:"avg_wait_time_ms"`     // queueing only
	AvgServTimeMs   float64 `json:"avg_service_time_ms"`  // service only
	AvgNumInService float64 `json:"avg_num_in_service"`   // mean concurrency
	Utilization     float64 `json:"utilization"`          // AvgNumInService / MaxBatchSize
	MaxRate         float64 `json:"max_request_rate"`     // requests/s at saturation
}

// NewBaseline derives per-concurrency service rates and builds the model.
func NewBaseline(cfg Config, size RequestSize) (*Baseline, error) {
	if cfg.ChunkSize <= 0 || cfg.MaxBatchSize <= 0 || cfg.MaxQueueSize < 0 {
		return nil, fmt.Errorf("invalid baseline config: chunk=%d maxBatch=%d maxQueue=%d",
			cfg.ChunkSize, cfg.MaxBatchSize, cfg.MaxQueueSize)
	}
	if size.AvgPrefillTokens < 1 || size.AvgDecodeTokens < 1 {
		return nil, fmt.Errorf("invalid request size: prefill=%v decode=%v", size.AvgPrefillTokens, size.AvgDecodeTokens)
	}
	lm, err := sim.NewLatencyModel(cfg.Latency)
	if err != nil {
		return nil, err
	}
	blackbox, ok := lm.(*sim.BlackboxLatencyModel)
	if !ok {
		return nil, fmt.Errorf("analytic baseline requires the blackbox latency model")
	}

	servRate := make([]float32, cfg.MaxBatchSize)
	for n := 1; n <= cfg.MaxBatchSize; n++ {
		servRate[n-1] = float32(serviceRate(blackbox, cfg.ChunkSize, size, n))
	}
	return &Baseline{
		config:   cfg,
		size:     size,
		servRate: servRate,
		model:    queue.NewMM1ModelStateDependent(cfg.MaxQueueSize+cfg.MaxBatchSize, servRate),
	}, nil
}

// serviceRate returns requests/ms completed with n requests in service.
// A request needs ceil(P/C) prefill iterations, the last of which emits the
// first token, then D-1 decode iterations. Each of the n members contributes
// its average per-iteration token mix to the shared step.
func serviceRate(lm *sim.BlackboxLatencyModel, chunkSize int64, size RequestSize, n int) float64 {
	prefillIters := math.Ceil(size.AvgPrefillTokens / float64(chunkSize))
	iters := prefillIters + size.AvgDecodeTokens - 1
	prefillPerStep := math.Min(float64(chunkSize), float64(n)*size.AvgPrefillTokens/iters)
	decodePerStep := float64(n) * (size.AvgDecodeTokens - 1) / iters
	stepTicks := float64(lm.StepTime(int64(math.Round(prefillPerStep)), int64(math.Round(decodePerStep))))
	serviceMs := iters * stepTicks / 1e3
	return float64(n) / serviceMs
}

// MaxRate returns the highest request rate (requests/s) the model accepts.
func (b *Baseline) MaxRate() float64 {
	return float64(b.servRate[len(b.servRate)-1]) * (1 - Epsilon) * 1000
}

// Analyze solves the model at requestRate requests/s.
func (b *Baseline) Analyze(requestRate float64) (*Result, error) {
	if requestRate <= 0 || math.IsNaN(requestRate) {
		return nil, fmt.Errorf("invalid request rate %v", requestRate)
	}
	if maxRate := b.MaxRate(); requestRate > maxRate {
		return nil, fmt.Errorf("rate=%.3f exceeds max stable rate=%.3f", requestRate, maxRate)
	}

	b.model.Solve(float32(requestRate/1000), 1)
	if !b.model.IsValid() {
		return nil, fmt.Errorf("invalid model %v", b.model)
	}
	numInServ := float64(b.model.GetAvgNumInServers())
	return &Result{
		RequestRate:     requestRate,
		Throughput:      float64(b.model.GetThroughput()) * 1000,
		AvgRespTimeMs:   float64(b.model.GetAvgRespTime()),
		AvgWaitTimeMs:   float64(b.model.GetAvgWaitTime()),
		AvgServTimeMs:   float64(b.model.GetAvgServTime()),
		AvgNumInService: numInServ,
		Utilization:     min(max(numInServ/float64(b.config.MaxBatchSize), 0), 1),
		MaxRate:         b.MaxRate(),
	}, nil
}

// ServiceRates returns the per-concurrency service rates in requests/s.
func (b *Baseline) ServiceRates() []float64 {
	rates := make([]float64, len(b.servRate))
	for i, r := range b.servRate {
		rates[i] = float64(r) * 1000
	}
	return rates
}

func (r *Result) String() string {
	return fmt.Sprintf("{rate=%.3f, tput=%.3f, resp=%.3fms, wait=%.3fms, conc=%.3f, rho=%.3f, maxRate=%.3f}",
		r.RequestRate, r.Throughput, r.AvgRespTimeMs, r.AvgWaitTimeMs, r.AvgNumInService, r.Utilization, r.MaxRate)
}
