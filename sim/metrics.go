// Tracks simulation-wide, per-batch and per-request performance metrics.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// MetricsSink receives observations from event handlers.
type MetricsSink interface {
	OnBatchEnd(now int64, batch *Batch, replicaID int, memoryUsagePercent float64)
	OnRequestEnd(now int64, req *Request)
	OnSimulationEnd(now int64)
}

// MultiSink fans every observation out to each sink in order.
type MultiSink []MetricsSink

func (ms MultiSink) OnBatchEnd(now int64, batch *Batch, replicaID int, memoryUsagePercent float64) {
	for _, s := range ms {
		s.OnBatchEnd(now, batch, replicaID, memoryUsagePercent)
	}
}

func (ms MultiSink) OnRequestEnd(now int64, req *Request) {
	for _, s := range ms {
		s.OnRequestEnd(now, req)
	}
}

func (ms MultiSink) OnSimulationEnd(now int64) {
	for _, s := range ms {
		s.OnSimulationEnd(now)
	}
}

// RequestMetrics is the per-request record kept for the detailed report.
// Latencies are in milliseconds; timestamps in ticks.
type RequestMetrics struct {
	ID                string  `json:"requestID"`
	ReplicaID         int     `json:"replica_id"`
	ArrivedAt         int64   `json:"arrived_at"`
	NumPrefillTokens  int64   `json:"num_prefill_tokens"`
	NumDecodeTokens   int64   `json:"num_decode_tokens"`
	NumScheduleRounds int     `json:"num_schedule_rounds"`
	TTFT              float64 `json:"ttft_ms"`
	E2E               float64 `json:"e2e_ms"`
	SchedulingDelay   float64 `json:"scheduling_delay_ms"`
}

// BatchRecord is one executed batch.
type BatchRecord struct {
	ReplicaID     int
	BatchID       int64
	Size          int
	PrefillTokens int64
	DecodeTokens  int64
	ScheduledTime int64
	CompletedTime int64
}

// Metrics aggregates statistics about the simulation for final reporting.
type Metrics struct {
	CompletedRequests int   // Number of requests completed
	TotalInputTokens  int64 // Prefill tokens of completed requests
	TotalOutputTokens int64 // Decode tokens of completed requests
	SimEndedTime      int64 // Sim clock time in ticks when simulation ends

	PeakMemoryUsagePercent map[int]float64 // replica id -> peak memory usage seen at a batch end

	Requests []RequestMetrics // in completion order
	Batches  []BatchRecord    // in batch-end order
}

// NewMetrics creates an empty metrics store.
func NewMetrics() *Metrics {
	return &Metrics{
		PeakMemoryUsagePercent: make(map[int]float64),
		Requests:               []RequestMetrics{},
		Batches:                []BatchRecord{},
	}
}

func (m *Metrics) OnBatchEnd(now int64, batch *Batch, replicaID int, memoryUsagePercent float64) {
	m.Batches = append(m.Batches, BatchRecord{
		ReplicaID:     replicaID,
		BatchID:       batch.ID,
		Size:          batch.Size(),
		PrefillTokens: batch.NumPrefillTokens(),
		DecodeTokens:  batch.NumDecodeTokens(),
		ScheduledTime: batch.ScheduledTime,
		CompletedTime: now,
	})
	if memoryUsagePercent > m.PeakMemoryUsagePercent[replicaID] {
		m.PeakMemoryUsagePercent[replicaID] = memoryUsagePercent
	}
}

func (m *Metrics) OnRequestEnd(now int64, req *Request) {
	m.CompletedRequests++
	m.TotalInputTokens += req.NumPrefillTokens
	m.TotalOutputTokens += req.NumDecodeTokens
	m.Requests = append(m.Requests, RequestMetrics{
		ID:                req.ID,
		ReplicaID:         req.ReplicaID,
		ArrivedAt:         req.ArrivalTime,
		NumPrefillTokens:  req.NumPrefillTokens,
		NumDecodeTokens:   req.NumDecodeTokens,
		NumScheduleRounds: req.NumScheduleRounds,
		TTFT:              float64(req.PrefillCompletedTime-req.ArrivalTime) / 1e3,
		E2E:               float64(now-req.ArrivalTime) / 1e3,
		SchedulingDelay:   float64(req.ScheduledTime-req.ArrivalTime) / 1e3,
	})
}

func (m *Metrics) OnSimulationEnd(now int64) {
	m.SimEndedTime = now
}

// Distribution summarizes a sample.
type Distribution struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

// MetricsOutput is the JSON report of a run.
type MetricsOutput struct {
	RunID                 string  `json:"run_id"`
	SimStartTimestamp     string  `json:"sim_start_timestamp,omitempty"`
	SimEndTimestamp       string  `json:"sim_end_timestamp,omitempty"`
	SimulationDurationSec float64 `json:"simulation_duration_s,omitempty"`

	CompletedRequests int     `json:"completed_requests"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	NumBatches        int     `json:"num_batches"`
	SimDurationSec    float64 `json:"sim_duration_s"`
	ResponsesPerSec   float64 `json:"responses_per_sec"`
	TokensPerSec      float64 `json:"tokens_per_sec"`

	E2EMs             Distribution `json:"e2e_ms"`
	TTFTMs            Distribution `json:"ttft_ms"`
	SchedulingDelayMs Distribution `json:"scheduling_delay_ms"`
	BatchSize         Distribution `json:"batch_size"`
	BatchTokens       Distribution `json:"batch_tokens"`
	BatchExecutionMs  Distribution `json:"batch_execution_ms"`

	PeakMemoryUsagePercent map[int]float64 `json:"peak_memory_usage_percent"`

	Requests []RequestMetrics `json:"requests,omitempty"`
}

// Summarize computes the report for the collected observations. The result
// holds no wall-clock fields, so identical runs summarize identically.
func (m *Metrics) Summarize(runID string) MetricsOutput {
	simSeconds := float64(m.SimEndedTime) / 1e6
	output := MetricsOutput{
		RunID:                  runID,
		CompletedRequests:      m.CompletedRequests,
		TotalInputTokens:       m.TotalInputTokens,
		TotalOutputTokens:      m.TotalOutputTokens,
		NumBatches:             len(m.Batches),
		SimDurationSec:         simSeconds,
		PeakMemoryUsagePercent: make(map[int]float64, len(m.PeakMemoryUsagePercent)),
	}
	for id, pct := range m.PeakMemoryUsagePercent {
		output.PeakMemoryUsagePercent[id] = pct
	}
	if simSeconds > 0 {
		output.ResponsesPerSec = float64(m.CompletedRequests) / simSeconds
		output.TokensPerSec = float64(m.TotalOutputTokens) / simSeconds
	}

	e2es := make([]float64, 0, len(m.Requests))
	ttfts := make([]float64, 0, len(m.Requests))
	delays := make([]float64, 0, len(m.Requests))
	for _, rm := range m.Requests {
		e2es = append(e2es, rm.E2E)
		ttfts = append(ttfts, rm.TTFT)
		delays = append(delays, rm.SchedulingDelay)
	}
	output.E2EMs = summarizeDistribution(e2es)
	output.TTFTMs = summarizeDistribution(ttfts)
	output.SchedulingDelayMs = summarizeDistribution(delays)

	sizes := make([]float64, 0, len(m.Batches))
	tokens := make([]float64, 0, len(m.Batches))
	durations := make([]float64, 0, len(m.Batches))
	for _, b := range m.Batches {
		sizes = append(sizes, float64(b.Size))
		tokens = append(tokens, float64(b.PrefillTokens+b.DecodeTokens))
		durations = append(durations, float64(b.CompletedTime-b.ScheduledTime)/1e3)
	}
	output.BatchSize = summarizeDistribution(sizes)
	output.BatchTokens = summarizeDistribution(tokens)
	output.BatchExecutionMs = summarizeDistribution(durations)
	return output
}

// SaveResults prints the summary to w and, when outputFilePath is set, writes
// the summary plus per-request details (sorted by arrival) as JSON.
func (m *Metrics) SaveResults(w io.Writer, runID string, startTime time.Time, outputFilePath string) error {
	output := m.Summarize(runID)
	output.SimStartTimestamp = startTime.Format("2006-01-02 15:04:05")
	output.SimEndTimestamp = time.Now().Format("2006-01-02 15:04:05")
	output.SimulationDurationSec = time.Since(startTime).Seconds()

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling metrics: %w", err)
	}
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintln(w, string(data))

	if outputFilePath == "" {
		return nil
	}
	output.Requests = append([]RequestMetrics(nil), m.Requests...)
	sort.SliceStable(output.Requests, func(i, j int) bool {
		return output.Requests[i].ArrivedAt < output.Requests[j].ArrivedAt
	})
	data, err = json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling metrics: %w", err)
	}
	if err := os.WriteFile(outputFilePath, data, 0644); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", outputFilePath, err)
	}
	logrus.Infof("Metrics written to: %s", outputFilePath)
	return nil
}
