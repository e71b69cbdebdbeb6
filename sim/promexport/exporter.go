// Package promexport exposes simulation observations as Prometheus metrics.
// The Exporter implements sim.MetricsSink, records into a private registry
// and can write a node-exporter textfile at the end of a run.
package promexport

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/inference-sim/replica-sim/sim"
)

const (
	namespace = "replica_sim"

	labelReplica = "replica"
	labelRunID   = "run_id"
)

var (
	latencyBuckets     = prometheus.ExponentialBuckets(0.001, 2, 16) // 1ms .. ~33s
	batchSizeBuckets   = prometheus.ExponentialBuckets(1, 2, 10)     // 1 .. 512
	batchTokensBuckets = prometheus.ExponentialBuckets(1, 2, 14)     // 1 .. 8192
)

// Exporter is a sim.MetricsSink backed by Prometheus collectors.
type Exporter struct {
	registry *prometheus.Registry

	requestsCompleted prometheus.Counter
	promptTokens      prometheus.Counter
	generationTokens  prometheus.Counter
	e2eLatency        prometheus.Histogram
	ttft              prometheus.Histogram

	batches        *prometheus.CounterVec
	batchSize      prometheus.Histogram
	batchTokens    prometheus.Histogram
	batchExecution prometheus.Histogram
	memoryUsage    *prometheus.GaugeVec

	simulatedSeconds prometheus.Gauge
}

var _ sim.MetricsSink = (*Exporter)(nil)

// New creates an exporter whose series all carry the run_id label.
func New(runID string) (*Exporter, error) {
	constLabels := prometheus.Labels{labelRunID: runID}
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.requestsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "requests_completed_total",
		Help: "Number of requests that produced their last token.", ConstLabels: constLabels,
	})
	e.promptTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "prompt_tokens_total",
		Help: "Prefill tokens of completed requests.", ConstLabels: constLabels,
	})
	e.generationTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "generation_tokens_total",
		Help: "Decode tokens of completed requests.", ConstLabels: constLabels,
	})
	e.e2eLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "e2e_request_latency_seconds",
		Help: "Simulated arrival to completion latency.", Buckets: latencyBuckets, ConstLabels: constLabels,
	})
	e.ttft = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "time_to_first_token_seconds",
		Help: "Simulated arrival to prefill completion latency.", Buckets: latencyBuckets, ConstLabels: constLabels,
	})
	e.batches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "batches_total",
		Help: "Executed batches per replica.", ConstLabels: constLabels,
	}, []string{labelReplica})
	e.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "batch_size",
		Help: "Requests per executed batch.", Buckets: batchSizeBuckets, ConstLabels: constLabels,
	})
	e.batchTokens = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "batch_tokens",
		Help: "Tokens per executed batch.", Buckets: batchTokensBuckets, ConstLabels: constLabels,
	})
	e.batchExecution = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "batch_execution_seconds",
		Help: "Simulated batch execution time.", Buckets: latencyBuckets, ConstLabels: constLabels,
	})
	e.memoryUsage = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "memory_usage_percent",
		Help: "Replica memory usage observed at the latest batch end.", ConstLabels: constLabels,
	}, []string{labelReplica})
	e.simulatedSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "simulated_seconds",
		Help: "Simulated clock when the run ended.", ConstLabels: constLabels,
	})

	collectors := []prometheus.Collector{
		e.requestsCompleted, e.promptTokens, e.generationTokens, e.e2eLatency, e.ttft,
		e.batches, e.batchSize, e.batchTokens, e.batchExecution, e.memoryUsage, e.simulatedSeconds,
	}
	for _, c := range collectors {
		if err := e.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return e, nil
}

// Registry returns the private registry holding every collector.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

func (e *Exporter) OnBatchEnd(now int64, batch *sim.Batch, replicaID int, memoryUsagePercent float64) {
	replica := strconv.Itoa(replicaID)
	e.batches.WithLabelValues(replica).Inc()
	e.batchSize.Observe(float64(batch.Size()))
	e.batchTokens.Observe(float64(batch.TotalTokens()))
	e.batchExecution.Observe(ticksToSeconds(now - batch.ScheduledTime))
	e.memoryUsage.WithLabelValues(replica).Set(memoryUsagePercent)
}

func (e *Exporter) OnRequestEnd(now int64, req *sim.Request) {
	e.requestsCompleted.Inc()
	e.promptTokens.Add(float64(req.NumPrefillTokens))
	e.generationTokens.Add(float64(req.NumDecodeTokens))
	e.e2eLatency.Observe(ticksToSeconds(now - req.ArrivalTime))
	e.ttft.Observe(ticksToSeconds(req.PrefillCompletedTime - req.ArrivalTime))
}

func (e *Exporter) OnSimulationEnd(now int64) {
	e.simulatedSeconds.Set(ticksToSeconds(now))
}

// WriteTextfile writes every series in the text exposition format, for the
// node-exporter textfile collector.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing prometheus textfile %s: %w", path, err)
	}
	return nil
}

func ticksToSeconds(ticks int64) float64 {
	return float64(ticks) / 1e6
}
