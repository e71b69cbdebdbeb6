package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents       int            `yaml:"total_events"`
	EventsByKind      map[string]int `yaml:"events_by_kind"`
	BatchesPerReplica map[int]int    `yaml:"batches_per_replica"`
	MaxBatchSize      int            `yaml:"max_batch_size"`
	MeanBatchSize     float64        `yaml:"mean_batch_size"`
	FinalClock        int64          `yaml:"final_clock"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		EventsByKind:      make(map[string]int),
		BatchesPerReplica: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	totalBatchSize := 0
	numBatches := 0
	for _, rec := range st.Events {
		summary.EventsByKind[rec.Kind]++
		summary.FinalClock = max(summary.FinalClock, rec.Clock)
		// a batch is counted once, when it ends
		if rec.Kind == "BatchEnd" {
			summary.BatchesPerReplica[rec.ReplicaID]++
			summary.MaxBatchSize = max(summary.MaxBatchSize, rec.BatchSize)
			totalBatchSize += rec.BatchSize
			numBatches++
		}
	}
	if numBatches > 0 {
		summary.MeanBatchSize = float64(totalBatchSize) / float64(numBatches)
	}
	return summary
}
