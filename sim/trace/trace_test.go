package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulationTrace_RecordOnlyWhenEnabled(t *testing.T) {
	off := NewSimulationTrace("r", "")
	assert.Equal(t, TraceLevelNone, off.Level)
	off.Record(EventRecord{Kind: "BatchEnd"})
	assert.Empty(t, off.Events)

	var nilTrace *SimulationTrace
	assert.False(t, nilTrace.Enabled())
	nilTrace.Record(EventRecord{})

	on := NewSimulationTrace("r", TraceLevelEvents)
	on.Record(EventRecord{Seq: 3, Kind: "RequestArrival"})
	assert.Len(t, on.Events, 1)
}

func TestIsValidTraceLevel(t *testing.T) {
	assert.True(t, IsValidTraceLevel("none"))
	assert.True(t, IsValidTraceLevel("events"))
	assert.True(t, IsValidTraceLevel(""))
	assert.False(t, IsValidTraceLevel("decisions"))
}

func TestSummarize(t *testing.T) {
	// GIVEN a trace with two batch ends on replica 0 and one on replica 1
	st := NewSimulationTrace("r", TraceLevelEvents)
	st.Record(EventRecord{Clock: 0, Kind: "RequestArrival", BatchID: -1})
	st.Record(EventRecord{Clock: 0, Kind: "ReplicaSchedule", BatchID: 0, BatchSize: 3})
	st.Record(EventRecord{Clock: 40, Kind: "BatchEnd", ReplicaID: 0, BatchID: 0, BatchSize: 3})
	st.Record(EventRecord{Clock: 55, Kind: "BatchEnd", ReplicaID: 1, BatchID: 0, BatchSize: 1})
	st.Record(EventRecord{Clock: 90, Kind: "BatchEnd", ReplicaID: 0, BatchID: 1, BatchSize: 2})

	// WHEN summarized
	s := Summarize(st)

	// THEN batches are counted once, at their end
	assert.Equal(t, 5, s.TotalEvents)
	assert.Equal(t, 3, s.EventsByKind["BatchEnd"])
	assert.Equal(t, map[int]int{0: 2, 1: 1}, s.BatchesPerReplica)
	assert.Equal(t, 3, s.MaxBatchSize)
	assert.InDelta(t, 2.0, s.MeanBatchSize, 1e-12)
	assert.Equal(t, int64(90), s.FinalClock)
}

func TestSummarize_Nil(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalEvents)
	assert.NotNil(t, s.EventsByKind)
}
