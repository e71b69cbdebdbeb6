package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch_ClassifiesTokensAtFormation(t *testing.T) {
	// GIVEN one request in prefill and one in decode
	prefill := NewRequest("p", 0, 20, 4)
	decode := NewRequest("d", 0, 2, 4)
	decode.Advance(0, 2)

	// WHEN a batch allots 10 prefill tokens and 1 decode token
	b := NewBatch(7, 0, []*Request{prefill, decode}, []int64{10, 1})

	// THEN the derived totals follow member state
	assert.Equal(t, 2, b.Size())
	assert.Equal(t, int64(10), b.NumPrefillTokens())
	assert.Equal(t, int64(1), b.NumDecodeTokens())
	assert.Equal(t, int64(11), b.TotalTokens())
	assert.Equal(t, 1, b.NumPrefillRequests())
	assert.Empty(t, b.CompletedRequests())
}

func TestNewBatch_ShapeViolations(t *testing.T) {
	req := NewRequest("r", 0, 4, 2)
	requireViolation(t, InvariantBatchShape, func() {
		NewBatch(0, 0, []*Request{req}, []int64{1, 1})
	})
	requireViolation(t, InvariantBatchShape, func() {
		NewBatch(0, 0, []*Request{req}, []int64{0})
	})
}

func TestBatch_OnBatchEnd_RecordsCompletedInBatchOrder(t *testing.T) {
	// GIVEN three members where the first and last finish in this batch
	a := NewRequest("a", 0, 3, 1)
	b := NewRequest("b", 0, 10, 5)
	c := NewRequest("c", 0, 2, 1)
	batch := NewBatch(0, 0, []*Request{a, b, c}, []int64{3, 4, 2})

	// WHEN the batch ends
	batch.OnBatchEnd(100)

	// THEN completed members are reported in batch order
	require.Len(t, batch.CompletedRequests(), 2)
	assert.Equal(t, "a", batch.CompletedRequests()[0].ID)
	assert.Equal(t, "c", batch.CompletedRequests()[1].ID)
	assert.Equal(t, int64(4), b.NumProcessedTokens())
	assert.Equal(t, int64(100), batch.CompletedTime)
	assert.True(t, batch.Ended())
}

func TestBatch_OnBatchEnd_Twice_Violates(t *testing.T) {
	batch := NewBatch(3, 1, []*Request{NewRequest("r", 0, 10, 2)}, []int64{5})
	batch.OnBatchEnd(1)
	v := requireViolation(t, InvariantBatchEndedTwice, func() { batch.OnBatchEnd(2) })
	assert.Equal(t, 1, v.ReplicaID)
}
