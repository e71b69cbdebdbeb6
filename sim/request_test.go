package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest_FloorsLengthsAtOne(t *testing.T) {
	// GIVEN zero prefill and negative decode lengths
	req := NewRequest("r", 5, 0, -3)

	// THEN both are floored to 1 and the request starts queued and unrouted
	assert.Equal(t, int64(1), req.NumPrefillTokens)
	assert.Equal(t, int64(1), req.NumDecodeTokens)
	assert.Equal(t, int64(2), req.TotalTokens())
	assert.Equal(t, StateQueued, req.State)
	assert.Equal(t, -1, req.ReplicaID)
}

func TestRequest_Advance_LastPrefillChunkEmitsFirstToken(t *testing.T) {
	// GIVEN a request with 25 prefill and 3 decode tokens
	req := NewRequest("r", 0, 25, 3)

	// WHEN two partial chunks are processed
	req.Advance(10, 10)
	req.Advance(20, 10)

	// THEN the prefill is still incomplete
	assert.False(t, req.IsPrefillComplete())
	assert.Equal(t, int64(5), req.RemainingPrefillTokens())

	// WHEN the final chunk is processed
	req.Advance(30, 5)

	// THEN the prefill completes and one output token is produced in the same batch
	assert.True(t, req.IsPrefillComplete())
	assert.Equal(t, int64(26), req.NumProcessedTokens())
	assert.Equal(t, int64(30), req.PrefillCompletedTime)
	assert.False(t, req.Completed())
}

func TestRequest_Advance_CompletesExactlyAtTotal(t *testing.T) {
	// GIVEN a request in decode with two tokens left
	req := NewRequest("r", 0, 4, 3)
	req.Advance(1, 4) // processed 5 of 7

	// WHEN decode steps run
	req.Advance(2, 1)
	assert.False(t, req.Completed())
	req.Advance(3, 1)

	// THEN it completes on the step reaching the total
	assert.True(t, req.Completed())
	assert.Equal(t, StateCompleted, req.State)
	assert.Equal(t, int64(3), req.CompletedTime)
}

func TestRequest_Advance_SingleDecodeTokenCompletesWithPrefill(t *testing.T) {
	// GIVEN a request that wants exactly one output token
	req := NewRequest("r", 0, 8, 1)

	// WHEN its whole prompt is processed in one batch
	req.Advance(7, 8)

	// THEN the first token is also the last
	assert.True(t, req.IsPrefillComplete())
	assert.True(t, req.Completed())
}

func TestRequest_Advance_Violations(t *testing.T) {
	t.Run("zero tokens", func(t *testing.T) {
		req := NewRequest("r", 0, 4, 2)
		requireViolation(t, InvariantBatchShape, func() { req.Advance(0, 0) })
	})
	t.Run("overflow", func(t *testing.T) {
		req := NewRequest("r", 0, 4, 2)
		requireViolation(t, InvariantTokenOverflow, func() { req.Advance(0, 6) })
	})
	t.Run("completed request", func(t *testing.T) {
		req := NewRequest("r", 0, 1, 1)
		req.Advance(0, 1)
		v := requireViolation(t, InvariantTokenOverflow, func() { req.Advance(1, 1) })
		assert.Equal(t, "r", v.RequestID)
	})
}
