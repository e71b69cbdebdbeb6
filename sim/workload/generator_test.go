package workload

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequests_SortedWithSequentialIDs(t *testing.T) {
	// GIVEN a two-client spec bounded by request count
	spec, err := ParseWorkloadSpec([]byte(twoClientSpec))
	require.NoError(t, err)

	// WHEN requests are generated
	reqs, err := GenerateRequests(spec)
	require.NoError(t, err)

	// THEN exactly num_requests come back in arrival order with request_<i> IDs
	require.Len(t, reqs, 50)
	for i, r := range reqs {
		assert.Equal(t, fmt.Sprintf("request_%d", i), r.ID)
		assert.GreaterOrEqual(t, r.NumPrefillTokens, int64(1))
		assert.GreaterOrEqual(t, r.NumDecodeTokens, int64(1))
		if i > 0 {
			assert.LessOrEqual(t, reqs[i-1].ArrivalTime, r.ArrivalTime)
		}
	}
}

func TestGenerateRequests_Deterministic(t *testing.T) {
	spec, err := ParseWorkloadSpec([]byte(twoClientSpec))
	require.NoError(t, err)
	a, err := GenerateRequests(spec)
	require.NoError(t, err)
	b, err := GenerateRequests(spec)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	spec.Seed++
	c, err := GenerateRequests(spec)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateRequests_HorizonBound(t *testing.T) {
	// GIVEN a constant 100 req/s stream bounded by a one-second horizon
	spec := validSpec()
	spec.NumRequests = 0
	spec.AggregateRate = 100
	spec.Horizon = 1_000_000
	spec.Clients[0].Arrival.Process = "constant"

	// WHEN requests are generated
	reqs, err := GenerateRequests(spec)
	require.NoError(t, err)

	// THEN arrivals land every 10ms strictly before the horizon
	require.Len(t, reqs, 99)
	assert.Equal(t, int64(10_000), reqs[0].ArrivalTime)
	assert.Equal(t, int64(990_000), reqs[98].ArrivalTime)
	assert.Equal(t, int64(32), reqs[0].NumPrefillTokens)
	assert.Equal(t, int64(8), reqs[0].NumDecodeTokens)
}

func TestGenerateRequests_RateFractionsSplitLoad(t *testing.T) {
	rates := normalizeRateFractions([]ClientSpec{{RateFraction: 3}, {RateFraction: 1}}, 20)
	assert.InDeltaSlice(t, []float64{15, 5}, rates, 1e-12)
}

func TestGenerateRequests_InvalidSpec(t *testing.T) {
	spec := validSpec()
	spec.Clients = nil
	_, err := GenerateRequests(spec)
	assert.ErrorContains(t, err, "invalid workload spec")
}
