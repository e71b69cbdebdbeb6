package workload

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func sampleIATs(s ArrivalSampler, seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(s.SampleIAT(rng))
	}
	return vals
}

func coefficientOfVariation(vals []float64) float64 {
	mean, std := stat.MeanStdDev(vals, nil)
	return std / mean
}

func TestPoissonSampler_MeanIAT_MatchesRate(t *testing.T) {
	// GIVEN a Poisson sampler at 10 req/s
	sampler := NewArrivalSampler(ArrivalSpec{Process: "poisson"}, 10)

	// WHEN 20000 IATs are sampled
	vals := sampleIATs(sampler, 42, 20000)

	// THEN mean IAT ≈ 100000 µs and CV ≈ 1
	assert.InEpsilon(t, 1e5, stat.Mean(vals, nil), 0.05)
	assert.InDelta(t, 1.0, coefficientOfVariation(vals), 0.1)
}

func TestGammaSampler_HighCV_ProducesBurstierArrivals(t *testing.T) {
	// GIVEN a Gamma sampler with CV=2 at 10 req/s
	cv := 2.0
	sampler := NewArrivalSampler(ArrivalSpec{Process: "gamma", CV: &cv}, 10)
	_, ok := sampler.(*GammaSampler)
	assert.True(t, ok)

	// WHEN 50000 IATs are sampled
	vals := sampleIATs(sampler, 42, 50000)

	// THEN the mean is preserved and the spread matches the requested CV
	assert.InEpsilon(t, 1e5, stat.Mean(vals, nil), 0.05)
	assert.InDelta(t, cv, coefficientOfVariation(vals), 0.2)
}

func TestGammaSampler_ExtremeCV_FallsBackToPoisson(t *testing.T) {
	cv := 20.0
	_, ok := NewArrivalSampler(ArrivalSpec{Process: "gamma", CV: &cv}, 10).(*PoissonSampler)
	assert.True(t, ok)
}

func TestWeibullSampler_MeanAndCV(t *testing.T) {
	// GIVEN a Weibull sampler with CV=0.5 at 20 req/s
	cv := 0.5
	sampler := NewArrivalSampler(ArrivalSpec{Process: "weibull", CV: &cv}, 20)

	// WHEN 20000 IATs are sampled
	vals := sampleIATs(sampler, 7, 20000)

	// THEN mean IAT ≈ 50000 µs with the requested CV
	assert.InEpsilon(t, 5e4, stat.Mean(vals, nil), 0.05)
	assert.InDelta(t, cv, coefficientOfVariation(vals), 0.05)
}

func TestWeibullShapeFromCV_InvertsCV(t *testing.T) {
	for _, cv := range []float64{0.2, 0.5, 1.0, 2.0, 5.0} {
		k := weibullShapeFromCV(cv)
		assert.InDelta(t, cv, weibullCV(k), 0.01, "cv=%v", cv)
	}
	// CV 1 is the exponential case
	assert.InDelta(t, 1.0, weibullShapeFromCV(1.0), 0.01)
}

func TestConstantArrivalSampler_EvenSpacing(t *testing.T) {
	sampler := NewArrivalSampler(ArrivalSpec{Process: "constant"}, 4)
	for _, v := range sampleIATs(sampler, 1, 10) {
		assert.Equal(t, 250000.0, v)
	}
}

func TestToTicks_Bounds(t *testing.T) {
	assert.Equal(t, int64(1), toTicks(0.2))
	assert.Equal(t, int64(1), toTicks(math.NaN()))
	assert.Equal(t, int64(12), toTicks(12.9))
	assert.Equal(t, int64(math.MaxInt64/2), toTicks(math.Inf(1)))
}
