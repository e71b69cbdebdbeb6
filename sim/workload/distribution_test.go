package workload

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func drawLengths(t *testing.T, spec DistSpec, n int) []float64 {
	t.Helper()
	sampler, err := NewLengthSampler(spec)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(sampler.Sample(rng))
	}
	return vals
}

func TestGaussianSampler_ClampsToRange(t *testing.T) {
	// GIVEN a wide Gaussian clamped to [100, 300]
	spec := DistSpec{Type: "gaussian", Params: map[string]float64{"mean": 200, "std_dev": 150, "min": 100, "max": 300}}

	// WHEN many lengths are drawn
	vals := drawLengths(t, spec, 5000)

	// THEN all lie in range and the centre is preserved
	for _, v := range vals {
		require.GreaterOrEqual(t, v, 100.0)
		require.LessOrEqual(t, v, 300.0)
	}
	assert.InDelta(t, 200, stat.Mean(vals, nil), 10)
}

func TestGaussianSampler_ZeroStdDev_ReturnsMean(t *testing.T) {
	spec := DistSpec{Type: "gaussian", Params: map[string]float64{"mean": 64, "std_dev": 0, "min": 1, "max": 1000}}
	for _, v := range drawLengths(t, spec, 10) {
		assert.Equal(t, 64.0, v)
	}
}

func TestExponentialSampler_Mean(t *testing.T) {
	vals := drawLengths(t, DistSpec{Type: "exponential", Params: map[string]float64{"mean": 128}}, 20000)
	assert.InEpsilon(t, 128, stat.Mean(vals, nil), 0.05)
	for _, v := range vals {
		require.GreaterOrEqual(t, v, 1.0)
	}
}

func TestConstantSampler_FloorsAtOne(t *testing.T) {
	assert.Equal(t, []float64{1, 1}, drawLengths(t, DistSpec{Type: "constant", Params: map[string]float64{"value": 0}}, 2))
	assert.Equal(t, []float64{7, 7}, drawLengths(t, DistSpec{Type: "constant", Params: map[string]float64{"value": 7}}, 2))
}

func TestEmpiricalSampler_FollowsWeights(t *testing.T) {
	// GIVEN a PDF with 75% mass on 10 and 25% on 1000
	spec := DistSpec{Type: "empirical", PDF: map[int64]float64{10: 3, 1000: 1, 55: 0}}

	// WHEN 8000 lengths are drawn
	vals := drawLengths(t, spec, 8000)

	// THEN only positive-mass values appear, in proportion
	small := 0
	for _, v := range vals {
		require.Contains(t, []float64{10, 1000}, v)
		if v == 10 {
			small++
		}
	}
	assert.InDelta(t, 0.75, float64(small)/float64(len(vals)), 0.03)
}

func TestNewEmpiricalSampler_NoMass_Errors(t *testing.T) {
	_, err := NewEmpiricalSampler(map[int64]float64{5: 0})
	assert.Error(t, err)
}

func TestNewLengthSampler_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec DistSpec
	}{
		{"unknown type", DistSpec{Type: "zipf"}},
		{"gaussian missing params", DistSpec{Type: "gaussian", Params: map[string]float64{"mean": 1}}},
		{"gaussian inverted range", DistSpec{Type: "gaussian", Params: map[string]float64{"mean": 1, "std_dev": 1, "min": 9, "max": 2}}},
		{"exponential zero mean", DistSpec{Type: "exponential", Params: map[string]float64{"mean": 0}}},
		{"constant missing value", DistSpec{Type: "constant"}},
		{"empirical empty", DistSpec{Type: "empirical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLengthSampler(tt.spec)
			assert.Error(t, err)
		})
	}
}
