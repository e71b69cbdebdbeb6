package workload

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// LengthSampler generates token counts.
type LengthSampler interface {
	// Sample returns a token count >= 1.
	Sample(rng *rand.Rand) int64
}

// GaussianSampler produces clamped Gaussian token lengths.
type GaussianSampler struct {
	mean, stdDev float64
	min, max     int64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) int64 {
	if s.min == s.max || s.stdDev <= 0 {
		return atLeastOne(math.Min(float64(s.max), math.Max(float64(s.min), s.mean)))
	}
	val := distuv.Normal{Mu: s.mean, Sigma: s.stdDev, Src: rng}.Rand()
	return atLeastOne(math.Min(float64(s.max), math.Max(float64(s.min), val)))
}

// ExponentialSampler produces exponentially distributed token lengths.
type ExponentialSampler struct {
	mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) int64 {
	return atLeastOne(distuv.Exponential{Rate: 1.0 / s.mean, Src: rng}.Rand())
}

// ConstantSampler always returns the same value.
type ConstantSampler struct {
	value int64
}

func (s *ConstantSampler) Sample(_ *rand.Rand) int64 {
	return max(s.value, 1)
}

// EmpiricalSampler draws token counts from a discrete PDF.
type EmpiricalSampler struct {
	values  []int64   // sorted token counts
	weights []float64 // probability mass per value
}

// NewEmpiricalSampler builds a sampler from token count -> probability.
// Probabilities need not sum to 1; non-positive entries are dropped.
func NewEmpiricalSampler(pdf map[int64]float64) (*EmpiricalSampler, error) {
	keys := make([]int64, 0, len(pdf))
	for k, p := range pdf {
		if p > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("empirical distribution has no positive probabilities")
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	weights := make([]float64, len(keys))
	for i, k := range keys {
		weights[i] = pdf[k]
	}
	return &EmpiricalSampler{values: keys, weights: weights}, nil
}

func (s *EmpiricalSampler) Sample(rng *rand.Rand) int64 {
	if len(s.values) == 1 {
		return max(s.values[0], 1)
	}
	idx := int(distuv.NewCategorical(s.weights, rng).Rand())
	return max(s.values[idx], 1)
}

func atLeastOne(val float64) int64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 1
	}
	return max(int64(math.Round(val)), 1)
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewLengthSampler creates a LengthSampler from a DistSpec.
func NewLengthSampler(spec DistSpec) (LengthSampler, error) {
	switch spec.Type {
	case "gaussian":
		if err := requireParam(spec.Params, "mean", "std_dev", "min", "max"); err != nil {
			return nil, err
		}
		lo, hi := int64(spec.Params["min"]), int64(spec.Params["max"])
		if lo > hi {
			return nil, fmt.Errorf("gaussian min (%d) exceeds max (%d)", lo, hi)
		}
		return &GaussianSampler{
			mean:   spec.Params["mean"],
			stdDev: spec.Params["std_dev"],
			min:    lo,
			max:    hi,
		}, nil

	case "exponential":
		if err := requireParam(spec.Params, "mean"); err != nil {
			return nil, err
		}
		if spec.Params["mean"] <= 0 {
			return nil, fmt.Errorf("exponential mean must be positive, got %f", spec.Params["mean"])
		}
		return &ExponentialSampler{mean: spec.Params["mean"]}, nil

	case "constant":
		if err := requireParam(spec.Params, "value"); err != nil {
			return nil, err
		}
		return &ConstantSampler{value: int64(spec.Params["value"])}, nil

	case "empirical":
		return NewEmpiricalSampler(spec.PDF)

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
