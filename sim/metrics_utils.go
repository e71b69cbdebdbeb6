package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculatePercentile returns the p-th percentile (p in [0,100]) of sorted
// data using the empirical CDF. Returns 0 for empty data.
func CalculatePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(p/100, stat.Empirical, sorted, nil)
}

// CalculateMean returns the arithmetic mean of data, 0 for empty data.
func CalculateMean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// summarizeDistribution sorts values in place.
func summarizeDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sort.Float64s(values)
	return Distribution{
		Mean: CalculateMean(values),
		P50:  CalculatePercentile(values, 50),
		P90:  CalculatePercentile(values, 90),
		P99:  CalculatePercentile(values, 99),
		Max:  values[len(values)-1],
	}
}
