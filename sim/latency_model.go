package sim

import (
	"fmt"
	"math"
)

// LatencyModel estimates how long a composed batch occupies its replica.
// All time estimates are in microseconds (ticks).
type LatencyModel interface {
	// BatchExecutionTime returns the batch duration; always >= 1 so that a
	// batch end is strictly later than the schedule that produced it.
	BatchExecutionTime(batch *Batch) int64
}

// BlackboxLatencyModel estimates batch time using trained beta regression coefficients:
// beta0 + beta1*prefillTokens + beta2*decodeTokens.
type BlackboxLatencyModel struct {
	betaCoeffs []float64
}

// NewLatencyModel builds the blackbox model from coefficients.
// Requires at least three finite, non-negative coefficients.
func NewLatencyModel(coeffs LatencyCoeffs) (LatencyModel, error) {
	if len(coeffs.BetaCoeffs) < 3 {
		return nil, fmt.Errorf("latency model: BetaCoeffs requires at least 3 elements, got %d", len(coeffs.BetaCoeffs))
	}
	for i, c := range coeffs.BetaCoeffs {
		if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("latency model: BetaCoeffs[%d] must be finite and >= 0, got %v", i, c)
		}
	}
	return &BlackboxLatencyModel{betaCoeffs: append([]float64(nil), coeffs.BetaCoeffs...)}, nil
}

func (m *BlackboxLatencyModel) BatchExecutionTime(batch *Batch) int64 {
	var total float64
	total += m.betaCoeffs[0]
	total += m.betaCoeffs[1] * float64(batch.NumPrefillTokens())
	total += m.betaCoeffs[2] * float64(batch.NumDecodeTokens())
	return max(int64(total), 1)
}

// StepTime is the blackbox estimate for an arbitrary token mix; the analytic
// baseline uses it to derive service rates without composing batches.
func (m *BlackboxLatencyModel) StepTime(prefillTokens, decodeTokens int64) int64 {
	total := m.betaCoeffs[0] + m.betaCoeffs[1]*float64(prefillTokens) + m.betaCoeffs[2]*float64(decodeTokens)
	return max(int64(total), 1)
}
