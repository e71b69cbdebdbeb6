package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"
)

// ArrivalSampler generates inter-arrival times.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in ticks (>= 1).
	SampleIAT(rng *rand.Rand) int64
}

// PoissonSampler draws exponential inter-arrival times (CV=1).
type PoissonSampler struct {
	ratePerTick float64
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) int64 {
	return toTicks(distuv.Exponential{Rate: s.ratePerTick, Src: rng}.Rand())
}

// GammaSampler draws Gamma inter-arrival times. CV > 1 gives bursty arrivals.
type GammaSampler struct {
	shape float64 // 1/CV²
	rate  float64 // shape * ratePerTick, so the mean stays 1/ratePerTick
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) int64 {
	return toTicks(distuv.Gamma{Alpha: s.shape, Beta: s.rate, Src: rng}.Rand())
}

// WeibullSampler draws Weibull inter-arrival times.
type WeibullSampler struct {
	shape float64 // k
	scale float64 // λ in ticks
}

func (s *WeibullSampler) SampleIAT(rng *rand.Rand) int64 {
	return toTicks(distuv.Weibull{K: s.shape, Lambda: s.scale, Src: rng}.Rand())
}

// ConstantArrivalSampler spaces arrivals evenly.
type ConstantArrivalSampler struct {
	iat int64
}

func (s *ConstantArrivalSampler) SampleIAT(_ *rand.Rand) int64 { return s.iat }

func toTicks(sample float64) int64 {
	if math.IsNaN(sample) || sample < 1 {
		return 1
	}
	if sample > math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	return int64(sample)
}

// NewArrivalSampler creates an ArrivalSampler from a spec and a rate in
// requests per second.
func NewArrivalSampler(spec ArrivalSpec, ratePerSecond float64) ArrivalSampler {
	ratePerTick := ratePerSecond / 1e6
	if ratePerTick < 1e-15 {
		ratePerTick = 1e-15
	}
	cv := 1.0
	if spec.CV != nil && *spec.CV > 0 {
		cv = *spec.CV
	}

	switch spec.Process {
	case "gamma":
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &PoissonSampler{ratePerTick: ratePerTick}
		}
		return &GammaSampler{shape: shape, rate: shape * ratePerTick}

	case "weibull":
		k := weibullShapeFromCV(cv)
		// mean = λ·Γ(1 + 1/k)
		return &WeibullSampler{shape: k, scale: (1.0 / ratePerTick) / math.Gamma(1.0+1.0/k)}

	case "constant":
		return &ConstantArrivalSampler{iat: toTicks(1.0 / ratePerTick)}

	default:
		return &PoissonSampler{ratePerTick: ratePerTick}
	}
}

// weibullShapeFromCV finds k such that CV² = Γ(1+2/k)/Γ(1+1/k)² - 1 by
// bisection over [0.1, 100]; CV decreases monotonically in k.
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibull shape search did not converge for CV=%.3f; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
