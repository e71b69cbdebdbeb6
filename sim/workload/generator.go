package workload

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/replica-sim/sim"
)

// GenerateRequests creates a request sequence from a WorkloadSpec.
// Deterministic given the same spec. Returns requests sorted by ArrivalTime
// with sequential IDs.
func GenerateRequests(spec *WorkloadSpec) ([]*sim.Request, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(spec.Seed))
	lengthRNG := rng.ForSubsystem(sim.SubsystemWorkload)
	arrivalRNG := rng.ForSubsystem(sim.SubsystemArrivals)

	horizon := spec.Horizon
	if horizon == 0 {
		horizon = math.MaxInt64
	}
	perClientLimit := spec.NumRequests
	if perClientLimit == 0 {
		perClientLimit = math.MaxInt64
	}

	clientRates := normalizeRateFractions(spec.Clients, spec.AggregateRate)
	var allRequests []*sim.Request
	for i := range spec.Clients {
		client := &spec.Clients[i]

		// per-client streams keep one client's draws from shifting another's
		clientArrivalRNG := rand.New(rand.NewSource(arrivalRNG.Int63()))
		clientLengthRNG := rand.New(rand.NewSource(lengthRNG.Int63()))

		arrivals := NewArrivalSampler(client.Arrival, clientRates[i])
		prefill, err := NewLengthSampler(client.PrefillDist)
		if err != nil {
			return nil, fmt.Errorf("client %q prefill distribution: %w", client.ID, err)
		}
		decode, err := NewLengthSampler(client.DecodeDist)
		if err != nil {
			return nil, fmt.Errorf("client %q decode distribution: %w", client.ID, err)
		}

		currentTime := int64(0)
		for n := int64(0); n < perClientLimit; n++ {
			currentTime += arrivals.SampleIAT(clientArrivalRNG)
			if currentTime >= horizon {
				break
			}
			allRequests = append(allRequests, sim.NewRequest("", currentTime,
				prefill.Sample(clientLengthRNG), decode.Sample(clientLengthRNG)))
		}
	}

	// stable sort preserves client order for ties
	sort.SliceStable(allRequests, func(i, j int) bool {
		return allRequests[i].ArrivalTime < allRequests[j].ArrivalTime
	})
	if spec.NumRequests > 0 && int64(len(allRequests)) > spec.NumRequests {
		allRequests = allRequests[:spec.NumRequests]
	}
	for i, req := range allRequests {
		req.ID = fmt.Sprintf("request_%d", i)
	}
	logrus.Debugf("generated %d requests from %d clients", len(allRequests), len(spec.Clients))
	return allRequests, nil
}

// normalizeRateFractions splits aggregateRate across clients in proportion
// to their rate fractions.
func normalizeRateFractions(clients []ClientSpec, aggregateRate float64) []float64 {
	total := 0.0
	for _, c := range clients {
		total += c.RateFraction
	}
	rates := make([]float64, len(clients))
	for i, c := range clients {
		rates[i] = aggregateRate * c.RateFraction / total
	}
	return rates
}
