package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemWorkload is the RNG subsystem for request lengths.
	// Uses master seed directly.
	SubsystemWorkload = "workload"

	// SubsystemArrivals is the RNG subsystem for inter-arrival times.
	SubsystemArrivals = "arrivals"

	// SubsystemRouter is the RNG subsystem for routing decisions.
	SubsystemRouter = "router"
)

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so adding draws in one subsystem never shifts another's sequence.
//
// Derivation formula:
//   - For SubsystemWorkload: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derivedSeed := int64(p.key)
	if name != SubsystemWorkload {
		derivedSeed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
