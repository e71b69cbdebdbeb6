package sim

import (
	"fmt"
	"math/rand"
	"sort"
)

// ReplicaSnapshot is a lightweight view of replica state for routing decisions.
type ReplicaSnapshot struct {
	ID                 int
	PendingRequests    int // new arrivals not yet admitted
	RunningRequests    int // admitted requests (in flight or preempted)
	MemoryUsagePercent float64
}

// Outstanding returns PendingRequests + RunningRequests.
func (s ReplicaSnapshot) Outstanding() int {
	return s.PendingRequests + s.RunningRequests
}

// Router decides which replica should handle an arriving request.
// Route returns an index into replicas.
type Router interface {
	Route(req *Request, replicas []ReplicaSnapshot) int
	Name() string
}

// Router policy names.
const (
	RouterRoundRobin       = "round-robin"
	RouterRandom           = "random"
	RouterLeastOutstanding = "least-outstanding"
)

var validRouterPolicies = map[string]bool{
	"":                     true, // empty defaults to round-robin
	RouterRoundRobin:       true,
	RouterRandom:           true,
	RouterLeastOutstanding: true,
}

// IsValidRouterPolicy returns true if name is a recognized router policy.
func IsValidRouterPolicy(name string) bool {
	return validRouterPolicies[name]
}

// ValidRouterPolicies returns the sorted list of accepted policy names.
func ValidRouterPolicies() []string {
	names := make([]string, 0, len(validRouterPolicies))
	for name := range validRouterPolicies {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewRouter creates a router for the named policy. rng is only consumed by
// the random policy and may be nil otherwise.
func NewRouter(policy string, rng *rand.Rand) (Router, error) {
	switch policy {
	case "", RouterRoundRobin:
		return &RoundRobinRouter{}, nil
	case RouterRandom:
		if rng == nil {
			return nil, fmt.Errorf("router %q requires an RNG", policy)
		}
		return &RandomRouter{rng: rng}, nil
	case RouterLeastOutstanding:
		return &LeastOutstandingRouter{}, nil
	default:
		return nil, fmt.Errorf("unknown router policy %q; valid: %v", policy, ValidRouterPolicies())
	}
}

// RoundRobinRouter routes requests in round-robin order across replicas.
type RoundRobinRouter struct {
	counter int
}

func (rr *RoundRobinRouter) Name() string { return RouterRoundRobin }

// Route implements Router for RoundRobinRouter.
func (rr *RoundRobinRouter) Route(_ *Request, replicas []ReplicaSnapshot) int {
	if len(replicas) == 0 {
		panic("RoundRobinRouter.Route: empty snapshots")
	}
	target := rr.counter % len(replicas)
	rr.counter++
	return target
}

// RandomRouter routes requests uniformly at random.
type RandomRouter struct {
	rng *rand.Rand
}

func (r *RandomRouter) Name() string { return RouterRandom }

// Route implements Router for RandomRouter.
func (r *RandomRouter) Route(_ *Request, replicas []ReplicaSnapshot) int {
	if len(replicas) == 0 {
		panic("RandomRouter.Route: empty snapshots")
	}
	return r.rng.Intn(len(replicas))
}

// LeastOutstandingRouter routes to the replica with the fewest pending plus
// running requests. Ties are broken by lowest index.
type LeastOutstandingRouter struct{}

func (lo *LeastOutstandingRouter) Name() string { return RouterLeastOutstanding }

// Route implements Router for LeastOutstandingRouter.
func (lo *LeastOutstandingRouter) Route(_ *Request, replicas []ReplicaSnapshot) int {
	if len(replicas) == 0 {
		panic("LeastOutstandingRouter.Route: empty snapshots")
	}
	target := 0
	minLoad := replicas[0].Outstanding()
	for i := 1; i < len(replicas); i++ {
		if load := replicas[i].Outstanding(); load < minLoad {
			minLoad = load
			target = i
		}
	}
	return target
}
