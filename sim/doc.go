// Package sim provides the discrete-event kernel for simulating LLM inference
// replicas without running real inference.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - request.go, batch.go: token accounting for requests and the batches they ride in
//   - replica_scheduler.go: chunked-prefill batch composition for one replica
//   - event.go: the closed set of events and the successors each one produces
//   - simulator.go: the (time, sequence) ordered event loop
//
// # Architecture
//
// One Simulator owns a single EventQueue shared by every replica. Each
// replica has its own ReplicaScheduler (two FIFO queues plus a BlockAllocator).
// The causal loop per replica is:
//
//	ReplicaSchedule -> BatchEnd(t + duration) -> RequestEnd* + ReplicaSchedule(t)
//
// RequestArrival re-arms an idle replica by emitting a ReplicaSchedule for the
// replica the Router picked.
//
// # Key Interfaces
//
//   - BlockAllocator: per-replica memory capacity (can allocate / allocate / free)
//   - LatencyModel: execution duration of a composed batch
//   - MetricsSink: observational batch-end and request-end notifications
//   - Router: picks the replica for an arriving request
//
// Sub-packages:
//   - sim/workload/: arrival and length sampling, YAML workload specs, CSV replay
//   - sim/trace/: dependency-free event trace records
//   - sim/promexport/: Prometheus MetricsSink
//   - sim/analytic/: queueing-model baseline for cross-checking simulated results
package sim
