package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/replica-sim/sim/trace"
)

// StopReason says why Run returned.
type StopReason string

const (
	StopNotStarted StopReason = ""
	StopDrained    StopReason = "drained"    // event queue empty
	StopHorizon    StopReason = "horizon"    // next event lies beyond the horizon
	StopMaxEvents  StopReason = "max-events" // event budget exhausted
	StopInvariant  StopReason = "invariant"  // an invariant violation aborted the run
)

// Simulator is the discrete-event core: a clock, a time-ordered event queue
// and the replica schedulers events act upon. It is single-threaded; run
// independent simulations in separate Simulator values.
type Simulator struct {
	clock     int64
	horizon   int64
	maxEvents int64

	queue    *EventQueue
	replicas []*ReplicaScheduler
	ctx      *EventContext
	trace    *trace.SimulationTrace

	eventsProcessed int64
	current         Event // event being dispatched, for violation reports
	stopReason      StopReason
}

// NewSimulator builds the replicas, router and latency model described by
// cfg. Observations go to metrics, which must not be nil.
func NewSimulator(cfg SimConfig, metrics MetricsSink) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics sink must not be nil")
	}
	latency, err := NewLatencyModel(cfg.Latency)
	if err != nil {
		return nil, fmt.Errorf("latency model: %w", err)
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	router, err := NewRouter(cfg.Router.Policy, rng.ForSubsystem(SubsystemRouter))
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	s := &Simulator{
		horizon:   cfg.Horizon,
		maxEvents: cfg.MaxEvents,
		queue:     NewEventQueue(),
		replicas:  make([]*ReplicaScheduler, cfg.Replica.NumReplicas),
	}
	for i := range s.replicas {
		s.replicas[i] = NewReplicaScheduler(i, cfg.Scheduler, NewBlockManager(cfg.Replica.NumBlocks))
	}
	s.ctx = &EventContext{
		Replicas: s,
		Router:   router,
		Latency:  latency,
		Metrics:  metrics,
	}
	logrus.Debugf("simulator: %d replicas, router %s, chunk size %d",
		len(s.replicas), router.Name(), cfg.Scheduler.ChunkSize)
	return s, nil
}

// SetTrace enables event recording into st (nil disables).
func (s *Simulator) SetTrace(st *trace.SimulationTrace) { s.trace = st }

// SetLatencyModel replaces the cost model.
func (s *Simulator) SetLatencyModel(m LatencyModel) { s.ctx.Latency = m }

// SetRouter replaces the routing policy.
func (s *Simulator) SetRouter(r Router) { s.ctx.Router = r }

// InjectArrival seeds the arrival of req at its ArrivalTime.
func (s *Simulator) InjectArrival(req *Request) {
	s.Seed(NewRequestArrivalEvent(req.ArrivalTime, req))
}

// Seed pushes an externally created event.
func (s *Simulator) Seed(ev Event) {
	s.queue.Push(ev)
}

func (s *Simulator) Clock() int64                  { return s.clock }
func (s *Simulator) EventsProcessed() int64        { return s.eventsProcessed }
func (s *Simulator) Pending() int                  { return s.queue.Len() }
func (s *Simulator) StopReason() StopReason        { return s.stopReason }
func (s *Simulator) Replicas() []*ReplicaScheduler { return s.replicas }

// Replica returns the scheduler of replica id. An unknown id is an invariant
// violation: only the router and events produced from it name replicas.
func (s *Simulator) Replica(id int) *ReplicaScheduler {
	if id < 0 || id >= len(s.replicas) {
		violateFor(InvariantRouting, id, "", "no replica %d (have %d)", id, len(s.replicas))
	}
	return s.replicas[id]
}

// Snapshots returns the current routing view of every replica, by id.
func (s *Simulator) Snapshots() []ReplicaSnapshot {
	snapshots := make([]ReplicaSnapshot, len(s.replicas))
	for i, rs := range s.replicas {
		snapshots[i] = ReplicaSnapshot{
			ID:                 rs.ID(),
			PendingRequests:    rs.NumPendingRequests(),
			RunningRequests:    rs.NumRunningRequests(),
			MemoryUsagePercent: rs.MemoryUsagePercent(),
		}
	}
	return snapshots
}

// Step dispatches the earliest pending event and enqueues its successors.
// Returns false when the queue is empty. Invariant violations panic with
// *InvariantViolation; Run converts them to errors.
func (s *Simulator) Step() bool {
	ev, seq := s.queue.Pop()
	if ev == nil {
		return false
	}
	s.current = ev
	if ev.Timestamp() < s.clock {
		violate(InvariantClockMonotonic, "popped %s after clock reached %d", describeEvent(ev), s.clock)
	}
	s.clock = ev.Timestamp()
	logrus.Debugf("[tick %07d] Executing %s", s.clock, describeEvent(ev))

	successors := ev.Handle(s.ctx)
	for _, succ := range successors {
		if succ == nil {
			violate(InvariantEventCausality, "%s produced a nil successor", describeEvent(ev))
		}
		if succ.Timestamp() < ev.Timestamp() {
			violate(InvariantEventCausality, "%s produced %s in its past", describeEvent(ev), describeEvent(succ))
		}
	}
	s.eventsProcessed++
	s.recordTrace(seq, ev, successors)
	for _, succ := range successors {
		s.queue.Push(succ)
	}
	s.current = nil
	return true
}

// Run dispatches events until the queue drains or a budget is hit. Budgets
// are checked between pops: an event later than the horizon stays queued.
// An invariant violation stops the run at once and is returned as an
// *InvariantViolation carrying the clock and the failing event.
func (s *Simulator) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(*InvariantViolation)
			if !ok {
				panic(r)
			}
			s.annotate(v)
			s.stopReason = StopInvariant
			s.current = nil
			logrus.Errorf("[tick %07d] Simulation aborted: %v", s.clock, v)
			err = v
		}
	}()

	for {
		next := s.queue.Peek()
		if next == nil {
			s.stopReason = StopDrained
			break
		}
		if next.Timestamp() > s.horizon {
			s.stopReason = StopHorizon
			logrus.Warnf("[tick %07d] horizon %d reached with %d events pending", s.clock, s.horizon, s.queue.Len())
			break
		}
		if s.maxEvents > 0 && s.eventsProcessed >= s.maxEvents {
			s.stopReason = StopMaxEvents
			logrus.Warnf("[tick %07d] event budget %d exhausted with %d events pending", s.clock, s.maxEvents, s.queue.Len())
			break
		}
		s.Step()
	}

	s.ctx.Metrics.OnSimulationEnd(s.clock)
	logrus.Infof("[tick %07d] Simulation ended (%s) after %d events", s.clock, s.stopReason, s.eventsProcessed)
	return nil
}

// annotate fills the clock and event context a kernel panic site cannot know.
func (s *Simulator) annotate(v *InvariantViolation) {
	v.Clock = s.clock
	if s.current == nil {
		return
	}
	v.EventKind = s.current.Kind()
	replicaID, requestID := s.current.subject()
	if v.ReplicaID < 0 {
		v.ReplicaID = replicaID
	}
	if v.RequestID == "" {
		v.RequestID = requestID
	}
}

func (s *Simulator) recordTrace(seq uint64, ev Event, successors []Event) {
	if !s.trace.Enabled() {
		return
	}
	replicaID, requestID := ev.subject()
	record := trace.EventRecord{
		Seq:        seq,
		Clock:      ev.Timestamp(),
		Kind:       string(ev.Kind()),
		ReplicaID:  replicaID,
		RequestID:  requestID,
		BatchID:    -1,
		Successors: len(successors),
	}
	var batch *Batch
	switch e := ev.(type) {
	case *BatchEndEvent:
		batch = e.Batch
		record.Completed = len(batch.CompletedRequests())
	case *ReplicaScheduleEvent:
		if len(successors) == 1 {
			if be, ok := successors[0].(*BatchEndEvent); ok {
				batch = be.Batch
			}
		}
	}
	if batch != nil {
		record.BatchID = batch.ID
		record.BatchSize = batch.Size()
		record.BatchTokens = batch.TotalTokens()
	}
	s.trace.Record(record)
}
