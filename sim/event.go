package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EventKind names an event variant.
type EventKind string

const (
	EventRequestArrival  EventKind = "RequestArrival"
	EventReplicaSchedule EventKind = "ReplicaSchedule"
	EventBatchEnd        EventKind = "BatchEnd"
	EventRequestEnd      EventKind = "RequestEnd"
)

// Event is a timestamped node in the causal graph. Handling an event returns
// its successors, each timestamped no earlier than the event itself.
// The set of variants is closed: only this package can implement Event.
type Event interface {
	Timestamp() int64
	Kind() EventKind
	Handle(ctx *EventContext) []Event

	// subject returns the replica (-1 if none) and request ("" if none) the
	// event concerns, for traces and invariant reports.
	subject() (replicaID int, requestID string)
}

// ReplicaLookup resolves replica schedulers by id.
type ReplicaLookup interface {
	Replica(id int) *ReplicaScheduler
	Snapshots() []ReplicaSnapshot
}

// EventContext carries the capabilities an event handler may use. Events
// never hold references to these collaborators themselves.
type EventContext struct {
	Replicas ReplicaLookup
	Router   Router
	Latency  LatencyModel
	Metrics  MetricsSink
}

// RequestArrivalEvent represents the arrival of a new inference request into the system.
type RequestArrivalEvent struct {
	time    int64
	Request *Request
}

// NewRequestArrivalEvent creates an arrival event at tick time.
func NewRequestArrivalEvent(time int64, req *Request) *RequestArrivalEvent {
	return &RequestArrivalEvent{time: time, Request: req}
}

func (e *RequestArrivalEvent) Timestamp() int64       { return e.time }
func (e *RequestArrivalEvent) Kind() EventKind        { return EventRequestArrival }
func (e *RequestArrivalEvent) subject() (int, string) { return e.Request.ReplicaID, e.Request.ID }

// Handle routes the request and re-arms the chosen replica: an idle replica
// only schedules again when something asks it to.
func (e *RequestArrivalEvent) Handle(ctx *EventContext) []Event {
	snapshots := ctx.Replicas.Snapshots()
	target := ctx.Router.Route(e.Request, snapshots)
	if target < 0 || target >= len(snapshots) {
		violateFor(InvariantRouting, target, e.Request.ID, "router picked replica %d of %d", target, len(snapshots))
	}
	logrus.Infof("[tick %07d] << Arrival: %s -> replica %d", e.time, e.Request.ID, target)
	ctx.Replicas.Replica(target).AddRequest(e.Request)
	return []Event{NewReplicaScheduleEvent(e.time, target)}
}

// ReplicaScheduleEvent asks one replica to compose its next batch.
type ReplicaScheduleEvent struct {
	time      int64
	ReplicaID int
}

// NewReplicaScheduleEvent creates a schedule event for replicaID at tick time.
func NewReplicaScheduleEvent(time int64, replicaID int) *ReplicaScheduleEvent {
	return &ReplicaScheduleEvent{time: time, ReplicaID: replicaID}
}

func (e *ReplicaScheduleEvent) Timestamp() int64       { return e.time }
func (e *ReplicaScheduleEvent) Kind() EventKind        { return EventReplicaSchedule }
func (e *ReplicaScheduleEvent) subject() (int, string) { return e.ReplicaID, "" }

// Handle produces exactly one BatchEnd when a batch is formed, nothing otherwise.
func (e *ReplicaScheduleEvent) Handle(ctx *EventContext) []Event {
	batch := ctx.Replicas.Replica(e.ReplicaID).Schedule(e.time)
	if batch == nil {
		return nil
	}
	duration := ctx.Latency.BatchExecutionTime(batch)
	logrus.Infof("[tick %07d] replica %d: batch %d (%d requests) runs for %d ticks",
		e.time, e.ReplicaID, batch.ID, batch.Size(), duration)
	return []Event{NewBatchEndEvent(e.time+duration, e.ReplicaID, batch)}
}

// BatchEndEvent finalizes a batch once its execution time has elapsed.
type BatchEndEvent struct {
	time      int64
	ReplicaID int
	Batch     *Batch
}

// NewBatchEndEvent creates the batch end for batch on replicaID at tick time.
func NewBatchEndEvent(time int64, replicaID int, batch *Batch) *BatchEndEvent {
	return &BatchEndEvent{time: time, ReplicaID: replicaID, Batch: batch}
}

func (e *BatchEndEvent) Timestamp() int64       { return e.time }
func (e *BatchEndEvent) Kind() EventKind        { return EventBatchEnd }
func (e *BatchEndEvent) subject() (int, string) { return e.ReplicaID, "" }

// Handle returns one RequestEnd per completed member, in batch order,
// followed by exactly one ReplicaSchedule for the same replica.
func (e *BatchEndEvent) Handle(ctx *EventContext) []Event {
	e.Batch.OnBatchEnd(e.time)
	replica := ctx.Replicas.Replica(e.ReplicaID)
	replica.OnBatchEnd(e.Batch)
	ctx.Metrics.OnBatchEnd(e.time, e.Batch, e.ReplicaID, replica.MemoryUsagePercent())

	completed := e.Batch.CompletedRequests()
	successors := make([]Event, 0, len(completed)+1)
	for _, req := range completed {
		successors = append(successors, NewRequestEndEvent(e.time, req))
	}
	return append(successors, NewReplicaScheduleEvent(e.time, e.ReplicaID))
}

// RequestEndEvent records a request leaving the system. Terminal.
type RequestEndEvent struct {
	time    int64
	Request *Request
}

// NewRequestEndEvent creates the departure of req at tick time.
func NewRequestEndEvent(time int64, req *Request) *RequestEndEvent {
	return &RequestEndEvent{time: time, Request: req}
}

func (e *RequestEndEvent) Timestamp() int64       { return e.time }
func (e *RequestEndEvent) Kind() EventKind        { return EventRequestEnd }
func (e *RequestEndEvent) subject() (int, string) { return e.Request.ReplicaID, e.Request.ID }

func (e *RequestEndEvent) Handle(ctx *EventContext) []Event {
	logrus.Infof("[tick %07d] >> RequestEnd: %s (e2e %d ticks)", e.time, e.Request.ID, e.time-e.Request.ArrivalTime)
	ctx.Metrics.OnRequestEnd(e.time, e.Request)
	return nil
}

func describeEvent(ev Event) string {
	replicaID, requestID := ev.subject()
	return fmt.Sprintf("%s@%d(replica=%d request=%q)", ev.Kind(), ev.Timestamp(), replicaID, requestID)
}
