package sim

import (
	"github.com/sirupsen/logrus"
)

// ReplicaScheduler composes batches for one replica using chunked prefills.
//
// It owns two FIFOs: requestQueue holds requests that have arrived but never
// been admitted, preemptedRequests holds resident requests (memory already
// allocated) that are waiting for their next batch. A request is in at most
// one of them, and in neither while it rides the in-flight batch.
//
// Thread-safety: NOT thread-safe. Driven from the single-threaded event loop.
type ReplicaScheduler struct {
	id        int
	config    SchedulerConfig
	allocator BlockAllocator

	requestQueue      RequestQueue
	preemptedRequests RequestQueue
	enqueued          map[string]bool // IDs currently in either queue

	inFlight    *Batch
	nextBatchID int64
}

// NewReplicaScheduler creates the scheduler for replica id. config must have
// passed Validate.
func NewReplicaScheduler(id int, config SchedulerConfig, allocator BlockAllocator) *ReplicaScheduler {
	if allocator == nil {
		panic("NewReplicaScheduler: allocator must not be nil")
	}
	return &ReplicaScheduler{
		id:        id,
		config:    config,
		allocator: allocator,
		enqueued:  make(map[string]bool),
	}
}

// ID returns the replica id.
func (rs *ReplicaScheduler) ID() int { return rs.id }

// Allocator returns the replica's block allocator.
func (rs *ReplicaScheduler) Allocator() BlockAllocator { return rs.allocator }

// AddRequest appends a newly routed request to the new-arrival queue.
func (rs *ReplicaScheduler) AddRequest(req *Request) {
	if req.Completed() {
		violateFor(InvariantQueueExclusive, rs.id, req.ID, "enqueue of completed request")
	}
	if rs.enqueued[req.ID] || rs.isInFlight(req) {
		violateFor(InvariantQueueExclusive, rs.id, req.ID, "request is already held by this replica")
	}
	req.ReplicaID = rs.id
	req.State = StateQueued
	rs.requestQueue.PushBack(req)
	rs.enqueued[req.ID] = true
}

// NextTokens returns how many tokens req should process in the batch being
// composed, given whether the batch already carries a prefill and how many
// tokens it holds so far. Zero means req is rejected for this batch.
func (rs *ReplicaScheduler) NextTokens(req *Request, batchHasPrefill bool, numBatchTokens int64) int64 {
	if req.Completed() {
		violateFor(InvariantCompletedRequest, rs.id, req.ID, "request already produced its full output")
	}

	if req.IsPrefillComplete() {
		return 1
	}

	chunk := rs.config.ChunkSize
	next := min(req.RemainingPrefillTokens(), chunk)

	// the first prefill in a batch always gets its full chunk
	if !batchHasPrefill {
		return next
	}

	// Further prefills only fill real slack: packing a sliver of a prompt
	// spends a batch slot without moving that request forward much.
	if rs.config.EnableRollingPrefills &&
		float64(numBatchTokens) < float64(chunk)*(1-rs.config.PrefillFittingTolerance) {
		return min(next, chunk-numBatchTokens)
	}
	return 0
}

// Schedule composes the next batch for this replica at tick now.
// Returns nil when a batch is already in flight or when nothing could be
// admitted; neither case is an error.
func (rs *ReplicaScheduler) Schedule(now int64) *Batch {
	if rs.inFlight != nil {
		return nil
	}

	var (
		requests        []*Request
		numTokens       []int64
		skipped         []*Request
		containsPrefill bool
		numBatchTokens  int64
	)
	maxSize := rs.config.MaxBatchSize

	// Resident requests first: their memory is already committed, and one
	// rejected member must not block the ones behind it.
	for rs.preemptedRequests.Len() > 0 {
		if len(requests) == maxSize {
			break
		}
		req := rs.preemptedRequests.PopFront()
		next := rs.NextTokens(req, containsPrefill, numBatchTokens)
		if next == 0 {
			skipped = append(skipped, req)
			continue
		}
		if !req.IsPrefillComplete() {
			containsPrefill = true
		}
		delete(rs.enqueued, req.ID)
		numBatchTokens += next
		requests = append(requests, req)
		numTokens = append(numTokens, next)
	}
	rs.preemptedRequests.SpliceFront(skipped)

	// New arrivals keep strict FIFO order: the first one that cannot be
	// admitted stops the pass.
	for rs.requestQueue.Len() > 0 {
		if len(requests) == maxSize {
			break
		}
		if !rs.allocator.CanAllocate(rs.config.MaxBlocksPerSequence) {
			logrus.Debugf("[tick %07d] replica %d: no free blocks for %s, %d arrivals waiting",
				now, rs.id, rs.requestQueue.Peek().ID, rs.requestQueue.Len())
			break
		}
		req := rs.requestQueue.Peek()
		next := rs.NextTokens(req, containsPrefill, numBatchTokens)
		if next == 0 {
			break
		}
		rs.requestQueue.PopFront()
		delete(rs.enqueued, req.ID)
		rs.allocator.Allocate(req.ID, rs.config.MaxBlocksPerSequence)

		// every new request brings a prefill
		containsPrefill = true
		numBatchTokens += next
		requests = append(requests, req)
		numTokens = append(numTokens, next)
	}

	if len(requests) == 0 {
		return nil
	}

	for _, req := range requests {
		req.State = StateRunning
		req.NumScheduleRounds++
		if !req.Scheduled {
			req.Scheduled = true
			req.ScheduledTime = now
		}
	}
	batch := NewBatch(rs.nextBatchID, rs.id, requests, numTokens)
	batch.ScheduledTime = now
	rs.nextBatchID++
	rs.inFlight = batch

	logrus.Debugf("[tick %07d] replica %d: batch %d with %d requests, %d tokens (%d prefill)",
		now, rs.id, batch.ID, batch.Size(), batch.TotalTokens(), batch.NumPrefillTokens())
	return batch
}

// OnBatchEnd releases the replica's claim on batch. Completed members give
// their blocks back; everything else stays resident and joins the back of
// preemptedRequests in batch order.
func (rs *ReplicaScheduler) OnBatchEnd(batch *Batch) {
	if batch == nil || batch != rs.inFlight {
		violateFor(InvariantBatchShape, rs.id, "", "batch end for a batch that is not in flight")
	}
	rs.inFlight = nil
	for _, req := range batch.Requests {
		if req.Completed() {
			rs.allocator.Free(req.ID)
			continue
		}
		req.State = StatePreempted
		rs.preemptedRequests.PushBack(req)
		rs.enqueued[req.ID] = true
	}
}

// MemoryUsagePercent returns the share of the replica's blocks in use.
func (rs *ReplicaScheduler) MemoryUsagePercent() float64 {
	return memoryUsagePercent(rs.allocator)
}

// NumPendingRequests returns requests waiting in either queue.
func (rs *ReplicaScheduler) NumPendingRequests() int {
	return rs.requestQueue.Len() + rs.preemptedRequests.Len()
}

// NumRunningRequests returns the size of the in-flight batch.
func (rs *ReplicaScheduler) NumRunningRequests() int {
	if rs.inFlight == nil {
		return 0
	}
	return rs.inFlight.Size()
}

// QueueDepths returns the lengths of the new-arrival and preempted queues.
func (rs *ReplicaScheduler) QueueDepths() (newArrivals, preempted int) {
	return rs.requestQueue.Len(), rs.preemptedRequests.Len()
}

// IsIdle reports whether no batch is in flight.
func (rs *ReplicaScheduler) IsIdle() bool { return rs.inFlight == nil }

// IsEmpty reports whether the replica holds no work at all.
func (rs *ReplicaScheduler) IsEmpty() bool {
	return rs.IsIdle() && rs.NumPendingRequests() == 0
}

// NumBatches returns how many batches this replica has formed.
func (rs *ReplicaScheduler) NumBatches() int64 { return rs.nextBatchID }

func (rs *ReplicaScheduler) isInFlight(req *Request) bool {
	if rs.inFlight == nil {
		return false
	}
	for _, r := range rs.inFlight.Requests {
		if r == req {
			return true
		}
	}
	return false
}

// checkQueueExclusivity panics if any request appears in more than one of
// requestQueue, preemptedRequests and the in-flight batch.
func (rs *ReplicaScheduler) checkQueueExclusivity() {
	seen := make(map[string]string)
	mark := func(where string, reqs []*Request) {
		for _, r := range reqs {
			if prev, dup := seen[r.ID]; dup {
				violateFor(InvariantQueueExclusive, rs.id, r.ID, "held by both %s and %s", prev, where)
			}
			seen[r.ID] = where
		}
	}
	mark("request queue", rs.requestQueue.Items())
	mark("preempted queue", rs.preemptedRequests.Items())
	if rs.inFlight != nil {
		mark("in-flight batch", rs.inFlight.Requests)
	}
}
