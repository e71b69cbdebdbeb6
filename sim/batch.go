// batch.go
//
// Defines the Batch struct which represents a group of requests processed together
// in a single forward pass on one replica.

package sim

// Batch is the unit of execution on a replica. Requests and NumTokens are
// parallel: NumTokens[i] is how many tokens Requests[i] processes in this batch.
type Batch struct {
	ID            int64
	ReplicaID     int
	Requests      []*Request
	NumTokens     []int64
	ScheduledTime int64
	CompletedTime int64

	numPrefillTokens   int64
	numDecodeTokens    int64
	numPrefillRequests int
	completedRequests  []*Request
	ended              bool
}

// NewBatch creates a batch. Prefill/decode token totals are classified from
// member state at formation time.
// Panics if the two sequences differ in length or any count is below 1.
func NewBatch(id int64, replicaID int, requests []*Request, numTokens []int64) *Batch {
	if len(requests) != len(numTokens) {
		violateFor(InvariantBatchShape, replicaID, "",
			"batch %d has %d requests but %d token counts", id, len(requests), len(numTokens))
	}
	b := &Batch{
		ID:        id,
		ReplicaID: replicaID,
		Requests:  requests,
		NumTokens: numTokens,
	}
	for i, req := range requests {
		n := numTokens[i]
		if n < 1 {
			violateFor(InvariantBatchShape, replicaID, req.ID, "batch %d allots %d tokens", id, n)
		}
		if req.IsPrefillComplete() {
			b.numDecodeTokens += n
		} else {
			b.numPrefillTokens += n
			b.numPrefillRequests++
		}
	}
	return b
}

// Size returns the number of member requests.
func (b *Batch) Size() int { return len(b.Requests) }

// TotalTokens returns the sum of all allotted token counts.
func (b *Batch) TotalTokens() int64 { return b.numPrefillTokens + b.numDecodeTokens }

// NumPrefillTokens returns tokens allotted to members still in prefill.
func (b *Batch) NumPrefillTokens() int64 { return b.numPrefillTokens }

// NumDecodeTokens returns tokens allotted to decoding members.
func (b *Batch) NumDecodeTokens() int64 { return b.numDecodeTokens }

// NumPrefillRequests returns how many members were in prefill at formation.
func (b *Batch) NumPrefillRequests() int { return b.numPrefillRequests }

// CompletedRequests returns the members this batch pushed to completion,
// in batch order. Empty until OnBatchEnd runs.
func (b *Batch) CompletedRequests() []*Request { return b.completedRequests }

// Ended reports whether OnBatchEnd has run.
func (b *Batch) Ended() bool { return b.ended }

// OnBatchEnd advances every member by its allotted count and records the
// members that completed.
func (b *Batch) OnBatchEnd(now int64) {
	if b.ended {
		violateFor(InvariantBatchEndedTwice, b.ReplicaID, "", "batch %d", b.ID)
	}
	b.ended = true
	b.CompletedTime = now
	for i, req := range b.Requests {
		req.Advance(now, b.NumTokens[i])
		if req.Completed() {
			b.completedRequests = append(b.completedRequests, req)
		}
	}
}
