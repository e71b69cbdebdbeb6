// Defines the Request struct that models an individual inference request in the simulation.
// Tracks prefill/decode token accounting and the timestamps needed for TTFT and E2E latency.

package sim

import (
	"fmt"
)

// RequestState represents the lifecycle state of a request.
type RequestState string

const (
	StateQueued    RequestState = "queued"    // arrived, never admitted to a batch
	StateRunning   RequestState = "running"   // member of the in-flight batch
	StatePreempted RequestState = "preempted" // resident (memory held) but not batched
	StateCompleted RequestState = "completed"
)

// Request models a single request's lifecycle in the simulation.
// The shape (prefill and decode lengths) is fixed at creation; only the
// processed-token counter moves, and it only moves forward.
type Request struct {
	ID string // Unique identifier for the request

	ArrivalTime      int64 // Tick at which the request enters the system
	NumPrefillTokens int64 // Prompt length, processed in chunks
	NumDecodeTokens  int64 // Output length, one token per decode step

	State     RequestState
	ReplicaID int // Replica the request was routed to (-1 until routed)

	Scheduled            bool  // Whether the request has ever been admitted to a batch
	ScheduledTime        int64 // Tick of first admission
	PrefillCompletedTime int64 // Tick of the batch end that finished the prefill
	CompletedTime        int64 // Tick of the batch end that produced the last token
	NumScheduleRounds    int   // Number of batches this request was a member of

	numProcessedTokens int64
	prefillComplete    bool
	completed          bool
}

// NewRequest creates a queued request. Prefill and decode lengths are floored
// at 1: a request always has a prompt and always emits at least one token.
func NewRequest(id string, arrivalTime, numPrefillTokens, numDecodeTokens int64) *Request {
	return &Request{
		ID:               id,
		ArrivalTime:      arrivalTime,
		NumPrefillTokens: max(numPrefillTokens, 1),
		NumDecodeTokens:  max(numDecodeTokens, 1),
		State:            StateQueued,
		ReplicaID:        -1,
	}
}

// NumProcessedTokens returns prefill tokens processed plus output tokens generated so far.
func (r *Request) NumProcessedTokens() int64 { return r.numProcessedTokens }

// TotalTokens is the number of tokens the request needs before it can leave the system.
func (r *Request) TotalTokens() int64 { return r.NumPrefillTokens + r.NumDecodeTokens }

// RemainingPrefillTokens returns how many prompt tokens are still unprocessed.
func (r *Request) RemainingPrefillTokens() int64 {
	return max(r.NumPrefillTokens-r.numProcessedTokens, 0)
}

// IsPrefillComplete reports whether the whole prompt has been processed.
func (r *Request) IsPrefillComplete() bool { return r.prefillComplete }

// Completed reports whether the request produced its full output.
func (r *Request) Completed() bool { return r.completed }

// Advance applies numTokens of batch progress at tick now.
//
// The batch that finishes the prefill also emits the first output token, so
// the counter jumps by one extra token at that boundary. The request becomes
// completed exactly when the counter reaches TotalTokens.
func (r *Request) Advance(now int64, numTokens int64) {
	if r.completed {
		violateFor(InvariantTokenOverflow, r.ReplicaID, r.ID, "advance on completed request")
	}
	if numTokens < 1 {
		violateFor(InvariantBatchShape, r.ReplicaID, r.ID, "advance by %d tokens", numTokens)
	}

	r.numProcessedTokens += numTokens
	if !r.prefillComplete && r.numProcessedTokens >= r.NumPrefillTokens {
		r.prefillComplete = true
		r.PrefillCompletedTime = now
		r.numProcessedTokens++
	}
	if r.numProcessedTokens > r.TotalTokens() {
		violateFor(InvariantTokenOverflow, r.ReplicaID, r.ID,
			"processed %d tokens, total is %d", r.numProcessedTokens, r.TotalTokens())
	}
	if r.numProcessedTokens == r.TotalTokens() {
		r.completed = true
		r.CompletedTime = now
		r.State = StateCompleted
	}
}

// This method returns a human-readable string representation of a Request.
func (r Request) String() string {
	return fmt.Sprintf("Request: (ID: %s, State: %s, Processed: %d/%d, ArrivalTime: %d)",
		r.ID, r.State, r.numProcessedTokens, r.TotalTokens(), r.ArrivalTime)
}
