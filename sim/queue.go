// Implements RequestQueue, the ordered container behind a replica scheduler's
// new-arrival and preempted queues.

package sim

import "strings"

// RequestQueue is a double-ended FIFO of requests. Requests leave from the
// front; new work joins at the back; requests skipped during one scheduling
// pass are spliced back at the front so they keep their priority.
type RequestQueue struct {
	queue []*Request
}

// PushBack adds a request to the back of the queue.
func (q *RequestQueue) PushBack(r *Request) {
	if r == nil {
		panic("PushBack: req must not be nil")
	}
	q.queue = append(q.queue, r)
}

// PopFront removes and returns the request at the front.
// Returns nil if the queue is empty.
func (q *RequestQueue) PopFront() *Request {
	if len(q.queue) == 0 {
		return nil
	}
	r := q.queue[0]
	q.queue[0] = nil
	q.queue = q.queue[1:]
	return r
}

// Peek returns the request at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (q *RequestQueue) Peek() *Request {
	if len(q.queue) == 0 {
		return nil
	}
	return q.queue[0]
}

// SpliceFront inserts reqs at the head of the queue, preserving their order:
// after the call the queue reads reqs[0], reqs[1], ..., then the old contents.
func (q *RequestQueue) SpliceFront(reqs []*Request) {
	if len(reqs) == 0 {
		return
	}
	merged := make([]*Request, 0, len(reqs)+len(q.queue))
	merged = append(merged, reqs...)
	q.queue = append(merged, q.queue...)
}

// Len returns the number of requests in the queue.
func (q *RequestQueue) Len() int {
	return len(q.queue)
}

// Items returns the queue contents for iteration.
// The returned slice is the queue's internal storage; callers MUST NOT modify it.
func (q *RequestQueue) Items() []*Request {
	return q.queue
}

// Contains reports whether a request with the given ID is queued.
func (q *RequestQueue) Contains(id string) bool {
	for _, r := range q.queue {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (q *RequestQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, r := range q.queue {
		sb.WriteString(r.ID)
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
