package sim

import "container/heap"

// eventEntry wraps an Event with its insertion sequence number, the
// tie-breaker for events sharing a timestamp.
type eventEntry struct {
	event Event
	seq   uint64
}

// eventHeap is a min-heap ordered by (Timestamp, seq).
// Implements heap.Interface.
type eventHeap []eventEntry

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].event.Timestamp() != h[j].event.Timestamp() {
		return h[i].event.Timestamp() < h[j].event.Timestamp()
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(eventEntry))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = eventEntry{}
	*h = old[:n-1]
	return item
}

// EventQueue is the simulation's single time-ordered queue. Events with equal
// timestamps pop in insertion order, which makes replay deterministic.
// The sequence counter belongs to the queue, so independent simulations
// never share ordering state.
type EventQueue struct {
	h       eventHeap
	nextSeq uint64
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{h: make(eventHeap, 0)}
}

// Push schedules ev and returns the sequence number it was assigned.
func (q *EventQueue) Push(ev Event) uint64 {
	seq := q.nextSeq
	q.nextSeq++
	heap.Push(&q.h, eventEntry{event: ev, seq: seq})
	return seq
}

// Pop removes and returns the earliest event and its sequence number.
// Returns nil if the queue is empty.
func (q *EventQueue) Pop() (Event, uint64) {
	if len(q.h) == 0 {
		return nil, 0
	}
	entry := heap.Pop(&q.h).(eventEntry)
	return entry.event, entry.seq
}

// Peek returns the earliest event without removing it, or nil.
func (q *EventQueue) Peek() Event {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0].event
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int { return len(q.h) }
