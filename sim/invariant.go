package sim

import (
	"fmt"
	"strings"
)

// Invariant names reported by InvariantViolation.
const (
	InvariantCompletedRequest = "next-tokens-on-completed-request"
	InvariantTokenOverflow    = "processed-tokens-overflow"
	InvariantBatchShape       = "batch-shape"
	InvariantBatchEndedTwice  = "batch-ended-twice"
	InvariantClockMonotonic   = "clock-monotonic"
	InvariantEventCausality   = "event-causality"
	InvariantAllocation       = "block-allocation"
	InvariantQueueExclusive   = "queue-exclusivity"
	InvariantRouting          = "routing-target"
)

// InvariantViolation reports a defect in scheduler or engine logic.
// The kernel panics with it; Simulator.Run recovers it, fills in the clock
// and event context, and returns it as an error.
type InvariantViolation struct {
	Invariant string
	Clock     int64
	EventKind EventKind
	ReplicaID int // -1 when not tied to a replica
	RequestID string
	Detail    string
}

func (v *InvariantViolation) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invariant %q violated at tick %d", v.Invariant, v.Clock)
	if v.EventKind != "" {
		fmt.Fprintf(&sb, " while handling %s", v.EventKind)
	}
	if v.ReplicaID >= 0 {
		fmt.Fprintf(&sb, " (replica %d)", v.ReplicaID)
	}
	if v.RequestID != "" {
		fmt.Fprintf(&sb, " (request %s)", v.RequestID)
	}
	if v.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(v.Detail)
	}
	return sb.String()
}

func violate(invariant string, format string, args ...any) {
	panic(&InvariantViolation{
		Invariant: invariant,
		ReplicaID: -1,
		Detail:    fmt.Sprintf(format, args...),
	})
}

func violateFor(invariant string, replicaID int, requestID string, format string, args ...any) {
	panic(&InvariantViolation{
		Invariant: invariant,
		ReplicaID: replicaID,
		RequestID: requestID,
		Detail:    fmt.Sprintf(format, args...),
	})
}
