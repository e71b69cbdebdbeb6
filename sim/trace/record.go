// Package trace provides event-trace recording for simulation runs.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// EventRecord captures one dispatched event.
type EventRecord struct {
	Seq         uint64 `yaml:"seq"`
	Clock       int64  `yaml:"clock"`
	Kind        string `yaml:"kind"`
	ReplicaID   int    `yaml:"replica_id"`
	RequestID   string `yaml:"request_id,omitempty"`
	BatchID     int64  `yaml:"batch_id"` // -1 when the event carries no batch
	BatchSize   int    `yaml:"batch_size,omitempty"`
	BatchTokens int64  `yaml:"batch_tokens,omitempty"`
	Completed   int    `yaml:"completed,omitempty"` // requests finished by a batch end
	Successors  int    `yaml:"successors"`
}
