package trace

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents records every dispatched event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects event records during a simulation.
type SimulationTrace struct {
	RunID  string        `yaml:"run_id"`
	Level  TraceLevel    `yaml:"level"`
	Events []EventRecord `yaml:"events"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(runID string, level TraceLevel) *SimulationTrace {
	if level == "" {
		level = TraceLevelNone
	}
	return &SimulationTrace{
		RunID:  runID,
		Level:  level,
		Events: make([]EventRecord, 0),
	}
}

// Enabled reports whether records should be collected.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Level == TraceLevelEvents
}

// Record appends an event record. No-op when tracing is disabled.
func (st *SimulationTrace) Record(record EventRecord) {
	if !st.Enabled() {
		return
	}
	st.Events = append(st.Events, record)
}
