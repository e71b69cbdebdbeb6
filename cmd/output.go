package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/replica-sim/sim/trace"
)

// traceFile is the YAML layout of --trace-output.
type traceFile struct {
	Summary *trace.TraceSummary    `yaml:"summary"`
	Trace   *trace.SimulationTrace `yaml:"trace"`
}

// writeTrace saves st with its summary as YAML.
func writeTrace(path string, st *trace.SimulationTrace) error {
	data, err := yaml.Marshal(traceFile{Summary: trace.Summarize(st), Trace: st})
	if err != nil {
		return fmt.Errorf("marshalling trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing trace to %s: %w", path, err)
	}
	logrus.Infof("Trace with %d events written to: %s", len(st.Events), path)
	return nil
}
