package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkloadSpec is the top-level workload configuration.
// Loaded from YAML via LoadWorkloadSpec(path).
type WorkloadSpec struct {
	Seed          int64        `yaml:"seed"`
	AggregateRate float64      `yaml:"aggregate_rate"`         // requests per second across all clients
	Horizon       int64        `yaml:"horizon,omitempty"`      // last arrival tick (exclusive); 0 = no limit
	NumRequests   int64        `yaml:"num_requests,omitempty"` // 0 = unlimited (use horizon only)
	Clients       []ClientSpec `yaml:"clients"`
}

// ClientSpec defines one request stream.
type ClientSpec struct {
	ID           string      `yaml:"id"`
	RateFraction float64     `yaml:"rate_fraction"`
	Arrival      ArrivalSpec `yaml:"arrival"`
	PrefillDist  DistSpec    `yaml:"prefill_distribution"`
	DecodeDist   DistSpec    `yaml:"decode_distribution"`
}

// ArrivalSpec configures the inter-arrival time process.
type ArrivalSpec struct {
	Process string   `yaml:"process"`
	CV      *float64 `yaml:"cv,omitempty"`
}

// DistSpec parameterizes a token length distribution.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
	PDF    map[int64]float64  `yaml:"pdf,omitempty"` // empirical only: token count -> probability
}

var (
	validArrivalProcesses = map[string]bool{
		"poisson": true, "gamma": true, "weibull": true, "constant": true,
	}
	validDistTypes = map[string]bool{
		"gaussian": true, "exponential": true, "empirical": true, "constant": true,
	}
)

// LoadWorkloadSpec reads and parses a YAML workload specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkloadSpec(path string) (*WorkloadSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	return ParseWorkloadSpec(data)
}

// ParseWorkloadSpec strictly decodes a YAML workload specification.
func ParseWorkloadSpec(data []byte) (*WorkloadSpec, error) {
	var spec WorkloadSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	return &spec, nil
}

// Validate checks that all fields in the spec are valid.
func (s *WorkloadSpec) Validate() error {
	if err := validateFinitePositive("aggregate_rate", s.AggregateRate); err != nil {
		return err
	}
	if s.Horizon < 0 || s.NumRequests < 0 {
		return fmt.Errorf("horizon and num_requests must be non-negative")
	}
	if s.Horizon == 0 && s.NumRequests == 0 {
		return fmt.Errorf("one of horizon or num_requests must bound the workload")
	}
	if len(s.Clients) == 0 {
		return fmt.Errorf("at least one client required")
	}
	for i := range s.Clients {
		if err := validateClient(&s.Clients[i], i); err != nil {
			return err
		}
	}
	return nil
}

func validateClient(c *ClientSpec, idx int) error {
	prefix := fmt.Sprintf("client[%d]", idx)
	if err := validateFinitePositive(prefix+".rate_fraction", c.RateFraction); err != nil {
		return err
	}
	if !validArrivalProcesses[c.Arrival.Process] {
		return fmt.Errorf("%s: unknown arrival process %q; valid: poisson, gamma, weibull, constant", prefix, c.Arrival.Process)
	}
	if c.Arrival.CV != nil {
		if err := validateFinitePositive(prefix+".cv", *c.Arrival.CV); err != nil {
			return err
		}
		if c.Arrival.Process == "weibull" && (*c.Arrival.CV < 0.01 || *c.Arrival.CV > 10.4) {
			return fmt.Errorf("%s: weibull CV must be in [0.01, 10.4], got %f", prefix, *c.Arrival.CV)
		}
	}
	if err := validateDistSpec(prefix+".prefill_distribution", &c.PrefillDist); err != nil {
		return err
	}
	return validateDistSpec(prefix+".decode_distribution", &c.DecodeDist)
}

func validateDistSpec(prefix string, d *DistSpec) error {
	if !validDistTypes[d.Type] {
		return fmt.Errorf("%s: unknown distribution type %q; valid: gaussian, exponential, empirical, constant", prefix, d.Type)
	}
	for name, val := range d.Params {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s.params.%s must be a finite number, got %f", prefix, name, val)
		}
	}
	if _, err := NewLengthSampler(*d); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}
