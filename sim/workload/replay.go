package workload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/inference-sim/replica-sim/sim"
)

// replayColumns is the expected CSV header of a replay trace.
var replayColumns = []string{"arrival_time_us", "num_prefill_tokens", "num_decode_tokens"}

// LoadReplayTrace reads a CSV trace of recorded requests from path.
func LoadReplayTrace(path string) ([]*sim.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay trace: %w", err)
	}
	defer func() { _ = file.Close() }()
	return ReadReplayTrace(file)
}

// ReadReplayTrace parses CSV rows of arrival_time_us, num_prefill_tokens and
// num_decode_tokens. Requests are returned sorted by arrival with IDs in
// that order.
func ReadReplayTrace(r io.Reader) ([]*sim.Request, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(replayColumns)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i, col := range replayColumns {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("CSV column %d is %q, expected %q", i, header[i], col)
		}
	}

	var requests []*sim.Request
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		values := make([]int64, len(row))
		for i, field := range row {
			v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing %s: %w", line, replayColumns[i], err)
			}
			if v < 0 {
				return nil, fmt.Errorf("line %d: %s must be non-negative, got %d", line, replayColumns[i], v)
			}
			values[i] = v
		}
		requests = append(requests, sim.NewRequest("", values[0], values[1], values[2]))
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("empty trace")
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].ArrivalTime < requests[j].ArrivalTime
	})
	for i, req := range requests {
		req.ID = fmt.Sprintf("request_%d", i)
	}
	return requests, nil
}
