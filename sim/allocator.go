// sim/allocator.go
package sim

import (
	"fmt"
)

// BlockAllocator tracks a replica's memory blocks. The replica scheduler
// consults it before admitting a new sequence and frees a request's blocks
// once the request completes. Resident (preempted) requests keep theirs.
type BlockAllocator interface {
	// CanAllocate reports whether blocks free blocks are available.
	CanAllocate(blocks int64) bool
	// Allocate reserves blocks for requestID. Callers MUST check CanAllocate
	// first; insufficient capacity is an invariant violation.
	Allocate(requestID string, blocks int64)
	// Free releases every block held by requestID.
	Free(requestID string)
	UsedBlocks() int64
	TotalBlocks() int64
}

// BlockManager is a counter-based BlockAllocator: it remembers how many
// blocks each request holds, not which ones.
type BlockManager struct {
	totalBlocks int64
	usedBlocks  int64
	peakBlocks  int64
	allocations map[string]int64 // RequestID -> blocks held
}

// NewBlockManager creates a BlockManager with totalBlocks of capacity.
func NewBlockManager(totalBlocks int64) *BlockManager {
	if totalBlocks <= 0 {
		panic(fmt.Sprintf("NewBlockManager: totalBlocks must be > 0, got %d", totalBlocks))
	}
	return &BlockManager{
		totalBlocks: totalBlocks,
		allocations: make(map[string]int64),
	}
}

func (m *BlockManager) CanAllocate(blocks int64) bool {
	return m.totalBlocks-m.usedBlocks >= blocks
}

func (m *BlockManager) Allocate(requestID string, blocks int64) {
	if blocks <= 0 {
		violateFor(InvariantAllocation, -1, requestID, "allocate %d blocks", blocks)
	}
	if !m.CanAllocate(blocks) {
		violateFor(InvariantAllocation, -1, requestID,
			"allocate %d blocks with only %d free", blocks, m.totalBlocks-m.usedBlocks)
	}
	if _, held := m.allocations[requestID]; held {
		violateFor(InvariantAllocation, -1, requestID, "request already holds blocks")
	}
	m.allocations[requestID] = blocks
	m.usedBlocks += blocks
	m.peakBlocks = max(m.peakBlocks, m.usedBlocks)
}

func (m *BlockManager) Free(requestID string) {
	blocks, held := m.allocations[requestID]
	if !held {
		violateFor(InvariantAllocation, -1, requestID, "free of request holding no blocks")
	}
	delete(m.allocations, requestID)
	m.usedBlocks -= blocks
}

func (m *BlockManager) UsedBlocks() int64  { return m.usedBlocks }
func (m *BlockManager) TotalBlocks() int64 { return m.totalBlocks }

// PeakBlocks returns the highest simultaneous block usage observed.
func (m *BlockManager) PeakBlocks() int64 { return m.peakBlocks }

// NumAllocations returns how many requests currently hold blocks.
func (m *BlockManager) NumAllocations() int { return len(m.allocations) }

// memoryUsagePercent returns used/total as a percentage.
func memoryUsagePercent(a BlockAllocator) float64 {
	total := a.TotalBlocks()
	if total <= 0 {
		return 0
	}
	return float64(a.UsedBlocks()) * 100 / float64(total)
}
