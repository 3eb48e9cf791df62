package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMemoryBudgetExceeded is returned when a texture allocation would
// exceed the device's memory budget. State textures cannot be evicted, so
// the allocation fails instead.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// DefaultMemoryBudgetMB is the default budget for state textures and
// staging buffers (256 MB).
const DefaultMemoryBudgetMB = 256

// MemoryStats contains GPU memory usage statistics.
type MemoryStats struct {
	// TotalBytes is the memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// AvailableBytes is the remaining budget.
	AvailableBytes uint64

	// TextureCount is the number of live state textures.
	TextureCount int

	// Utilization is the fraction of the budget in use (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d textures]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.TextureCount)
}

// memoryLedger accounts device allocations against a fixed budget.
type memoryLedger struct {
	mu       sync.Mutex
	budget   uint64
	used     uint64
	textures int
}

func newMemoryLedger(budgetMB int) *memoryLedger {
	if budgetMB <= 0 {
		budgetMB = DefaultMemoryBudgetMB
	}
	return &memoryLedger{budget: uint64(budgetMB) * 1024 * 1024}
}

// reserve records an allocation of size bytes. texture counts it as a
// state texture in the stats.
func (m *memoryLedger) reserve(size uint64, texture bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used+size > m.budget {
		return fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, size, m.used, m.budget)
	}
	m.used += size
	if texture {
		m.textures++
	}
	return nil
}

func (m *memoryLedger) release(size uint64, texture bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= min(size, m.used)
	if texture && m.textures > 0 {
		m.textures--
	}
}

func (m *memoryLedger) stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MemoryStats{
		TotalBytes:     m.budget,
		UsedBytes:      m.used,
		AvailableBytes: m.budget - m.used,
		TextureCount:   m.textures,
	}
	if m.budget > 0 {
		s.Utilization = float64(m.used) / float64(m.budget)
	}
	return s
}
