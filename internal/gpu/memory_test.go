package gpu

import (
	"errors"
	"strings"
	"testing"
)

func TestMemoryLedgerReserve(t *testing.T) {
	tests := []struct {
		name     string
		budgetMB int
		sizes    []uint64
		wantErr  bool
		wantUsed uint64
	}{
		{"fits", 1, []uint64{512 * 1024, 256 * 1024}, false, 768 * 1024},
		{"exact", 1, []uint64{1024 * 1024}, false, 1024 * 1024},
		{"over", 1, []uint64{1024*1024 + 1}, true, 0},
		{"second over", 1, []uint64{900 * 1024, 200 * 1024}, true, 900 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemoryLedger(tt.budgetMB)
			var err error
			for _, s := range tt.sizes {
				if err = m.reserve(s, true); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("reserve error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMemoryBudgetExceeded) {
				t.Errorf("error = %v, want ErrMemoryBudgetExceeded", err)
			}
			if got := m.stats().UsedBytes; got != tt.wantUsed {
				t.Errorf("UsedBytes = %d, want %d", got, tt.wantUsed)
			}
		})
	}
}

func TestMemoryLedgerDefaultBudget(t *testing.T) {
	m := newMemoryLedger(0)
	if got, want := m.stats().TotalBytes, uint64(DefaultMemoryBudgetMB)*1024*1024; got != want {
		t.Errorf("TotalBytes = %d, want %d", got, want)
	}
}

func TestMemoryLedgerRelease(t *testing.T) {
	m := newMemoryLedger(1)
	if err := m.reserve(4096, true); err != nil {
		t.Fatal(err)
	}
	if err := m.reserve(1024, false); err != nil {
		t.Fatal(err)
	}
	s := m.stats()
	if s.TextureCount != 1 {
		t.Errorf("TextureCount = %d, want 1", s.TextureCount)
	}
	m.release(4096, true)
	m.release(1024, false)
	// Over-release clamps at zero.
	m.release(1, true)
	s = m.stats()
	if s.UsedBytes != 0 || s.TextureCount != 0 {
		t.Errorf("after release: %+v", s)
	}
	if s.AvailableBytes != s.TotalBytes {
		t.Errorf("AvailableBytes = %d, want %d", s.AvailableBytes, s.TotalBytes)
	}
}

func TestMemoryStatsString(t *testing.T) {
	m := newMemoryLedger(4)
	if err := m.reserve(2*1024*1024, true); err != nil {
		t.Fatal(err)
	}
	got := m.stats().String()
	for _, want := range []string{"50.0% used", "2/4 MB", "1 textures"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
