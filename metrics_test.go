package particles

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordTicks(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	dev := NewReferenceDevice(1)
	defer dev.Close()
	sim, err := New(dev, WithCount(50), WithMetrics(m, "demo"))
	if err != nil {
		t.Fatal(err)
	}
	run(t, sim, 3)

	if got := testutil.ToFloat64(m.ticks.WithLabelValues("demo")); got != 3 {
		t.Errorf("ticks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.count.WithLabelValues("demo")); got != 50 {
		t.Errorf("count = %v, want 50", got)
	}
	if got := testutil.ToFloat64(m.passes.WithLabelValues("demo")); got != 2 {
		t.Errorf("passes = %v, want 2", got)
	}

	want := `
# HELP particles_count Live particles by simulation
# TYPE particles_count gauge
particles_count{simulation="demo"} 50
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "particles_count"); err != nil {
		t.Error(err)
	}
	if n := testutil.CollectAndCount(m, "particles_tick_duration_seconds"); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}

	sim.Close()
	if n := testutil.CollectAndCount(m, "particles_ticks_total"); n != 0 {
		t.Errorf("ticks series after Close = %d, want 0", n)
	}
}

func TestMetricsRegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register succeeded")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.setShape("x", 1, 1)
	m.observeTick("x", 0)
	m.observeFailure("x")
	m.forget("x")
}
