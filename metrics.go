package particles

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-simulation tick metrics. Register it once and pass
// it to every simulation with WithMetrics.
type Metrics struct {
	ticks    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	count    *prometheus.GaugeVec
	passes   *prometheus.GaugeVec
}

var _ prometheus.Collector = (*Metrics)(nil)

// NewMetrics creates an unregistered collector.
func NewMetrics() *Metrics {
	label := []string{"simulation"}
	return &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "particles_ticks_total",
				Help: "Ticks submitted by simulation",
			},
			label,
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "particles_tick_failures_total",
				Help: "Ticks whose submission failed",
			},
			label,
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "particles_tick_duration_seconds",
				Help:    "CPU time spent recording and submitting a tick",
				Buckets: prometheus.DefBuckets,
			},
			label,
		),
		count: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "particles_count",
				Help: "Live particles by simulation",
			},
			label,
		),
		passes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "particles_passes",
				Help: "Update passes per tick by simulation",
			},
			label,
		),
	}
}

// Register adds m to reg, or to prometheus.DefaultRegisterer when reg is
// nil.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(m)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ticks.Describe(ch)
	m.failures.Describe(ch)
	m.duration.Describe(ch)
	m.count.Describe(ch)
	m.passes.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ticks.Collect(ch)
	m.failures.Collect(ch)
	m.duration.Collect(ch)
	m.count.Collect(ch)
	m.passes.Collect(ch)
}

func (m *Metrics) setShape(name string, count, passes int) {
	if m == nil {
		return
	}
	m.count.WithLabelValues(name).Set(float64(count))
	m.passes.WithLabelValues(name).Set(float64(passes))
}

func (m *Metrics) observeTick(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(name).Inc()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) observeFailure(name string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(name).Inc()
}

// forget drops the series of a closed simulation.
func (m *Metrics) forget(name string) {
	if m == nil {
		return
	}
	m.ticks.DeleteLabelValues(name)
	m.failures.DeleteLabelValues(name)
	m.duration.DeleteLabelValues(name)
	m.count.DeleteLabelValues(name)
	m.passes.DeleteLabelValues(name)
}
