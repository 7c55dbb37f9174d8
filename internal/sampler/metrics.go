package sampler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// Metrics exports sampler activity to Prometheus. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Probes     *prometheus.CounterVec // outcome: queued|coalesced
	Passes     prometheus.Counter
	Errors     *prometheus.CounterVec // family
	Duration   prometheus.Histogram
	Generation prometheus.Gauge
	CPUBusy    prometheus.Gauge
	MemoryUsed prometheus.Gauge
	DiskFree   prometheus.Gauge
}

// NewMetrics creates the sampler collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bpulse", Subsystem: "sampler", Name: "probes_total",
			Help: "Probe requests by outcome.",
		}, []string{"outcome"}),
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpulse", Subsystem: "sampler", Name: "passes_total",
			Help: "Completed sampling passes.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bpulse", Subsystem: "sampler", Name: "family_errors_total",
			Help: "Failed family reads.",
		}, []string{"family"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bpulse", Subsystem: "sampler", Name: "pass_duration_seconds",
			Help:    "Wall time of one sampling pass.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpulse", Subsystem: "sampler", Name: "generation",
			Help: "Generation of the last published snapshot.",
		}),
		CPUBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpulse", Name: "cpu_busy_ratio",
			Help: "Non-idle CPU share over the last interval (0-1).",
		}),
		MemoryUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpulse", Name: "memory_used_ratio",
			Help: "Used memory share (0-1).",
		}),
		DiskFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpulse", Name: "disk_free_ratio",
			Help: "Free space share of the watched mount (0-1).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Probes, m.Passes, m.Errors, m.Duration,
			m.Generation, m.CPUBusy, m.MemoryUsed, m.DiskFree)
	}
	return m
}

func (m *Metrics) probe(queued bool) {
	if m == nil {
		return
	}
	if queued {
		m.Probes.WithLabelValues("queued").Inc()
	} else {
		m.Probes.WithLabelValues("coalesced").Inc()
	}
}

func (m *Metrics) observe(snap *model.Snapshot, rep *Report) {
	if m == nil {
		return
	}
	m.Passes.Inc()
	m.Duration.Observe(rep.Duration.Seconds())
	m.Generation.Set(float64(snap.Generation))
	for _, fe := range rep.Errors {
		m.Errors.WithLabelValues(fe.Family.String()).Inc()
	}
	if rep.Published.Has(model.CPUFamily) {
		m.CPUBusy.Set(snap.CPU.Busy())
	}
	if rep.Published.Has(model.MemoryFamily) {
		m.MemoryUsed.Set(snap.Memory.UsedFraction)
	}
	if rep.Published.Has(model.DiskFamily) {
		m.DiskFree.Set(snap.Disk.FreeFraction)
	}
}
