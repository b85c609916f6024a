package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jamesainslie/srm/pkg/srm/trash"
)

// Metrics are the sweeper's Prometheus collectors, kept in a private
// registry and exported as a node-exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	sweeps       *prometheus.CounterVec
	purged       prometheus.Counter
	purgedBytes  prometheus.Counter
	failures     prometheus.Counter
	tracked      prometheus.Gauge
	trackedBytes prometheus.Gauge
	lastSweep    prometheus.Gauge
	duration     prometheus.Histogram
}

// NewMetrics registers the sweeper collectors in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "srm_sweeps_total",
			Help: "Sweeps run, by result (ok, partial, error)",
		}, []string{"result"}),
		purged: f.NewCounter(prometheus.CounterOpts{
			Name: "srm_purged_entries_total",
			Help: "Entries permanently deleted from safe storage",
		}),
		purgedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "srm_purged_bytes_total",
			Help: "Bytes permanently deleted from safe storage",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "srm_purge_failures_total",
			Help: "Entries that were eligible or unevaluable but kept",
		}),
		tracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "srm_tracked_entries",
			Help: "Entries in safe storage after the last sweep",
		}),
		trackedBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "srm_tracked_bytes",
			Help: "Recorded size of entries in safe storage after the last sweep",
		}),
		lastSweep: f.NewGauge(prometheus.GaugeOpts{
			Name: "srm_last_sweep_timestamp_seconds",
			Help: "Unix time the last sweep started",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "srm_sweep_duration_seconds",
			Help:    "Wall time of a sweep",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(report trash.SweepReport, err error) {
	switch {
	case err != nil:
		m.sweeps.WithLabelValues("error").Inc()
	case len(report.Failed) > 0:
		m.sweeps.WithLabelValues("partial").Inc()
	default:
		m.sweeps.WithLabelValues("ok").Inc()
	}

	m.purged.Add(float64(len(report.Purged)))
	m.purgedBytes.Add(float64(report.PurgedBytes()))
	m.failures.Add(float64(len(report.Failed)))
	m.lastSweep.Set(float64(report.Started.Unix()))
	m.duration.Observe(report.Elapsed.Seconds())

	entries, bytes := trackedAfter(report)
	m.tracked.Set(float64(entries))
	m.trackedBytes.Set(float64(bytes))
}

// WriteTextfile writes the current metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func trackedAfter(report trash.SweepReport) (int, int64) {
	n := len(report.Retained) + len(report.Failed)
	var bytes int64
	for _, e := range report.Retained {
		bytes += e.SizeBytes
	}
	for _, f := range report.Failed {
		bytes += f.Entry.SizeBytes
	}
	return n, bytes
}
