// Package metrics holds the Prometheus instruments shared by the collector, the aggregation
// commands and the HTTP server.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
)

const namespace = "wifibench"

// Measurement results.
const (
	ResultOK          = "ok"
	ResultProbeFailed = "probe_failed"
	ResultRadioFailed = "radio_failed"
	ResultWriteFailed = "write_failed"
)

// Metrics is one registry with its instruments.
type Metrics struct {
	Registry *prometheus.Registry

	LinesRead       prometheus.Counter
	LinesSkipped    prometheus.Counter
	Records         prometheus.Counter
	Runs            prometheus.Gauge
	Measurements    *prometheus.CounterVec
	SwitchFailures  prometheus.Counter
	AnalyzeDuration prometheus.Histogram
}

// New creates a registry. withRuntime adds the Go and process collectors, which the long-lived
// server wants and one-shot textfile exports do not.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		LinesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lines_read_total",
			Help: "Non-blank log lines read by aggregation passes.",
		}),
		LinesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lines_skipped_total",
			Help: "Log lines dropped as ingestion errors.",
		}),
		Records: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_total",
			Help: "Valid samples aggregated.",
		}),
		Runs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "runs",
			Help: "Runs found by the most recent aggregation pass.",
		}),
		Measurements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "measurements_total",
			Help: "Collector measurements by result.",
		}, []string{"result"}),
		SwitchFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "switch_failures_total",
			Help: "Failed network switches.",
		}),
		AnalyzeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "analyze_duration_seconds",
			Help:    "Wall time of one aggregation pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

// ObserveReport records the outcome of an aggregation pass. rep may carry only ingest data
// when the pass found no records.
func (m *Metrics) ObserveReport(rep *analysis.Report) {
	if m == nil || rep == nil || rep.Ingest == nil {
		return
	}
	m.LinesRead.Add(float64(rep.Ingest.LinesRead))
	m.LinesSkipped.Add(float64(rep.Ingest.Skipped()))
	m.Records.Add(float64(len(rep.Ingest.Samples)))
	if rep.Export != nil {
		m.Runs.Set(float64(len(rep.Export.Runs)))
	} else {
		m.Runs.Set(0)
	}
}

// ObserveDuration records the wall time of one aggregation pass.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.AnalyzeDuration.Observe(d.Seconds())
}

// Measurement counts one collector measurement.
func (m *Metrics) Measurement(result string) {
	if m == nil {
		return
	}
	m.Measurements.WithLabelValues(result).Inc()
}

// SwitchFailed counts one failed network switch.
func (m *Metrics) SwitchFailed() {
	if m == nil {
		return
	}
	m.SwitchFailures.Inc()
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
