package analysis

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Rounding applied once, when building the export.
const (
	StatPlaces        = 2
	CorrelationPlaces = 3
)

// Export is the document consumed by reporting (charts, dashboards, sinks).
type Export struct {
	GeneratedAt string      `json:"generated_at"`
	Runs        []RunExport `json:"runs"` // newest run first
}

// Run returns the run with the given id, or nil.
func (e *Export) Run(id string) *RunExport {
	for i := range e.Runs {
		if e.Runs[i].RunID == id {
			return &e.Runs[i]
		}
	}
	return nil
}

// TotalRecords sums the record count of every run.
func (e *Export) TotalRecords() int {
	n := 0
	for _, r := range e.Runs {
		n += r.TotalRecords
	}
	return n
}

// Encode writes the export as indented JSON. Non-ASCII network names are kept verbatim.
func (e *Export) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// JSON returns the encoded export.
func (e *Export) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Period is a run's time span in the display zone.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RunExport is the per-run structure of the export.
type RunExport struct {
	RunID        string                   `json:"run_id"`
	TotalRecords int                      `json:"total_records"`
	Period       Period                   `json:"period"`
	SSIDs        []string                 `json:"ssids"`
	Stats        map[string]NetworkExport `json:"stats"`
	TimeSeries   []TimeSeriesPoint        `json:"time_series"`
	Correlation  CorrelationExport        `json:"correlation"`

	start time.Time
}

// StartTime returns the run start instant.
func (r *RunExport) StartTime() time.Time { return r.start }

// MetricExport holds rounded statistics. A nil pointer serializes as null and means the
// aggregate is undefined (no observations; fewer than two for std).
type MetricExport struct {
	Avg    *float64  `json:"avg"`
	Min    *float64  `json:"min"`
	Max    *float64  `json:"max"`
	Std    *float64  `json:"std"`
	Values []float64 `json:"values"`
}

// NetworkExport is the per-network entry of a run.
type NetworkExport struct {
	Band         *string      `json:"band"`
	Count        int          `json:"count"`
	DownloadMbps MetricExport `json:"download_mbps"`
	UploadMbps   MetricExport `json:"upload_mbps"`
	PingMs       MetricExport `json:"ping_ms"`
	RSSI         MetricExport `json:"rssi"`
	Noise        MetricExport `json:"noise"`
	MCSIndex     MetricExport `json:"mcs_index"`
}

// Metric returns the entry for m.
func (n *NetworkExport) Metric(m Metric) *MetricExport {
	switch m {
	case MetricDownload:
		return &n.DownloadMbps
	case MetricUpload:
		return &n.UploadMbps
	case MetricPing:
		return &n.PingMs
	case MetricRSSI:
		return &n.RSSI
	case MetricNoise:
		return &n.Noise
	case MetricMCS:
		return &n.MCSIndex
	}
	return nil
}

// TimeSeriesPoint is one sample; absent metrics are omitted.
type TimeSeriesPoint struct {
	Timestamp    string   `json:"timestamp"`
	SSID         string   `json:"ssid"`
	DownloadMbps *float64 `json:"download_mbps,omitempty"`
	UploadMbps   *float64 `json:"upload_mbps,omitempty"`
	PingMs       *float64 `json:"ping_ms,omitempty"`
	RSSI         *float64 `json:"rssi,omitempty"`
	Noise        *float64 `json:"noise,omitempty"`
	MCSIndex     *float64 `json:"mcs_index,omitempty"`
}

// Value returns the point's value for m, or nil.
func (p *TimeSeriesPoint) Value(m Metric) *float64 {
	switch m {
	case MetricDownload:
		return p.DownloadMbps
	case MetricUpload:
		return p.UploadMbps
	case MetricPing:
		return p.PingMs
	case MetricRSSI:
		return p.RSSI
	case MetricNoise:
		return p.Noise
	case MetricMCS:
		return p.MCSIndex
	}
	return nil
}

// CorrelationExport is the matrix with its row/column names; null cells are undefined.
type CorrelationExport struct {
	Fields []string     `json:"fields"`
	Matrix [][]*float64 `json:"matrix"`
}

// Round rounds v half away from zero on its shortest decimal form. NaN and ±Inf yield nil.
func Round(v float64, places int32) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := decimal.NewFromFloat(v).Round(places).InexactFloat64()
	return &r
}

func roundValue(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func exportMetric(s MetricSummary) MetricExport {
	me := MetricExport{
		Avg:    Round(s.Avg, StatPlaces),
		Min:    Round(s.Min, StatPlaces),
		Max:    Round(s.Max, StatPlaces),
		Std:    Round(s.Std, StatPlaces),
		Values: make([]float64, 0, len(s.Values)),
	}
	for _, v := range s.Values {
		me.Values = append(me.Values, roundValue(v, StatPlaces))
	}
	return me
}

func exportRun(rs *RunStats) RunExport {
	run := rs.Run
	re := RunExport{
		RunID:        run.ID,
		TotalRecords: run.Len(),
		Period:       Period{Start: FormatTimestamp(run.Start()), End: FormatTimestamp(run.End())},
		SSIDs:        run.Networks(),
		Stats:        make(map[string]NetworkExport, len(rs.Networks)),
		TimeSeries:   make([]TimeSeriesPoint, 0, run.Len()),
		start:        run.Start(),
	}
	for id, ns := range rs.Networks {
		ne := NetworkExport{Band: ns.Band, Count: ns.Count}
		for m := Metric(0); m < NumMetrics; m++ {
			*ne.Metric(m) = exportMetric(ns.Metrics[m])
		}
		re.Stats[id] = ne
	}
	for i := range run.Samples {
		s := &run.Samples[i]
		p := TimeSeriesPoint{Timestamp: FormatTimestamp(s.Timestamp), SSID: s.NetworkID}
		vals := [NumMetrics]**float64{&p.DownloadMbps, &p.UploadMbps, &p.PingMs, &p.RSSI, &p.Noise, &p.MCSIndex}
		for m := Metric(0); m < NumMetrics; m++ {
			if v, ok := s.Value(m); ok {
				r := roundValue(v, StatPlaces)
				*vals[m] = &r
			}
		}
		re.TimeSeries = append(re.TimeSeries, p)
	}
	re.Correlation.Fields = append([]string(nil), MetricFields[:]...)
	re.Correlation.Matrix = make([][]*float64, NumMetrics)
	for i := 0; i < int(NumMetrics); i++ {
		row := make([]*float64, NumMetrics)
		for j := 0; j < int(NumMetrics); j++ {
			row[j] = Round(rs.Correlation[i][j], CorrelationPlaces)
		}
		re.Correlation.Matrix[i] = row
	}
	return re
}

// BuildExport assembles the export, newest run first. Runs with equal start times are
// ordered by run id so the output is deterministic.
func BuildExport(stats []*RunStats, generatedAt time.Time) *Export {
	exp := &Export{
		GeneratedAt: FormatTimestamp(generatedAt.UTC()),
		Runs:        make([]RunExport, 0, len(stats)),
	}
	for _, rs := range stats {
		exp.Runs = append(exp.Runs, exportRun(rs))
	}
	sort.SliceStable(exp.Runs, func(i, j int) bool {
		a, b := exp.Runs[i].start, exp.Runs[j].start
		if !a.Equal(b) {
			return a.After(b)
		}
		return exp.Runs[i].RunID < exp.Runs[j].RunID
	})
	return exp
}
