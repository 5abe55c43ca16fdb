package analysis

import (
	"math"
	"sort"
)

// MetricSummary holds unrounded statistics for one metric. Undefined aggregates are NaN:
// Avg/Min/Max with no observations, Std with fewer than two.
type MetricSummary struct {
	N      int
	Avg    float64
	Min    float64
	Max    float64
	Std    float64   // sample standard deviation (n-1)
	Values []float64 // observed values, chronological
}

func summarize(values []float64) MetricSummary {
	s := MetricSummary{N: len(values), Values: values, Avg: math.NaN(), Min: math.NaN(), Max: math.NaN(), Std: math.NaN()}
	if len(values) == 0 {
		return s
	}
	sum := 0.0
	s.Min, s.Max = values[0], values[0]
	for _, v := range values {
		sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Avg = sum / float64(len(values))
	if len(values) >= 2 {
		ss := 0.0
		for _, v := range values {
			d := v - s.Avg
			ss += d * d
		}
		s.Std = math.Sqrt(ss / float64(len(values)-1))
	}
	return s
}

// NetworkStats summarizes one network id within a run.
type NetworkStats struct {
	NetworkID string
	Band      *string // band of the first sample for this network in the run
	Count     int
	Metrics   [NumMetrics]MetricSummary
}

// RunStats is the aggregation result for one run.
type RunStats struct {
	Run         *Run
	Networks    map[string]*NetworkStats
	Correlation Matrix
}

// NetworkIDs returns the network ids in sorted order.
func (rs *RunStats) NetworkIDs() []string {
	ids := make([]string, 0, len(rs.Networks))
	for id := range rs.Networks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregate computes per-network statistics and the run-level correlation matrix.
func Aggregate(runs []*Run) []*RunStats {
	out := make([]*RunStats, 0, len(runs))
	for _, run := range runs {
		out = append(out, aggregateRun(run))
	}
	return out
}

func aggregateRun(run *Run) *RunStats {
	type acc struct {
		band   *string
		count  int
		values [NumMetrics][]float64
	}
	accs := map[string]*acc{}
	for i := range run.Samples {
		s := &run.Samples[i]
		a, ok := accs[s.NetworkID]
		if !ok {
			a = &acc{band: s.Band}
			accs[s.NetworkID] = a
		}
		a.count++
		for m := Metric(0); m < NumMetrics; m++ {
			if v, ok := s.Value(m); ok {
				a.values[m] = append(a.values[m], v)
			}
		}
	}
	rs := &RunStats{Run: run, Networks: make(map[string]*NetworkStats, len(accs))}
	for id, a := range accs {
		ns := &NetworkStats{NetworkID: id, Band: a.band, Count: a.count}
		for m := Metric(0); m < NumMetrics; m++ {
			ns.Metrics[m] = summarize(a.values[m])
		}
		rs.Networks[id] = ns
	}
	rs.Correlation = Correlate(run.Samples)
	return rs
}
