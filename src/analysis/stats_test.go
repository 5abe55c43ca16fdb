package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

func withMetric(s Sample, m Metric, v float64) Sample {
	s.Metrics[m] = types.Float(v)
	return s
}

func TestAggregate_Net5GSummary(t *testing.T) {
	var samples []Sample
	for i, dl := range []float64{100, 200, 300} {
		s := sampleAt(time.Duration(i)*time.Minute, "Net_5G", "RUN_1")
		s.Band = types.String(types.Band5GHz)
		samples = append(samples, withMetric(s, MetricDownload, dl))
	}
	stats := Aggregate(Segment(samples, SegmentOptions{}))
	require.Len(t, stats, 1)
	ns := stats[0].Networks["Net_5G"]
	require.NotNil(t, ns)
	dl := ns.Metrics[MetricDownload]
	if dl.Avg != 200 || dl.Min != 100 || dl.Max != 300 {
		t.Fatalf("expected avg/min/max 200/100/300 got %v/%v/%v", dl.Avg, dl.Min, dl.Max)
	}
	assert.InDelta(t, 100, dl.Std, 1e-9)
	assert.Equal(t, []float64{100, 200, 300}, dl.Values)
	assert.Equal(t, 3, ns.Count)
	assert.Equal(t, types.Band5GHz, *ns.Band)
}

func TestSummarize_Sentinels(t *testing.T) {
	empty := summarize(nil)
	assert.Zero(t, empty.N)
	assert.True(t, math.IsNaN(empty.Avg))
	assert.True(t, math.IsNaN(empty.Min))
	assert.True(t, math.IsNaN(empty.Max))
	assert.True(t, math.IsNaN(empty.Std))

	one := summarize([]float64{42})
	assert.Equal(t, 42.0, one.Avg)
	assert.Equal(t, 42.0, one.Min)
	assert.Equal(t, 42.0, one.Max)
	assert.True(t, math.IsNaN(one.Std), "std of a single value is undefined")
}

func TestAggregate_BandFromFirstSampleAndNullMetrics(t *testing.T) {
	a := sampleAt(0, "Net", "R")
	b := sampleAt(time.Minute, "Net", "R")
	b.Band = types.String(types.Band24GHz)
	b = withMetric(b, MetricPing, 12)
	stats := Aggregate(Segment([]Sample{a, b}, SegmentOptions{}))
	ns := stats[0].Networks["Net"]
	assert.Nil(t, ns.Band, "first sample had no band")
	assert.Equal(t, 2, ns.Count)
	assert.Equal(t, 1, ns.Metrics[MetricPing].N)
	assert.Zero(t, ns.Metrics[MetricDownload].N)
}

func TestAggregate_GroupsByNetworkWithinRun(t *testing.T) {
	samples := []Sample{
		withMetric(sampleAt(0, "B", "R"), MetricDownload, 10),
		withMetric(sampleAt(time.Minute, "A", "R"), MetricDownload, 20),
		withMetric(sampleAt(2*time.Minute, "B", "R"), MetricDownload, 30),
	}
	stats := Aggregate(Segment(samples, SegmentOptions{}))
	require.Len(t, stats, 1)
	assert.Equal(t, []string{"A", "B"}, stats[0].NetworkIDs())
	assert.Equal(t, 20.0, stats[0].Networks["B"].Metrics[MetricDownload].Avg)
}

func TestCorrelate_PerfectLinear(t *testing.T) {
	var samples []Sample
	for i := 1; i <= 5; i++ {
		s := sampleAt(time.Duration(i)*time.Minute, "A", "R")
		s = withMetric(s, MetricDownload, float64(i)*100)
		s = withMetric(s, MetricUpload, float64(i)*50)
		s = withMetric(s, MetricPing, 60-float64(i)*10)
		samples = append(samples, s)
	}
	m := Correlate(samples)
	if math.Abs(m[MetricDownload][MetricUpload]-1) > 1e-12 {
		t.Fatalf("expected correlation 1.0 got %v", m[MetricDownload][MetricUpload])
	}
	assert.InDelta(t, -1, m[MetricDownload][MetricPing], 1e-12)
	assert.Equal(t, m[MetricUpload][MetricDownload], m[MetricDownload][MetricUpload])
	assert.Equal(t, 1.0, m[MetricDownload][MetricDownload])
	// no rssi at all: undefined
	assert.True(t, math.IsNaN(m[MetricRSSI][MetricDownload]))
	assert.True(t, math.IsNaN(m[MetricRSSI][MetricRSSI]))
}

func TestCorrelate_PairwiseComplete(t *testing.T) {
	var samples []Sample
	for i := 1; i <= 4; i++ {
		s := sampleAt(time.Duration(i)*time.Minute, "A", "R")
		s = withMetric(s, MetricDownload, float64(i))
		s = withMetric(s, MetricUpload, float64(i)*2)
		if i == 1 {
			s = withMetric(s, MetricPing, 5)
		}
		samples = append(samples, s)
	}
	m := Correlate(samples)
	// ping is present once; it must not shrink the download/upload pair
	assert.InDelta(t, 1, m[MetricDownload][MetricUpload], 1e-12)
	assert.True(t, math.IsNaN(m[MetricDownload][MetricPing]), "one joint observation")
}

func TestCorrelate_ZeroVariance(t *testing.T) {
	var samples []Sample
	for i := 1; i <= 3; i++ {
		s := sampleAt(time.Duration(i)*time.Minute, "A", "R")
		s = withMetric(s, MetricDownload, float64(i))
		s = withMetric(s, MetricMCS, 9)
		samples = append(samples, s)
	}
	m := Correlate(samples)
	assert.True(t, math.IsNaN(m[MetricDownload][MetricMCS]))
	assert.True(t, math.IsNaN(m[MetricMCS][MetricMCS]))
}
