package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

type stubRadio struct {
	pm      types.PhysicalMetrics
	err     error
	current string
}

func (s *stubRadio) Metrics(context.Context) (types.PhysicalMetrics, error) { return s.pm, s.err }
func (s *stubRadio) CurrentSSID(context.Context) (string, error)             { return s.current, nil }

type stubProbe struct {
	results []types.SpeedMetrics
	errAt   map[int]error
	n       int
}

func (s *stubProbe) Probe(context.Context) (types.SpeedMetrics, error) {
	i := s.n
	s.n++
	if err := s.errAt[i]; err != nil {
		return types.SpeedMetrics{}, err
	}
	return s.results[i%len(s.results)], nil
}

type stubSwitcher struct {
	fail   map[string]bool
	joined []string
}

func (s *stubSwitcher) Switch(_ context.Context, ssid string) error {
	if s.fail[ssid] {
		return ErrSwitchFailed
	}
	s.joined = append(s.joined, ssid)
	return nil
}

var physical = types.PhysicalMetrics{
	RSSI: types.Int(-55), Noise: types.Int(-95), MCSIndex: types.Int(9), Channel: types.Int(100), Band: types.String(types.Band5GHz),
}

func readRecords(t *testing.T, fsys afero.Fs, path string) []types.Record {
	t.Helper()
	b, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	var out []types.Record
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		var r types.Record
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		out = append(out, r)
	}
	return out
}

func newTestCollector(fsys afero.Fs, sw *stubSwitcher, probe *stubProbe) *Collector {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 2, 22, 1, 0, 0, 0, time.UTC))
	return &Collector{
		SSIDs:    []string{"Net_5G", "Net_2G"},
		Count:    2,
		Radio:    &stubRadio{pm: physical, current: "Net_5G"},
		Probe:    probe,
		Switcher: sw,
		Writer:   NewResultWriter(fsys, "/logs/wifi_bench.jsonl"),
		Clock:    mock,
		Metrics:  metrics.New(false),
	}
}

func TestCollector_WritesRecordsWithSharedRunID(t *testing.T) {
	fsys := afero.NewMemMapFs()
	sw := &stubSwitcher{}
	probe := &stubProbe{results: []types.SpeedMetrics{{DownloadMbps: 412.3, UploadMbps: 89.1, PingMs: 12.4}}}
	c := newTestCollector(fsys, sw, probe)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Written)
	assert.Equal(t, []string{"Net_5G", "Net_2G"}, sw.joined)
	assert.Regexp(t, regexp.MustCompile(`^RUN_20260222_100000_[0-9a-f]{8}$`), sum.RunID)

	recs := readRecords(t, fsys, "/logs/wifi_bench.jsonl")
	require.Len(t, recs, 4)
	for _, r := range recs {
		assert.Equal(t, sum.RunID, r.RunID)
		assert.Equal(t, "2026-02-22T10:00:00+09:00", r.Timestamp)
		assert.Equal(t, -55.0, *r.RSSI)
		assert.Equal(t, 412.3, *r.DownloadMbps)
	}
	assert.Equal(t, "Net_2G", recs[3].SSID)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.Metrics.Measurements.WithLabelValues(metrics.ResultOK)))
}

func TestCollector_OutputFeedsAnalysis(t *testing.T) {
	fsys := afero.NewMemMapFs()
	probe := &stubProbe{results: []types.SpeedMetrics{{DownloadMbps: 100, UploadMbps: 10, PingMs: 5}, {DownloadMbps: 300, UploadMbps: 30, PingMs: 7}}}
	c := newTestCollector(fsys, &stubSwitcher{}, probe)
	c.NewRunID = func(time.Time) string { return "RUN_FIXED" }
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	rep, err := analysis.AnalyzeFile("/logs/wifi_bench.jsonl", analysis.Options{Fs: fsys})
	require.NoError(t, err)
	require.Len(t, rep.Export.Runs, 1)
	run := rep.Export.Runs[0]
	assert.Equal(t, "RUN_FIXED", run.RunID)
	assert.Equal(t, 200.0, *run.Stats["Net_5G"].DownloadMbps.Avg)
	assert.Equal(t, types.Band5GHz, *run.Stats["Net_2G"].Band)
}

func TestCollector_SwitchFailureSkipsNetwork(t *testing.T) {
	fsys := afero.NewMemMapFs()
	sw := &stubSwitcher{fail: map[string]bool{"Net_5G": true}}
	probe := &stubProbe{results: []types.SpeedMetrics{{DownloadMbps: 1, UploadMbps: 1, PingMs: 1}}}
	c := newTestCollector(fsys, sw, probe)

	sum, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSwitchFailed)
	assert.Equal(t, 2, sum.Written)
	recs := readRecords(t, fsys, "/logs/wifi_bench.jsonl")
	for _, r := range recs {
		assert.Equal(t, "Net_2G", r.SSID)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.SwitchFailures))
}

func TestCollector_ProbeFailureIsCountedAndAggregated(t *testing.T) {
	fsys := afero.NewMemMapFs()
	probe := &stubProbe{
		results: []types.SpeedMetrics{{DownloadMbps: 1, UploadMbps: 1, PingMs: 1}},
		errAt:   map[int]error{1: ErrProbeFailed, 2: ErrProbeFailed},
	}
	c := newTestCollector(fsys, &stubSwitcher{}, probe)
	sum, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, 2, sum.Failed)
	assert.ErrorIs(t, err, ErrProbeFailed)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Metrics.Measurements.WithLabelValues(metrics.ResultProbeFailed)))
}

func TestCollector_RadioFailure(t *testing.T) {
	fsys := afero.NewMemMapFs()
	c := newTestCollector(fsys, &stubSwitcher{}, &stubProbe{results: []types.SpeedMetrics{{}}})
	c.Radio = &stubRadio{err: ErrMetricsUnavailable}
	sum, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrMetricsUnavailable)
	assert.Zero(t, sum.Written)
	exists, _ := afero.Exists(fsys, "/logs/wifi_bench.jsonl")
	assert.False(t, exists)
}

func TestCollector_WriteFailure(t *testing.T) {
	ro := afero.NewReadOnlyFs(afero.NewMemMapFs())
	c := newTestCollector(ro, &stubSwitcher{}, &stubProbe{results: []types.SpeedMetrics{{}}})
	sum, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, sum.Written)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.Metrics.Measurements.WithLabelValues(metrics.ResultWriteFailed)))
}

func TestCollector_StopsOnCancel(t *testing.T) {
	fsys := afero.NewMemMapFs()
	sw := &stubSwitcher{}
	c := newTestCollector(fsys, sw, &stubProbe{results: []types.SpeedMetrics{{}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, sw.joined)
}

func TestBuildRecord_NullPhysicalFields(t *testing.T) {
	ts := time.Date(2026, 2, 22, 10, 0, 0, 0, analysis.DisplayZone)
	rec := BuildRecord(ts, "MyNet_5GHz", "", types.PhysicalMetrics{RSSI: types.Int(-60)}, types.SpeedMetrics{DownloadMbps: 412.3, UploadMbps: 89.1, PingMs: 12.4})
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	out := string(b)
	for _, key := range []string{"timestamp", "ssid", "rssi", "noise", "mcs_index", "channel", "band", "download_mbps", "upload_mbps", "ping_ms"} {
		assert.Contains(t, out, `"`+key+`"`)
	}
	assert.Contains(t, out, `"band":null`)
	assert.NotContains(t, out, "run_id")
	_, err = analysis.ParseTimestamp(rec.Timestamp)
	assert.NoError(t, err)
}

func TestNewRunID(t *testing.T) {
	ts := time.Date(2026, 2, 22, 10, 0, 0, 0, analysis.DisplayZone)
	a, b := NewRunID(ts), NewRunID(ts)
	assert.True(t, strings.HasPrefix(a, "RUN_20260222_100000_"))
	assert.NotEqual(t, a, b)
}

var (
	_ RadioSource = (*AirportSource)(nil)
	_ Prober      = (*SpeedtestProbe)(nil)
	_ Switcher    = (*NetworkSwitcher)(nil)
)
