package render

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
)

func exportFrom(t *testing.T, lines ...string) *analysis.Export {
	t.Helper()
	rep, err := analysis.Analyze(strings.NewReader(strings.Join(lines, "\n")), analysis.Options{})
	require.NoError(t, err)
	return rep.Export
}

var logLines = []string{
	`{"timestamp":"2026-02-22T10:00:00+09:00","ssid":"Net_5G","run_id":"RUN_A","rssi":-55,"download_mbps":400,"upload_mbps":90,"ping_ms":12}`,
	`{"timestamp":"2026-02-22T10:01:00+09:00","ssid":"Net_5G","run_id":"RUN_A","rssi":-58,"download_mbps":380,"upload_mbps":85,"ping_ms":13}`,
	`{"timestamp":"2026-02-22T10:02:00+09:00","ssid":"Net_2G","run_id":"RUN_A","rssi":-70,"download_mbps":60,"upload_mbps":20,"ping_ms":25}`,
}

func isPNG(t *testing.T, fsys afero.Fs, path string) {
	t.Helper()
	b, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	if !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatalf("%s is not a PNG", path)
	}
}

func TestRender_WritesChartsPerRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	paths, err := Render(context.Background(), exportFrom(t, logLines...), Options{OutDir: "/charts", Fs: fsys})
	require.NoError(t, err)
	want := []string{
		filepath.Join("/charts", "RUN_A", TimeSeriesFile),
		filepath.Join("/charts", "RUN_A", BarAvgFile),
		filepath.Join("/charts", "RUN_A", PingAvgFile),
		filepath.Join("/charts", "RUN_A", ScatterFile),
		filepath.Join("/charts", "RUN_A", HeatmapFile),
	}
	assert.Equal(t, want, paths)
	for _, p := range paths {
		isPNG(t, fsys, p)
	}
}

func TestRender_SkipsChartsWithoutData(t *testing.T) {
	fsys := afero.NewMemMapFs()
	exp := exportFrom(t, `{"timestamp":"2026-02-22T10:00:00+09:00","ssid":"OnlyDown","download_mbps":10}`)
	paths, err := Render(context.Background(), exp, Options{OutDir: "/out", Fs: fsys, Concurrency: 1})
	require.NoError(t, err)
	dir := filepath.Join("/out", "LEGACY_20260222_100000")
	assert.Equal(t, []string{filepath.Join(dir, TimeSeriesFile), filepath.Join(dir, BarAvgFile)}, paths)
	for _, skipped := range []string{PingAvgFile, ScatterFile, HeatmapFile} {
		exists, _ := afero.Exists(fsys, filepath.Join(dir, skipped))
		assert.False(t, exists, skipped)
	}
}

func TestRender_SameTimestampSamples(t *testing.T) {
	fsys := afero.NewMemMapFs()
	exp := exportFrom(t,
		`{"timestamp":"2026-02-22T10:00:00+09:00","ssid":"A","run_id":"R","download_mbps":10,"rssi":-50}`,
		`{"timestamp":"2026-02-22T10:00:00+09:00","ssid":"A","run_id":"R","download_mbps":10,"rssi":-50}`,
	)
	_, err := Render(context.Background(), exp, Options{OutDir: "/out", Fs: fsys, Palette: []string{"000000"}})
	require.NoError(t, err)
}

func TestRender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Render(ctx, exportFrom(t, logLines...), Options{Fs: afero.NewMemMapFs()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_ReadOnlyFs(t *testing.T) {
	_, err := Render(context.Background(), exportFrom(t, logLines...), Options{Fs: afero.NewReadOnlyFs(afero.NewMemMapFs())})
	assert.Error(t, err)
}

func TestRunDir(t *testing.T) {
	assert.Equal(t, "RUN_1", RunDir("RUN_1"))
	assert.Equal(t, "a_b", RunDir("a_b"))

	for raw, prefix := range map[string]string{"/etc/passwd": "_etc_passwd_", "../x": "__x_", "": "_", "a/b": "a_b_"} {
		got := RunDir(raw)
		if !strings.HasPrefix(got, prefix) || len(got) != len(prefix)+8 {
			t.Fatalf("RunDir(%q) = %q, want %s + 8 hex chars", raw, got, prefix)
		}
		assert.NotContains(t, got, "/")
		assert.NotContains(t, got, "..")
		assert.Equal(t, got, RunDir(raw), "stable")
	}
}

func TestRunDir_RewrittenIDsDoNotCollide(t *testing.T) {
	ids := []string{"a/b", "a_b", `a\b`, "a:b", "a..b"}
	seen := map[string]string{}
	for _, id := range ids {
		dir := RunDir(id)
		if prev, ok := seen[dir]; ok {
			t.Fatalf("%q and %q share directory %q", prev, id, dir)
		}
		seen[dir] = id
	}
}

func TestRender_CollidingRunIDsKeepSeparateCharts(t *testing.T) {
	fsys := afero.NewMemMapFs()
	exp := exportFrom(t,
		`{"timestamp":"2026-02-22T10:00:00+09:00","ssid":"A","run_id":"a/b","download_mbps":10}`,
		`{"timestamp":"2026-02-22T11:00:00+09:00","ssid":"A","run_id":"a_b","download_mbps":20}`,
	)
	paths, err := Render(context.Background(), exp, Options{OutDir: "/out", Fs: fsys})
	require.NoError(t, err)
	dirs := map[string]bool{}
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	assert.Len(t, dirs, 2)
	assert.True(t, dirs[filepath.Join("/out", "a_b")])
}

func TestCorrelationColour(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	assert.Equal(t, undefinedCell, correlationColour(nil))
	assert.Equal(t, drawing.ColorWhite, correlationColour(f(0)))
	assert.Equal(t, drawing.Color{R: 255, A: 255}, correlationColour(f(1)))
	assert.Equal(t, drawing.Color{B: 255, A: 255}, correlationColour(f(-1)))
	assert.Equal(t, correlationColour(f(1)), correlationColour(f(1.5)), "clamped")
}

func TestHeatmapChart_SkipsUndefinedMatrix(t *testing.T) {
	exp := exportFrom(t, `{"timestamp":"2026-02-22T10:00:00+09:00","ssid":"A","run_id":"R","download_mbps":10,"rssi":-50}`)
	ch, err := heatmapChart(&exp.Runs[0], Options{}.withDefaults(), nil)
	require.NoError(t, err)
	if ch != nil {
		t.Fatalf("expected no heatmap for a single sample, got %T", ch)
	}
}

func TestHeatmapChart_Labels(t *testing.T) {
	exp := exportFrom(t, logLines...)
	ch, err := heatmapChart(&exp.Runs[0], Options{}.withDefaults(), nil)
	require.NoError(t, err)
	h, ok := ch.(*heatmap)
	require.True(t, ok)
	assert.Equal(t, []string{"down", "up", "ping", "rssi", "noise", "mcs"}, h.labels)
	assert.Equal(t, "Correlation (RUN_A)", h.title)
}

func TestColourMapCyclesPalette(t *testing.T) {
	m := newColourMap([]string{"a", "b", "c"}, []string{"#ff0000", "00ff00"})
	assert.Equal(t, m["a"], m["c"])
	assert.NotEqual(t, m["a"], m["b"])
}
