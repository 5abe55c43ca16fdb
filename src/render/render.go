// Package render draws PNG charts from an export. It only reads the export; chart colours
// come from Options so nothing here is global or mutable.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/errgroup"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
)

// Chart file names, one set per run directory.
const (
	TimeSeriesFile = "01_time_series.png"
	BarAvgFile     = "02_bar_avg.png"
	PingAvgFile    = "03_ping_avg.png"
	ScatterFile    = "04_scatter_rssi.png"
	HeatmapFile    = "05_heatmap.png"
)

// DefaultPalette assigns network colours in sorted ssid order.
var DefaultPalette = []string{"#4C72B0", "#DD8452", "#55A868", "#C44E52", "#8172B2", "#937860"}

// Options controls rendering.
type Options struct {
	OutDir  string
	Palette []string // hex colours, cycled
	Width   int
	Height  int
	Fs      afero.Fs // nil means the OS file system
	// Concurrency bounds parallel chart renders; 0 means one per chart.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.OutDir == "" {
		o.OutDir = "charts"
	}
	if len(o.Palette) == 0 {
		o.Palette = DefaultPalette
	}
	if o.Width <= 0 {
		o.Width = 1100
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	return o
}

// pngChart is anything that renders itself through a go-chart renderer.
type pngChart interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// drawFunc builds one chart for a run; a nil chart means there is nothing to draw.
type drawFunc func(*analysis.RunExport, Options, colourMap) (pngChart, error)

type job struct {
	run  *analysis.RunExport
	file string
	draw drawFunc
}

// Render writes the charts of every run under OutDir/<run id>/ and returns the written paths,
// sorted. Charts that have no data (for example a run without ping values) are skipped.
func Render(ctx context.Context, exp *analysis.Export, opts Options) ([]string, error) {
	opts = opts.withDefaults()
	defer logging.TimeTrack(time.Now(), "[render] charts")

	var jobs []job
	for i := range exp.Runs {
		run := &exp.Runs[i]
		jobs = append(jobs,
			job{run, TimeSeriesFile, timeSeriesChart},
			job{run, BarAvgFile, barChart(analysis.MetricDownload, "Average download (Mbps)")},
			job{run, PingAvgFile, barChart(analysis.MetricPing, "Average ping (ms)")},
			job{run, ScatterFile, scatterChart},
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	var mu sync.Mutex
	var written []string
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := renderOne(j, opts)
			if err != nil {
				return err
			}
			if path != "" {
				mu.Lock()
				written = append(written, path)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(written)
	logging.Infof("[render] wrote %d charts for %d runs to %s", len(written), len(exp.Runs), opts.OutDir)
	return written, nil
}

func renderOne(j job, opts Options) (string, error) {
	colours := newColourMap(j.run.SSIDs, opts.Palette)
	ch, err := j.draw(j.run, opts, colours)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", j.run.RunID, j.file, err)
	}
	if ch == nil {
		logging.Debugf("[render] %s/%s: no data, skipped", j.run.RunID, j.file)
		return "", nil
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("render %s/%s: %w", j.run.RunID, j.file, err)
	}
	dir := filepath.Join(opts.OutDir, RunDir(j.run.RunID))
	if err := opts.Fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(dir, j.file)
	if err := afero.WriteFile(opts.Fs, path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}
	return path, nil
}

var unsafePath = strings.NewReplacer("/", "_", `\`, "_", "..", "_", ":", "_")

// RunDir turns a run id into a safe directory name. Ids that needed rewriting get a short
// hash of the original so two ids never share a directory.
func RunDir(runID string) string {
	s := unsafePath.Replace(runID)
	if s == runID && s != "" {
		return s
	}
	sum := sha256.Sum256([]byte(runID))
	return s + "_" + hex.EncodeToString(sum[:4])
}

type colourMap map[string]drawing.Color

func newColourMap(ssids []string, palette []string) colourMap {
	m := colourMap{}
	for i, s := range ssids {
		m[s] = drawing.ColorFromHex(strings.TrimPrefix(palette[i%len(palette)], "#"))
	}
	return m
}

// lineStyle renders points joined by a line; upload is dashed.
func lineStyle(col drawing.Color, dashed bool) chart.Style {
	st := chart.Style{StrokeColor: col, StrokeWidth: 2, DotColor: col, DotWidth: 3}
	if dashed {
		st.StrokeDashArray = []float64{6, 4}
	}
	return st
}

// pointStyle renders points only (no connecting line).
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    5,
		DotColor:    col,
	}
}

func chartBackground() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

func timeSeriesChart(run *analysis.RunExport, opts Options, colours colourMap) (pngChart, error) {
	var series []chart.Series
	maxY := 0.0
	for _, ssid := range run.SSIDs {
		for _, m := range []analysis.Metric{analysis.MetricDownload, analysis.MetricUpload} {
			var xs []time.Time
			var ys []float64
			for _, p := range run.TimeSeries {
				if p.SSID != ssid {
					continue
				}
				v := p.Value(m)
				if v == nil {
					continue
				}
				ts, err := analysis.ParseTimestamp(p.Timestamp)
				if err != nil {
					return nil, err
				}
				xs = append(xs, ts)
				ys = append(ys, *v)
				maxY = math.Max(maxY, *v)
			}
			if len(xs) == 0 {
				continue
			}
			// go-chart needs at least two distinct X values
			if xs[0].Equal(xs[len(xs)-1]) {
				xs = append(xs, xs[0].Add(time.Second))
				ys = append(ys, ys[0])
			}
			name := ssid + " down"
			if m == analysis.MetricUpload {
				name = ssid + " up"
			}
			series = append(series, chart.TimeSeries{Name: name, XValues: xs, YValues: ys, Style: lineStyle(colours[ssid], m == analysis.MetricUpload)})
		}
	}
	if len(series) == 0 {
		return nil, nil
	}
	ch := &chart.Chart{
		Title:      fmt.Sprintf("Throughput over time: %s", run.RunID),
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chartBackground(),
		XAxis:      chart.XAxis{Name: "time", ValueFormatter: chart.TimeValueFormatterWithFormat("01/02 15:04")},
		YAxis:      chart.YAxis{Name: "Mbps", Range: &chart.ContinuousRange{Min: 0, Max: niceMax(maxY)}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(ch)}
	return ch, nil
}

func barChart(m analysis.Metric, title string) drawFunc {
	return func(run *analysis.RunExport, opts Options, colours colourMap) (pngChart, error) {
		var bars []chart.Value
		maxY := 0.0
		for _, ssid := range run.SSIDs {
			ns := run.Stats[ssid]
			avg := ns.Metric(m).Avg
			if avg == nil {
				continue
			}
			col := colours[ssid]
			bars = append(bars, chart.Value{
				Label: ssid,
				Value: *avg,
				Style: chart.Style{FillColor: col, StrokeColor: col},
			})
			maxY = math.Max(maxY, *avg)
		}
		if len(bars) == 0 {
			return nil, nil
		}
		return &chart.BarChart{
			Title:      fmt.Sprintf("%s: %s", title, run.RunID),
			Width:      opts.Width,
			Height:     opts.Height,
			Background: chartBackground(),
			BarWidth:   60,
			YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: niceMax(maxY)}},
			Bars:       bars,
		}, nil
	}
}

func scatterChart(run *analysis.RunExport, opts Options, colours colourMap) (pngChart, error) {
	var series []chart.Series
	minX, maxX := math.Inf(1), math.Inf(-1)
	maxY := 0.0
	for _, ssid := range run.SSIDs {
		var xs, ys []float64
		for _, p := range run.TimeSeries {
			if p.SSID != ssid || p.RSSI == nil || p.DownloadMbps == nil {
				continue
			}
			xs = append(xs, *p.RSSI)
			ys = append(ys, *p.DownloadMbps)
			minX, maxX = math.Min(minX, *p.RSSI), math.Max(maxX, *p.RSSI)
			maxY = math.Max(maxY, *p.DownloadMbps)
		}
		if len(xs) == 0 {
			continue
		}
		series = append(series, chart.ContinuousSeries{Name: ssid, XValues: xs, YValues: ys, Style: pointStyle(colours[ssid])})
	}
	if len(series) == 0 {
		return nil, nil
	}
	ch := &chart.Chart{
		Title:      fmt.Sprintf("RSSI vs download: %s", run.RunID),
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chartBackground(),
		XAxis:      chart.XAxis{Name: "RSSI (dBm)", Range: &chart.ContinuousRange{Min: minX - 2, Max: maxX + 2}},
		YAxis:      chart.YAxis{Name: "Mbps", Range: &chart.ContinuousRange{Min: 0, Max: niceMax(maxY)}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(ch)}
	return ch, nil
}

// niceMax leaves headroom above the largest value and never returns zero.
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return math.Ceil(v * 1.1)
}
