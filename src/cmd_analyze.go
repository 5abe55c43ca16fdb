package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
	"github.com/AobaIwaki123/wifi-speed-bench/src/render"
	"github.com/AobaIwaki123/wifi-speed-bench/src/sink"
)

type analyzeFlags struct {
	out       string
	gap       time.Duration
	sqlite    string
	s3        bool
	influx    bool
	charts    bool
	noSummary bool
}

func (a *app) analyzeCmd() *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate the log into per-run statistics and write stats.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAnalyze(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.out, "out", "", "output directory for stats.json and charts")
	fl.DurationVar(&f.gap, "gap", 0, "inactivity gap that closes a legacy run (default from config, 5m)")
	fl.StringVar(&f.sqlite, "sqlite", "", "also archive runs in this SQLite database")
	fl.BoolVar(&f.s3, "s3", false, "also upload the export to the configured bucket")
	fl.BoolVar(&f.influx, "influx", false, "also write samples to the configured InfluxDB")
	fl.BoolVar(&f.charts, "charts", false, "render PNG charts next to stats.json")
	fl.BoolVar(&f.noSummary, "no-summary", false, "do not print the per-run table")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, f analyzeFlags) error {
	cfg := a.cfg
	fl := cmd.Flags()
	if fl.Changed("out") {
		cfg.Export.OutDir = f.out
	}
	if fl.Changed("gap") {
		cfg.Analysis.GapThreshold = f.gap
	}
	if fl.Changed("sqlite") {
		cfg.Export.SQLitePath = f.sqlite
	}
	if f.s3 {
		cfg.Export.S3.Enabled = true
	}
	if f.influx {
		cfg.Export.Influx.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m := metrics.New(false)
	defer a.writeMetrics(m)
	start := time.Now()
	rep, err := analysis.AnalyzeFile(cfg.LogPath, a.analysisOptions())
	m.ObserveDuration(time.Since(start))
	m.ObserveReport(rep)
	if err != nil {
		return err
	}
	if !f.noSummary {
		printSummary(a.stdout, rep)
	}

	file := sink.NewFileSink(afero.NewOsFs(), cfg.Export.OutDir)
	sinks, closeSinks, err := a.buildSinks(file)
	if err != nil {
		return err
	}
	defer closeSinks()
	ctx := cmd.Context()
	if err := sinks.Write(ctx, rep.Export); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "stats written to %s\n", file.Path())

	if f.charts {
		paths, err := render.Render(ctx, rep.Export, render.Options{OutDir: cfg.Export.OutDir})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%d charts written to %s\n", len(paths), cfg.Export.OutDir)
	}
	return nil
}

// buildSinks returns file followed by every enabled optional sink.
func (a *app) buildSinks(file sink.Sink) (sink.Multi, func(), error) {
	exp := a.cfg.Export
	sinks := sink.Multi{file}
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logging.Warnf("[sink] close: %v", err)
			}
		}
	}
	if exp.SQLitePath != "" {
		s, err := sink.OpenSQLite(exp.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}
	if exp.S3.Enabled {
		s, err := sink.NewS3Sink(exp.S3)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
	}
	if exp.Influx.Enabled {
		s := sink.NewInfluxSink(exp.Influx)
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}
	return sinks, closeAll, nil
}

// printSummary prints one row per network per run.
func printSummary(w io.Writer, rep *analysis.Report) {
	exp := rep.Export
	fmt.Fprintf(w, "%d records in %d runs (%d lines skipped)\n", exp.TotalRecords(), len(exp.Runs), rep.Ingest.Skipped())
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run", "Period", "SSID", "Band", "N", "Down avg", "Up avg", "Ping avg", "RSSI avg"})
	table.SetAutoWrapText(false)
	for _, run := range exp.Runs {
		period := run.Period.Start + " - " + run.Period.End
		for _, ssid := range run.SSIDs {
			ns := run.Stats[ssid]
			band := "-"
			if ns.Band != nil {
				band = *ns.Band
			}
			table.Append([]string{
				run.RunID, period, ssid, band, strconv.Itoa(ns.Count),
				formatStat(ns.DownloadMbps.Avg), formatStat(ns.UploadMbps.Avg),
				formatStat(ns.PingMs.Avg), formatStat(ns.RSSI.Avg),
			})
		}
	}
	table.Render()
}

func formatStat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
