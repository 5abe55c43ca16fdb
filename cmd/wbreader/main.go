package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/exitcode"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wbreader", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var file string
	var gap time.Duration
	var max int
	fs.StringVar(&file, "file", "logs/wifi_bench.jsonl", "Path to the benchmark log")
	fs.DurationVar(&gap, "gap", analysis.DefaultGapThreshold, "Inactivity gap that closes a legacy run")
	fs.IntVar(&max, "n", 0, "Show only the newest n runs (0 = all)")
	if err := fs.Parse(args); err != nil {
		return exitcode.Failure
	}
	logging.SetLogLevel("error")
	rep, err := analysis.AnalyzeFile(file, analysis.Options{Segment: analysis.SegmentOptions{GapThreshold: gap}})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitcode.For(err)
	}
	runs := rep.Export.Runs
	if max > 0 && len(runs) > max {
		runs = runs[:max]
	}
	counts := map[string]int{}
	for _, r := range runs {
		for ssid, ns := range r.Stats {
			counts[ssid] += ns.Count
		}
	}
	fmt.Fprintf(stdout, "Total runs: %d (records: %d, skipped lines: %d)\n", len(rep.Export.Runs), rep.Export.TotalRecords(), rep.Ingest.Skipped())
	for _, r := range runs {
		fmt.Fprintf(stdout, "%s  %s .. %s  %d records\n", r.RunID, r.Period.Start, r.Period.End, r.TotalRecords)
	}
	ssids := make([]string, 0, len(counts))
	for k := range counts {
		ssids = append(ssids, k)
	}
	sort.Strings(ssids)
	for _, k := range ssids {
		fmt.Fprintf(stdout, "%s: %d\n", k, counts[k])
	}
	return exitcode.OK
}
