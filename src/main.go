// wifibench measures Wi-Fi networks and aggregates the benchmark log into per-run statistics.
//
// Subcommands:
//   - collect: switch through the configured networks and append one JSONL record per measurement.
//   - analyze: segment the log into runs, aggregate them and write stats.json (plus optional sinks).
//   - validate: check the raw log against the expected band of each network.
//   - render: draw PNG charts per run.
//   - serve: expose the aggregation over HTTP.
//
// Settings come from wifibench.yaml, .env and WIFIBENCH_* variables; flags override them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/config"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
	"github.com/AobaIwaki123/wifi-speed-bench/src/monitor"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	logPath    string
	logLevel   string
	logJSON    bool

	cfg *config.Config

	// newCollector builds the collector for `collect`; tests replace it.
	newCollector func(cfg *config.Config, m *metrics.Metrics) *monitor.Collector
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, newCollector: defaultCollector}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wifibench",
		Short:         "Wi-Fi benchmark collection and run statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath+" if present)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before WIFIBENCH_* overrides")
	pf.StringVar(&a.logPath, "log", "", "benchmark log (JSONL)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error")
	pf.BoolVar(&a.logJSON, "log-json", false, "emit diagnostics as JSON")

	root.AddCommand(a.collectCmd(), a.analyzeCmd(), a.validateCmd(), a.renderCmd(), a.serveCmd())
	return root
}

// setup loads the configuration, applies the persistent flags and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.LogPath = a.logPath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Logging.JSON = a.logJSON
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.SetOutput(a.stderr, cfg.Logging.JSON)
	logging.SetLogLevel(cfg.Logging.Level)
	a.cfg = cfg
	return nil
}

func (a *app) analysisOptions() analysis.Options {
	loc := a.cfg.Analysis.Location()
	return analysis.Options{
		Segment: analysis.SegmentOptions{
			GapThreshold: a.cfg.Analysis.GapThreshold,
			LegacyPrefix: a.cfg.Analysis.LegacyPrefix,
			Location:     loc,
		},
		Location: loc,
	}
}

// writeMetrics writes the textfile when one is configured.
func (a *app) writeMetrics(m *metrics.Metrics) {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := m.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		logging.Warnf("[metrics] %v", err)
	}
}
