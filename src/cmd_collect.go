package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/AobaIwaki123/wifi-speed-bench/src/config"
	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
	"github.com/AobaIwaki123/wifi-speed-bench/src/monitor"
)

func (a *app) collectCmd() *cobra.Command {
	var (
		ssids    []string
		count    int
		interval time.Duration
		iface    string
		attempts uint
	)
	cmd := &cobra.Command{
		Use:   "collect [--ssids A B ...]",
		Short: "Measure each network in turn and append the results to the log",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &a.cfg.Collect
			fl := cmd.Flags()
			if fl.Changed("ssids") || len(args) > 0 {
				// `--ssids A B` leaves B as a positional argument
				c.SSIDs = append(append([]string(nil), ssids...), args...)
			}
			if fl.Changed("count") {
				c.Count = count
			}
			if fl.Changed("interval") {
				c.Interval = interval
			}
			if fl.Changed("interface") {
				c.Interface = iface
			}
			if fl.Changed("switch-attempts") {
				c.SwitchAttempts = attempts
			}
			if len(c.SSIDs) == 0 {
				return fmt.Errorf("no networks to measure: pass --ssids or set collect.ssids")
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			m := metrics.New(false)
			defer a.writeMetrics(m)
			sum, err := a.newCollector(a.cfg, m).Run(cmd.Context())
			fmt.Fprintf(a.stdout, "run %s: %d records written, %d failed\n", sum.RunID, sum.Written, sum.Failed)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVar(&ssids, "ssids", nil, "networks to measure")
	fl.IntVar(&count, "count", monitor.DefaultCount, "measurements per network")
	fl.DurationVar(&interval, "interval", monitor.DefaultSwitchWait, "settle time after switching networks")
	fl.StringVar(&iface, "interface", "en0", "Wi-Fi interface")
	fl.UintVar(&attempts, "switch-attempts", 1, "attempts per network switch")
	return cmd
}

func defaultCollector(cfg *config.Config, m *metrics.Metrics) *monitor.Collector {
	c := cfg.Collect
	return &monitor.Collector{
		SSIDs:    c.SSIDs,
		Count:    c.Count,
		Radio:    monitor.NewAirportSource(c.Interface),
		Probe:    monitor.NewSpeedtestProbe(),
		Switcher: monitor.NewNetworkSwitcher(c.Interface, c.SwitchAttempts, c.Interval),
		Writer:   monitor.NewResultWriter(afero.NewOsFs(), cfg.LogPath),
		Location: cfg.Analysis.Location(),
		Metrics:  m,
	}
}
