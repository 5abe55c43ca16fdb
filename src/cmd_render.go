package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/render"
)

func (a *app) renderCmd() *cobra.Command {
	var out, stats string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Draw PNG charts for every run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("out") {
				a.cfg.Export.OutDir = out
			}
			exp, err := a.loadExport(stats)
			if err != nil {
				return err
			}
			paths, err := render.Render(cmd.Context(), exp, render.Options{OutDir: a.cfg.Export.OutDir})
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(a.stdout, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "chart output directory")
	cmd.Flags().StringVar(&stats, "stats", "", "draw from an existing stats.json instead of the log")
	return cmd
}

// loadExport reads a previously written export, or runs a pass over the log when path is empty.
func (a *app) loadExport(path string) (*analysis.Export, error) {
	if path == "" {
		rep, err := analysis.AnalyzeFile(a.cfg.LogPath, a.analysisOptions())
		if err != nil {
			return nil, err
		}
		return rep.Export, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var exp analysis.Export
	if err := json.Unmarshal(b, &exp); err != nil {
		return nil, fmt.Errorf("parse export %s: %w", path, err)
	}
	return &exp, nil
}
