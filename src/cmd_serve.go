package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
	"github.com/AobaIwaki123/wifi-speed-bench/src/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the export and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Serve.Addr = addr
			}
			if a.cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := server.New(a.cfg.LogPath, a.analysisOptions(), metrics.New(true))
			return srv.ListenAndServe(cmd.Context(), a.cfg.Serve.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	return cmd
}
