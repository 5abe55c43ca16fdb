// Package server exposes the aggregation engine over HTTP. Every request runs its own pass
// over the configured log, so responses always reflect the file as it is now.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
)

// Server serves the export of one log file.
type Server struct {
	LogPath string
	Options analysis.Options
	Metrics *metrics.Metrics

	engine *gin.Engine
}

// RunSummary is one entry of GET /api/runs.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	TotalRecords int             `json:"total_records"`
	Period       analysis.Period `json:"period"`
	SSIDs        []string        `json:"ssids"`
}

// New builds the router. m may be nil, in which case /metrics is not registered.
func New(logPath string, opts analysis.Options, m *metrics.Metrics) *Server {
	s := &Server{LogPath: logPath, Options: opts, Metrics: m}
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())
	r.GET("/healthz", s.health)
	api := r.Group("/api")
	api.GET("/export", s.export)
	api.GET("/runs", s.runs)
	api.GET("/runs/:id", s.run)
	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("[server] listening on %s (log %s)", addr, s.LogPath)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Infof("[server] shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debugf("[server] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// analyze runs one pass and writes the error response itself when it fails.
func (s *Server) analyze(c *gin.Context) (*analysis.Export, bool) {
	start := time.Now()
	rep, err := analysis.AnalyzeFile(s.LogPath, s.Options)
	s.Metrics.ObserveDuration(time.Since(start))
	s.Metrics.ObserveReport(rep)
	switch {
	case err == nil:
		return rep.Export, true
	case errors.Is(err, analysis.ErrLogNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, analysis.ErrNoRecords):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logging.Errorf("[server] analysis failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return nil, false
}

func (s *Server) export(c *gin.Context) {
	exp, ok := s.analyze(c)
	if !ok {
		return
	}
	b, err := exp.JSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func (s *Server) runs(c *gin.Context) {
	exp, ok := s.analyze(c)
	if !ok {
		return
	}
	out := make([]RunSummary, 0, len(exp.Runs))
	for _, r := range exp.Runs {
		out = append(out, RunSummary{RunID: r.RunID, TotalRecords: r.TotalRecords, Period: r.Period, SSIDs: r.SSIDs})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) run(c *gin.Context) {
	exp, ok := s.analyze(c)
	if !ok {
		return
	}
	id := c.Param("id")
	run := exp.Run(id)
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run " + id})
		return
	}
	c.JSON(http.StatusOK, run)
}
