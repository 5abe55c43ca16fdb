package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
	"github.com/AobaIwaki123/wifi-speed-bench/src/metrics"
	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

// DefaultCount is the number of measurements per network.
const DefaultCount = 3

// Collector measures every configured network in turn and appends one record per measurement.
type Collector struct {
	SSIDs    []string
	Count    int
	Radio    RadioSource
	Probe    Prober
	Switcher Switcher
	Writer   *ResultWriter
	Clock    clock.Clock
	Location *time.Location // zone of written timestamps; nil means analysis.DisplayZone
	Metrics  *metrics.Metrics
	// NewRunID overrides run id generation.
	NewRunID func(start time.Time) string
}

// Summary reports what one collection wrote.
type Summary struct {
	RunID   string
	Written int
	Failed  int
}

// NewRunID builds RUN_<yyyymmdd_hhmmss>_<8 hex chars>.
func NewRunID(start time.Time) string {
	return fmt.Sprintf("RUN_%s_%s", start.Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Run collects all networks. A failed switch skips that network; a failed measurement is
// skipped and counted. Every failure is returned, aggregated, after the loop completes.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	clk := c.Clock
	if clk == nil {
		clk = clock.New()
	}
	loc := c.Location
	if loc == nil {
		loc = analysis.DisplayZone
	}
	count := c.Count
	if count <= 0 {
		count = DefaultCount
	}
	newID := c.NewRunID
	if newID == nil {
		newID = NewRunID
	}
	sum := Summary{RunID: newID(clk.Now().In(loc))}
	logging.Infof("[collect] run %s: %d networks x %d measurements -> %s", sum.RunID, len(c.SSIDs), count, c.Writer.Path())

	var result *multierror.Error
	for _, ssid := range c.SSIDs {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		if err := c.Switcher.Switch(ctx, ssid); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				result = multierror.Append(result, err)
				break
			}
			logging.Errorf("[collect] skip %s: %v", ssid, err)
			c.Metrics.SwitchFailed()
			result = multierror.Append(result, err)
			continue
		}
		if current, err := c.Radio.CurrentSSID(ctx); err != nil {
			logging.Warnf("[collect] could not confirm network: %v", err)
		} else if current != ssid {
			logging.Warnf("[collect] expected %s but associated with %s", ssid, current)
		}
		for i := 0; i < count; i++ {
			if err := c.measure(ctx, clk, loc, ssid, sum.RunID); err != nil {
				sum.Failed++
				logging.Warnf("[collect] %s measurement %d/%d: %v", ssid, i+1, count, err)
				result = multierror.Append(result, fmt.Errorf("%s #%d: %w", ssid, i+1, err))
				continue
			}
			sum.Written++
		}
	}
	logging.Infof("[collect] run %s done: %d written, %d failed", sum.RunID, sum.Written, sum.Failed)
	return sum, result.ErrorOrNil()
}

func (c *Collector) measure(ctx context.Context, clk clock.Clock, loc *time.Location, ssid, runID string) error {
	phys, err := c.Radio.Metrics(ctx)
	if err != nil {
		c.Metrics.Measurement(metrics.ResultRadioFailed)
		return err
	}
	speed, err := c.Probe.Probe(ctx)
	if err != nil {
		c.Metrics.Measurement(metrics.ResultProbeFailed)
		return err
	}
	rec := BuildRecord(clk.Now().In(loc), ssid, runID, phys, speed)
	if err := c.Writer.Append(rec); err != nil {
		c.Metrics.Measurement(metrics.ResultWriteFailed)
		return err
	}
	c.Metrics.Measurement(metrics.ResultOK)
	logging.Infof("[collect] %s dl=%.1f ul=%.1f ping=%.1f", ssid, speed.DownloadMbps, speed.UploadMbps, speed.PingMs)
	return nil
}

// BuildRecord merges the radio and throughput results into one log record.
func BuildRecord(ts time.Time, ssid, runID string, phys types.PhysicalMetrics, speed types.SpeedMetrics) *types.Record {
	return &types.Record{
		Timestamp:    analysis.FormatTimestamp(ts),
		SSID:         ssid,
		RunID:        runID,
		RSSI:         types.IntToFloat(phys.RSSI),
		Noise:        types.IntToFloat(phys.Noise),
		MCSIndex:     types.IntToFloat(phys.MCSIndex),
		Channel:      types.IntToFloat(phys.Channel),
		Band:         phys.Band,
		DownloadMbps: types.Float(speed.DownloadMbps),
		UploadMbps:   types.Float(speed.UploadMbps),
		PingMs:       types.Float(speed.PingMs),
	}
}
