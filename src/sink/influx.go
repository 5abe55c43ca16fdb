package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/config"
)

// Measurement is the InfluxDB measurement name for samples.
const Measurement = "wifi_sample"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink mirrors every time-series sample into InfluxDB.
type InfluxSink struct {
	writer pointWriter
	close  func()
}

// NewInfluxSink creates a blocking writer for cfg.Org/cfg.Bucket.
func NewInfluxSink(cfg config.Influx) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket), close: client.Close}
}

func (s *InfluxSink) Name() string { return "influx" }

func (s *InfluxSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func (s *InfluxSink) Write(ctx context.Context, exp *analysis.Export) error {
	points, err := Points(exp)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	return nil
}

// Points converts every sample of exp to a point tagged with run id, ssid and band. Samples
// without any metric are dropped.
func Points(exp *analysis.Export) ([]*write.Point, error) {
	var points []*write.Point
	for i := range exp.Runs {
		run := &exp.Runs[i]
		for j := range run.TimeSeries {
			p := &run.TimeSeries[j]
			fields := map[string]interface{}{}
			for m := analysis.Metric(0); m < analysis.NumMetrics; m++ {
				if v := p.Value(m); v != nil {
					fields[analysis.MetricFields[m]] = *v
				}
			}
			if len(fields) == 0 {
				continue
			}
			ts, err := analysis.ParseTimestamp(p.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", run.RunID, err)
			}
			tags := map[string]string{"run_id": run.RunID, "ssid": p.SSID}
			if ns, ok := run.Stats[p.SSID]; ok && ns.Band != nil {
				tags["band"] = *ns.Band
			}
			points = append(points, influxdb2.NewPoint(Measurement, tags, fields, ts))
		}
	}
	return points, nil
}
