package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/showwin/speedtest-go/speedtest"

	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

// ErrProbeFailed is returned when a throughput measurement does not complete.
var ErrProbeFailed = errors.New("throughput probe failed")

// Prober measures throughput over the current association.
type Prober interface {
	Probe(ctx context.Context) (types.SpeedMetrics, error)
}

// SpeedtestProbe measures against the closest speedtest.net server.
type SpeedtestProbe struct {
	client *speedtest.Speedtest
}

func NewSpeedtestProbe() *SpeedtestProbe {
	return &SpeedtestProbe{client: speedtest.New()}
}

// Probe runs ping, download and upload tests. Rates are in Mbps, latency in milliseconds.
func (p *SpeedtestProbe) Probe(ctx context.Context) (types.SpeedMetrics, error) {
	defer logging.TimeTrack(time.Now(), "[probe] speedtest")
	servers, err := p.client.FetchServerListContext(ctx)
	if err != nil {
		return types.SpeedMetrics{}, fmt.Errorf("%w: fetch servers: %v", ErrProbeFailed, err)
	}
	targets, err := servers.FindServer([]int{})
	if err != nil || len(targets) == 0 {
		return types.SpeedMetrics{}, fmt.Errorf("%w: no server: %v", ErrProbeFailed, err)
	}
	s := targets[0]
	logging.Debugf("[probe] server %s (%s) %.1fkm", s.Name, s.Sponsor, s.Distance)
	return measureServer(ctx, liveServer{s})
}

// speedServer is the part of a speedtest server one measurement drives.
type speedServer interface {
	PingTestContext(ctx context.Context, callback func(latency time.Duration)) error
	DownloadTestContext(ctx context.Context) error
	UploadTestContext(ctx context.Context) error
	Result() types.SpeedMetrics
	// Reset clears the transfer counters shared by consecutive tests.
	Reset()
}

type liveServer struct{ *speedtest.Server }

func (l liveServer) Result() types.SpeedMetrics {
	return types.SpeedMetrics{
		DownloadMbps: l.DLSpeed.Mbps(),
		UploadMbps:   l.ULSpeed.Mbps(),
		PingMs:       float64(l.Latency) / float64(time.Millisecond),
	}
}

func (l liveServer) Reset() { l.Context.Reset() }

// measureServer runs ping, download and upload in order and resets the counters whether or
// not a test fails.
func measureServer(ctx context.Context, srv speedServer) (types.SpeedMetrics, error) {
	defer srv.Reset()
	if err := srv.PingTestContext(ctx, nil); err != nil {
		return types.SpeedMetrics{}, fmt.Errorf("%w: ping: %v", ErrProbeFailed, err)
	}
	if err := srv.DownloadTestContext(ctx); err != nil {
		return types.SpeedMetrics{}, fmt.Errorf("%w: download: %v", ErrProbeFailed, err)
	}
	if err := srv.UploadTestContext(ctx); err != nil {
		return types.SpeedMetrics{}, fmt.Errorf("%w: upload: %v", ErrProbeFailed, err)
	}
	return srv.Result(), nil
}

var _ speedServer = liveServer{}
