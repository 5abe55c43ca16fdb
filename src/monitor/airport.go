package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

var (
	// ErrMetricsUnavailable is returned when the radio metrics cannot be read.
	ErrMetricsUnavailable = errors.New("physical metrics unavailable")
	// ErrNotAssociated is returned by CurrentSSID when the interface has no network.
	ErrNotAssociated = errors.New("not associated with a network")
)

const (
	systemProfiler = "system_profiler"
	networkSetup   = "networksetup"
)

// RadioSource reports link-layer metrics of the current association.
type RadioSource interface {
	Metrics(ctx context.Context) (types.PhysicalMetrics, error)
	CurrentSSID(ctx context.Context) (string, error)
}

// AirportSource reads macOS Wi-Fi state with system_profiler and networksetup.
type AirportSource struct {
	Runner    CommandRunner
	Interface string
}

// NewAirportSource returns a source for iface that runs the real tools.
func NewAirportSource(iface string) *AirportSource {
	return &AirportSource{Runner: ExecRunner{}, Interface: iface}
}

func (a *AirportSource) runner() CommandRunner {
	if a.Runner == nil {
		return ExecRunner{}
	}
	return a.Runner
}

// Metrics returns rssi, noise, mcs index, channel and band. Fields the tool does not print are nil.
func (a *AirportSource) Metrics(ctx context.Context) (types.PhysicalMetrics, error) {
	res, err := a.runner().Run(ctx, systemProfiler, "SPAirPortDataType")
	if err != nil {
		return types.PhysicalMetrics{}, fmt.Errorf("%w: %v", ErrMetricsUnavailable, err)
	}
	if res.ExitCode != 0 {
		return types.PhysicalMetrics{}, fmt.Errorf("%w: %s exited with %d: %s", ErrMetricsUnavailable, systemProfiler, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return ParseAirport(string(res.Stdout)), nil
}

// CurrentSSID returns the network the interface is associated with.
func (a *AirportSource) CurrentSSID(ctx context.Context) (string, error) {
	res, err := a.runner().Run(ctx, networkSetup, "-getairportnetwork", a.Interface)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(string(res.Stdout))
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s -getairportnetwork exited with %d: %s", networkSetup, res.ExitCode, out)
	}
	const marker = "Current Wi-Fi Network:"
	if i := strings.Index(out, marker); i >= 0 {
		return strings.TrimSpace(out[i+len(marker):]), nil
	}
	return "", ErrNotAssociated
}

var (
	reChannel = regexp.MustCompile(`^Channel:\s*(\d+)(?:\s*\(([^,)]+))?`)
	reSignal  = regexp.MustCompile(`^Signal / Noise:\s*(-?\d+)\s*dBm\s*/\s*(-?\d+)\s*dBm`)
	reMCS     = regexp.MustCompile(`^MCS Index:\s*(\d+)`)
)

// ParseAirport extracts the current network's metrics from `system_profiler SPAirPortDataType`
// output. Only the "Current Network Information" block is considered.
func ParseAirport(out string) types.PhysicalMetrics {
	var pm types.PhysicalMetrics
	sc := bufio.NewScanner(strings.NewReader(out))
	inCurrent := false
	blockIndent := -1
	for sc.Scan() {
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		if strings.HasPrefix(line, "Current Network Information:") {
			inCurrent, blockIndent = true, indent
			continue
		}
		if !inCurrent {
			continue
		}
		if indent <= blockIndent {
			// next sibling section, e.g. "Other Local Wi-Fi Networks:"
			break
		}
		if m := reChannel.FindStringSubmatch(line); m != nil {
			if c, err := strconv.Atoi(m[1]); err == nil {
				pm.Channel = types.Int(c)
			}
			if len(m) > 2 && m[2] != "" {
				pm.Band = normalizeBand(m[2])
			}
			continue
		}
		if m := reSignal.FindStringSubmatch(line); m != nil {
			rssi, _ := strconv.Atoi(m[1])
			noise, _ := strconv.Atoi(m[2])
			pm.RSSI, pm.Noise = types.Int(rssi), types.Int(noise)
			continue
		}
		if m := reMCS.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				pm.MCSIndex = types.Int(v)
			}
		}
	}
	return pm
}

// normalizeBand maps the tool's band label to the labels used in the log.
func normalizeBand(s string) *string {
	switch strings.ReplaceAll(strings.TrimSpace(s), " ", "") {
	case "2GHz", "2.4GHz":
		return types.String(types.Band24GHz)
	case "5GHz":
		return types.String(types.Band5GHz)
	case "6GHz":
		return types.String(types.Band6GHz)
	}
	return nil
}
