package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AobaIwaki123/wifi-speed-bench/src/types"
)

const airportOutput = `Wi-Fi:

      Interfaces:
        en0:
          Status: Connected
          Current Network Information:
            MyNet_5GHz:
              PHY Mode: 802.11ax
              Channel: 100 (5GHz, 80MHz)
              Signal / Noise: -55 dBm / -95 dBm
              Transmit Rate: 780
              MCS Index: 9
          Other Local Wi-Fi Networks:
            Neighbour:
              Channel: 6 (2GHz, 20MHz)
              Signal / Noise: -80 dBm / -92 dBm
`

const airportOutputNoMCS = `Wi-Fi:

      Interfaces:
        en0:
          Current Network Information:
            MyNet_5GHz:
              Signal / Noise: -55 dBm / -95 dBm
`

// fakeRunner returns canned results keyed by the command line and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]CommandResult
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	if err, ok := f.errs[key]; ok {
		return CommandResult{}, err
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return CommandResult{ExitCode: 127}, nil
}

func TestParseAirport(t *testing.T) {
	pm := ParseAirport(airportOutput)
	require.NotNil(t, pm.RSSI)
	if *pm.RSSI != -55 || *pm.Noise != -95 {
		t.Fatalf("expected -55/-95 got %d/%d", *pm.RSSI, *pm.Noise)
	}
	assert.Equal(t, 9, *pm.MCSIndex)
	assert.Equal(t, 100, *pm.Channel)
	assert.Equal(t, types.Band5GHz, *pm.Band)
}

func TestParseAirport_MissingFields(t *testing.T) {
	pm := ParseAirport(airportOutputNoMCS)
	assert.Equal(t, -55, *pm.RSSI)
	assert.Nil(t, pm.MCSIndex)
	assert.Nil(t, pm.Channel)
	assert.Nil(t, pm.Band)

	empty := ParseAirport("Wi-Fi:\n  Interfaces:\n    en0:\n      Status: Off\n")
	assert.Nil(t, empty.RSSI)
}

func TestParseAirport_TwoGigBand(t *testing.T) {
	out := strings.Replace(airportOutput, "Channel: 100 (5GHz, 80MHz)", "Channel: 11 (2GHz, 20MHz)", 1)
	pm := ParseAirport(out)
	assert.Equal(t, 11, *pm.Channel)
	assert.Equal(t, types.Band24GHz, *pm.Band)
}

func TestAirportSource_Metrics(t *testing.T) {
	r := &fakeRunner{results: map[string]CommandResult{
		"system_profiler SPAirPortDataType": {Stdout: []byte(airportOutput)},
	}}
	src := &AirportSource{Runner: r, Interface: "en0"}
	pm, err := src.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -55, *pm.RSSI)
}

func TestAirportSource_CommandFails(t *testing.T) {
	r := &fakeRunner{results: map[string]CommandResult{
		"system_profiler SPAirPortDataType": {ExitCode: 1},
	}}
	_, err := (&AirportSource{Runner: r}).Metrics(context.Background())
	assert.ErrorIs(t, err, ErrMetricsUnavailable)

	r = &fakeRunner{errs: map[string]error{"system_profiler SPAirPortDataType": errors.New("exec: not found")}}
	_, err = (&AirportSource{Runner: r}).Metrics(context.Background())
	assert.ErrorIs(t, err, ErrMetricsUnavailable)
}

func TestAirportSource_CurrentSSID(t *testing.T) {
	r := &fakeRunner{results: map[string]CommandResult{
		"networksetup -getairportnetwork en0": {Stdout: []byte("Current Wi-Fi Network: Home 5G\n")},
		"networksetup -getairportnetwork en1": {Stdout: []byte("You are not associated with an AirPort network.\n")},
	}}
	ssid, err := (&AirportSource{Runner: r, Interface: "en0"}).CurrentSSID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Home 5G", ssid)

	_, err = (&AirportSource{Runner: r, Interface: "en1"}).CurrentSSID(context.Background())
	assert.ErrorIs(t, err, ErrNotAssociated)

	_, err = (&AirportSource{Runner: r, Interface: "en9"}).CurrentSSID(context.Background())
	assert.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "127")
}
