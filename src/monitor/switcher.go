package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/benbjohnson/clock"

	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
)

// ErrSwitchFailed is returned when the interface could not join the requested network.
var ErrSwitchFailed = errors.New("network switch failed")

// DefaultSwitchWait is how long the link is given to settle after joining a network.
const DefaultSwitchWait = 10 * time.Second

// Switcher joins a network.
type Switcher interface {
	Switch(ctx context.Context, ssid string) error
}

// NetworkSwitcher joins networks with `networksetup -setairportnetwork`.
type NetworkSwitcher struct {
	Runner     CommandRunner
	Interface  string
	Attempts   uint          // total tries, at least 1
	RetryDelay time.Duration // pause between tries
	Wait       time.Duration // settle time after a successful join
	Clock      clock.Clock
}

// NewNetworkSwitcher returns a switcher for iface that runs the real tool.
func NewNetworkSwitcher(iface string, attempts uint, wait time.Duration) *NetworkSwitcher {
	return &NetworkSwitcher{
		Runner:     ExecRunner{},
		Interface:  iface,
		Attempts:   attempts,
		RetryDelay: 2 * time.Second,
		Wait:       wait,
		Clock:      clock.New(),
	}
}

// Switch joins ssid, then blocks for the settle time. Cancelling ctx aborts the wait.
func (s *NetworkSwitcher) Switch(ctx context.Context, ssid string) error {
	attempts := s.Attempts
	if attempts == 0 {
		attempts = 1
	}
	runner := s.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	err := retry.Do(
		func() error { return s.join(ctx, runner, ssid) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(s.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.Warnf("[switch] attempt %d for %s failed: %v", n+1, ssid, err)
		}),
	)
	if err != nil {
		return err
	}
	logging.Infof("[switch] joined %s, waiting %s", ssid, s.Wait)
	if s.Wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(s.Wait):
		return nil
	}
}

func (s *NetworkSwitcher) join(ctx context.Context, runner CommandRunner, ssid string) error {
	res, err := runner.Run(ctx, networkSetup, "-setairportnetwork", s.Interface, ssid)
	if err != nil {
		// the tool is missing; trying again will not help
		return retry.Unrecoverable(fmt.Errorf("%w: %s: %v", ErrSwitchFailed, ssid, err))
	}
	// networksetup can exit 0 and still print a failure
	out := strings.TrimSpace(string(res.Stdout) + " " + string(res.Stderr))
	if res.ExitCode != 0 || strings.Contains(out, "Could not find network") || strings.Contains(out, "Error") {
		return fmt.Errorf("%w: %s: exit %d: %s", ErrSwitchFailed, ssid, res.ExitCode, out)
	}
	return nil
}
