// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/runner"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	trafficCount       = 3
	trafficParallelism = 4
)

func makeFDBSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "FDB Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "MAC learning",
			F:    tc.macLearningTest,
			SkipFlags: runner.SkipFlags{
				NoHosts: true,
			},
		},
		{
			Name: "FDB clear",
			F:    tc.fdbClearTest,
			SkipFlags: runner.SkipFlags{
				NoHosts: true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func (h *Host) mac(ctx context.Context) (string, error) {
	if h.MAC != "" {
		h.MAC = dut.NormalizeMAC(h.MAC)

		return h.MAC, nil
	}

	out, err := h.Engine.Run(ctx, shellutil.Join("cat", "/sys/class/net/"+h.Iface+"/address"))
	if err != nil {
		return "", fmt.Errorf("getting mac of %s/%s: %w", h.Name, h.Iface, err)
	}

	mac := dut.NormalizeMAC(strings.TrimSpace(out))
	if mac == "" {
		return "", dut.UnexpectedOutput("cat /sys/class/net/"+h.Iface+"/address", out, "empty mac")
	}
	h.MAC = mac

	return mac, nil
}

// sendTraffic makes the host transmit a few frames so that the DUT learns its MAC.
// The peer doesn't have to answer, losses are expected.
func (h *Host) sendTraffic(ctx context.Context) error {
	target := h.Peer
	if target == "" {
		target = "255.255.255.255"
	}

	cmd := shellutil.Join("sudo", "ping", "-b", "-c", fmt.Sprintf("%d", trafficCount), "-W", "1", "-I", h.Iface, target) + " || true"
	if _, err := h.Engine.Run(ctx, cmd); err != nil {
		return fmt.Errorf("sending traffic from %s: %w", h.Name, err)
	}

	return nil
}

// learned returns the hosts whose MAC is in the FDB on their DUT port.
func (tc *TestCtx) learned(ctx context.Context) (map[string]bool, error) {
	entries, err := tc.Device.FDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting fdb: %w", err)
	}

	res := map[string]bool{}
	for _, host := range tc.Hosts {
		for _, entry := range entries {
			if entry.MAC != host.MAC || entry.Port != host.DUTPort {
				continue
			}
			if host.VLAN != 0 && entry.VLAN != host.VLAN {
				continue
			}
			res[host.Name] = true
		}
	}

	return res, nil
}

func (tc *TestCtx) learnAll(ctx context.Context) error {
	sem := semaphore.NewWeighted(trafficParallelism)
	g, gctx := errgroup.WithContext(ctx)
	for idx := range tc.Hosts {
		host := &tc.Hosts[idx]
		g.Go(func() error {
			if _, err := host.mac(gctx); err != nil {
				return err
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				return fmt.Errorf("acquiring traffic semaphore: %w", err)
			}
			defer sem.Release(1)

			return host.sendTraffic(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}

	return tc.poll(ctx, func(ctx context.Context) error {
		learned, err := tc.learned(ctx)
		if err != nil {
			return err
		}

		missing := []string{}
		for _, host := range tc.Hosts {
			if !learned[host.Name] {
				missing = append(missing, fmt.Sprintf("%s (%s on %s)", host.Name, host.MAC, host.DUTPort))
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("macs not learned: %s", strings.Join(missing, ", ")) //nolint:goerr113
		}

		return nil
	})
}

func (tc *TestCtx) macLearningTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	if err := tc.Device.ClearFDB(ctx); err != nil {
		return false, nil, fmt.Errorf("clearing fdb: %w", err)
	}

	if err := tc.learnAll(ctx); err != nil {
		return false, nil, err
	}

	slog.Debug("All host MACs learned", "dut", tc.Name, "hosts", len(tc.Hosts))

	return false, nil, nil
}

func (tc *TestCtx) fdbClearTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	if err := tc.learnAll(ctx); err != nil {
		return false, nil, err
	}

	if err := tc.Device.ClearFDB(ctx); err != nil {
		return false, nil, fmt.Errorf("clearing fdb: %w", err)
	}

	err := tc.poll(ctx, func(ctx context.Context) error {
		learned, err := tc.learned(ctx)
		if err != nil {
			return err
		}
		if len(learned) > 0 {
			return fmt.Errorf("%d host macs still in fdb", len(learned)) //nolint:goerr113
		}

		return nil
	})
	if err != nil {
		return false, nil, fmt.Errorf("fdb not cleared: %w", err)
	}

	return false, nil, nil
}
