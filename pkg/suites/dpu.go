// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
)

func makeDPUSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "DPU Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "DPU modules online",
			F:    tc.dpuOnlineTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
				NoDPU:     true,
			},
		},
		{
			Name: "DPU midplane reachability",
			F:    tc.dpuMidplaneTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
				NoDPU:     true,
			},
		},
		{
			Name: "DPU power cycle",
			F:    tc.dpuPowerCycleTest,
			SkipFlags: runner.SkipFlags{
				ExtendedOnly: true,
				SONiCOnly:    true,
				NoDPU:        true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func findModule(modules []sonic.Module, name string) (sonic.Module, bool) {
	for _, m := range modules {
		if m.Name == name {
			return m, true
		}
	}

	return sonic.Module{}, false
}

func (tc *TestCtx) waitModule(ctx context.Context, sw *sonic.Device, name string, online bool) error {
	return tc.poll(ctx, func(ctx context.Context) error {
		modules, err := sw.DPU.Modules(ctx)
		if err != nil {
			return err
		}

		m, ok := findModule(modules, name)
		if !ok {
			return fmt.Errorf("dpu %s not found", name) //nolint:goerr113
		}
		if m.Online() != online {
			return fmt.Errorf("dpu %s oper status is %q", name, m.Oper) //nolint:goerr113
		}

		return nil
	})
}

// waitUnreachable polls the midplane status until the DPU stops answering.
func (tc *TestCtx) waitUnreachable(ctx context.Context, sw *sonic.Device, name string) error {
	return tc.poll(ctx, func(ctx context.Context) error {
		statuses, err := sw.DPU.Midplane(ctx)
		if err != nil {
			return err
		}

		for _, status := range statuses {
			if status.Name == name && status.Reachable {
				return fmt.Errorf("dpu %s still reachable at %s", name, status.IP) //nolint:goerr113
			}
		}

		return nil
	})
}

func (tc *TestCtx) dpuOnlineTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	modules, err := sw.DPU.Modules(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting modules: %w", err)
	}

	offline := []string{}
	for _, name := range tc.DPUs {
		m, ok := findModule(modules, name)
		if !ok {
			offline = append(offline, name+" (missing)")

			continue
		}
		if !m.Online() {
			offline = append(offline, fmt.Sprintf("%s (%s)", name, m.Oper))
		}
	}
	if len(offline) > 0 {
		return false, nil, fmt.Errorf("dpus not online: %s", strings.Join(offline, ", ")) //nolint:goerr113
	}

	return false, nil, nil
}

func (tc *TestCtx) dpuMidplaneTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	for _, name := range tc.DPUs {
		status, err := sw.DPU.WaitReachable(ctx, name, tc.Opts.Attempts, tc.Opts.Delay)
		if err != nil {
			return false, nil, fmt.Errorf("waiting for dpu %s: %w", name, err)
		}
		slog.Debug("DPU reachable", "dpu", name, "ip", status.IP)
	}

	return false, nil, nil
}

func (tc *TestCtx) dpuPowerCycleTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	name := tc.DPUs[0]
	if err := sw.DPU.Shutdown(ctx, name); err != nil {
		return false, nil, fmt.Errorf("shutting down dpu %s: %w", name, err)
	}
	reverts := []runner.RevertFunc{
		func(ctx context.Context) error {
			return sw.DPU.Startup(ctx, name)
		},
	}

	if err := tc.waitModule(ctx, sw, name, false); err != nil {
		return false, reverts, fmt.Errorf("waiting for dpu %s to go offline: %w", name, err)
	}
	if err := tc.waitUnreachable(ctx, sw, name); err != nil {
		return false, reverts, fmt.Errorf("waiting for dpu %s to leave the midplane: %w", name, err)
	}

	if err := sw.DPU.Startup(ctx, name); err != nil {
		return false, reverts, fmt.Errorf("starting up dpu %s: %w", name, err)
	}
	if err := tc.waitModule(ctx, sw, name, true); err != nil {
		return false, reverts, fmt.Errorf("waiting for dpu %s to come online: %w", name, err)
	}

	// midplane address comes from dhcp so it lags behind the module status
	status, err := sw.DPU.WaitReachable(ctx, name, tc.Opts.Attempts, tc.Opts.Delay)
	if err != nil {
		return false, reverts, fmt.Errorf("waiting for dpu %s midplane: %w", name, err)
	}
	slog.Info("DPU back after power cycle", "dpu", name, "ip", status.IP)

	return false, reverts, nil
}
