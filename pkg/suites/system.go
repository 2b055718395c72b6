// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
	"go.githedgehog.com/switchqa/pkg/util/retry"
)

const downCheckTimeout = 10 * time.Second

func makeSystemSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "System Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "Version facts",
			F:    tc.versionTest,
		},
		{
			Name: "Critical services",
			F:    tc.criticalServicesTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
		{
			Name: "Config save",
			F:    tc.configSaveTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
		{
			Name: "Power cycle recovery",
			F:    tc.powerCycleTest,
			SkipFlags: runner.SkipFlags{
				ExtendedOnly: true,
				NoPower:      true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func (tc *TestCtx) versionTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	info, err := tc.Device.Info(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting info: %w", err)
	}

	if info.OS != tc.OS {
		return false, nil, fmt.Errorf("dut reports os %q, expected %q", info.OS, tc.OS) //nolint:goerr113
	}
	if info.Hostname == "" || info.Version == "" {
		return false, nil, fmt.Errorf("incomplete dut info: %+v", *info) //nolint:goerr113
	}
	if tc.OS == dut.OSSONiC && (info.Platform == "" || info.HwSKU == "") {
		return false, nil, fmt.Errorf("no platform or hwsku reported: %+v", *info) //nolint:goerr113
	}

	semver := "unknown"
	if ver, err := dut.SemVer(info.Version); err != nil {
		slog.Warn("Version isn't semver-like, version based skip rules won't apply", "version", info.Version, "err", err)
	} else {
		semver = ver.String()
	}

	slog.Info("DUT facts", "hostname", info.Hostname, "version", info.Version, "release", dut.Release(info.Version),
		"semver", semver, "platform", info.Platform, "hwsku", info.HwSKU, "asic", info.ASIC)

	return false, nil, nil
}

func (tc *TestCtx) criticalServicesTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	inactive := []string{}
	for _, name := range sonic.CriticalServices {
		active, err := sw.System.ServiceActive(ctx, name)
		if err != nil {
			return false, nil, fmt.Errorf("checking service %s: %w", name, err)
		}
		if !active {
			inactive = append(inactive, name)
		}
	}
	if len(inactive) > 0 {
		return false, nil, fmt.Errorf("critical services not active: %s", strings.Join(inactive, ", ")) //nolint:goerr113
	}

	return false, nil, nil
}

func jsonEqual(a, b []byte) (bool, error) {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false, fmt.Errorf("unmarshalling: %w", err)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false, fmt.Errorf("unmarshalling: %w", err)
	}

	return reflect.DeepEqual(av, bv), nil
}

// configSaveTest saves the config and checks that the running config is still the same.
func (tc *TestCtx) configSaveTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	before, err := sw.System.RunningConfig(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting running config: %w", err)
	}

	if err := sw.System.SaveConfig(ctx); err != nil {
		return false, nil, fmt.Errorf("saving config: %w", err)
	}

	after, err := sw.System.RunningConfig(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting running config after save: %w", err)
	}

	equal, err := jsonEqual(before, after)
	if err != nil {
		return false, nil, err
	}
	if !equal {
		return false, nil, fmt.Errorf("running config changed after config save") //nolint:goerr113
	}

	return false, nil, nil
}

// waitDown polls the DUT until it stops answering or timeout passes.
func (tc *TestCtx) waitDown(ctx context.Context, timeout time.Duration) error {
	return retry.Until(ctx, timeout, tc.Opts.Delay, func(ctx context.Context) (bool, error) {
		checkCtx, cancel := context.WithTimeout(ctx, downCheckTimeout)
		defer cancel()

		_, err := dut.BootID(checkCtx, tc.Engine)

		// a check cut short by the deadline isn't an outage
		return err != nil && ctx.Err() == nil, nil
	})
}

// powerCycleTest cycles all PSUs of the DUT, makes sure it went down and came
// back rebooted with the same identity.
func (tc *TestCtx) powerCycleTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	if tc.Power == nil || len(tc.Outlets) == 0 {
		return true, nil, fmt.Errorf("no pdu outlets for %s", tc.Name) //nolint:goerr113
	}

	before, err := tc.Device.Info(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting info: %w", err)
	}
	bootBefore, err := dut.BootID(ctx, tc.Engine)
	if err != nil {
		return false, nil, fmt.Errorf("getting boot id: %w", err)
	}

	slog.Info("Power cycling DUT", "dut", tc.Name, "psus", len(tc.Outlets))
	start := time.Now()
	if err := tc.Power.CycleAll(ctx, tc.Outlets); err != nil {
		return false, nil, fmt.Errorf("power cycling: %w", err)
	}

	// the pdu cycles outlets asynchronously
	if err := tc.waitDown(ctx, tc.Opts.RebootTimeout); err != nil {
		return false, nil, fmt.Errorf("dut didn't go down after power cycle: %w", err)
	}
	slog.Debug("DUT went down", "dut", tc.Name, "after", time.Since(start).Round(time.Second))

	waitCtx, cancel := context.WithTimeout(ctx, tc.Opts.RebootTimeout)
	defer cancel()

	if tc.WaitReachable != nil {
		if err := tc.WaitReachable(waitCtx); err != nil {
			return false, nil, fmt.Errorf("waiting for dut after power cycle: %w", err)
		}
	}

	if err := tc.ready(waitCtx, false); err != nil {
		return false, nil, fmt.Errorf("waiting for services after power cycle: %w", err)
	}

	bootAfter, err := dut.BootID(ctx, tc.Engine)
	if err != nil {
		return false, nil, fmt.Errorf("getting boot id after power cycle: %w", err)
	}
	if bootAfter == bootBefore {
		return false, nil, fmt.Errorf("boot id %s unchanged, dut didn't reboot", bootAfter) //nolint:goerr113
	}

	after, err := tc.Device.Info(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting info after power cycle: %w", err)
	}
	if after.Hostname != before.Hostname || after.Version != before.Version {
		return false, nil, fmt.Errorf("dut came back as %s %s, expected %s %s", after.Hostname, after.Version, before.Hostname, before.Version) //nolint:goerr113
	}

	slog.Info("DUT recovered after power cycle", "dut", tc.Name, "took", time.Since(start).Round(time.Second))

	return false, nil, nil
}
