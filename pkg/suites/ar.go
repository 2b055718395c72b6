// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"fmt"

	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
)

const TemplateARPort = "ar-port"

func makeARSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "AR Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "AR port enable",
			F:    tc.arPortTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func checkAR(ctx context.Context, sw *sonic.Device, port string, enabled bool) error {
	cfg, err := sw.AR.Config(ctx)
	if err != nil {
		return err
	}
	if cfg.Enabled() != enabled {
		return fmt.Errorf("ar global mode is %q, expected enabled=%t", cfg.Global.Mode, enabled) //nolint:goerr113
	}
	if cfg.PortEnabled(port) != enabled {
		return fmt.Errorf("ar on %s isn't enabled=%t", port, enabled) //nolint:goerr113
	}

	return nil
}

func (tc *TestCtx) arPortTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}
	if len(tc.Ports) == 0 {
		return true, nil, fmt.Errorf("%w: no ports configured for %s", errNoPort, tc.Name)
	}
	port := tc.Ports[0]

	reverts, err := tc.apply(ctx, TemplateARPort, map[string]any{"port": port})
	if err != nil {
		return false, reverts, err
	}
	// reverts run last to first, so the check runs after the template cleanup
	reverts = append([]runner.RevertFunc{func(ctx context.Context) error {
		return tc.poll(ctx, func(ctx context.Context) error {
			return checkAR(ctx, sw, port, false)
		})
	}}, reverts...)

	if err := tc.poll(ctx, func(ctx context.Context) error {
		return checkAR(ctx, sw, port, true)
	}); err != nil {
		return false, reverts, err
	}

	return false, reverts, nil
}
