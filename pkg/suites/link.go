// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/runner"
)

const testMTU = 9000

var errNoPort = errors.New("no suitable port")

func makeLinkSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "Link Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "Link admin down/up",
			F:    tc.linkFlapTest,
		},
		{
			Name: "Link MTU",
			F:    tc.linkMTUTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

// upPort returns the first configured port that's oper up.
func (tc *TestCtx) upPort(ctx context.Context) (*dut.Link, error) {
	if len(tc.Ports) == 0 {
		return nil, fmt.Errorf("%w: no ports configured for %s", errNoPort, tc.Name)
	}

	links, err := tc.Device.Links(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting links: %w", err)
	}

	for _, name := range tc.Ports {
		if link, ok := dut.FindLink(links, name); ok && link.IsUp() {
			return &link, nil
		}
	}

	return nil, fmt.Errorf("%w: none of %v is up", errNoPort, tc.Ports)
}

func (tc *TestCtx) waitLink(ctx context.Context, name, oper string) error {
	return tc.poll(ctx, func(ctx context.Context) error {
		links, err := tc.Device.Links(ctx)
		if err != nil {
			return err
		}

		link, ok := dut.FindLink(links, name)
		if !ok {
			return fmt.Errorf("link %s not found", name) //nolint:goerr113
		}
		if link.Oper != oper {
			return fmt.Errorf("link %s oper is %q, expected %q", name, link.Oper, oper) //nolint:goerr113
		}

		return nil
	})
}

func (tc *TestCtx) linkFlapTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	link, err := tc.upPort(ctx)
	if err != nil {
		return true, nil, err
	}

	reverts := []runner.RevertFunc{
		func(ctx context.Context) error {
			return tc.Device.SetLinkAdmin(ctx, link.Name, true)
		},
	}

	slog.Debug("Shutting down link", "dut", tc.Name, "link", link.Name)
	if err := tc.Device.SetLinkAdmin(ctx, link.Name, false); err != nil {
		return false, reverts, fmt.Errorf("shutting down %s: %w", link.Name, err)
	}
	if err := tc.waitLink(ctx, link.Name, dut.StateDown); err != nil {
		return false, reverts, fmt.Errorf("link didn't go down: %w", err)
	}

	slog.Debug("Starting up link", "dut", tc.Name, "link", link.Name)
	if err := tc.Device.SetLinkAdmin(ctx, link.Name, true); err != nil {
		return false, reverts, fmt.Errorf("starting up %s: %w", link.Name, err)
	}
	if err := tc.waitLink(ctx, link.Name, dut.StateUp); err != nil {
		return false, reverts, fmt.Errorf("link didn't come back up: %w", err)
	}

	return false, reverts, nil
}

func (tc *TestCtx) linkMTUTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	link, err := tc.upPort(ctx)
	if err != nil {
		return true, nil, err
	}

	mtu := testMTU
	if link.MTU == testMTU {
		mtu = testMTU - 100
	}

	reverts := []runner.RevertFunc{
		func(ctx context.Context) error {
			return sw.Interfaces.SetMTU(ctx, link.Name, link.MTU)
		},
	}

	if err := sw.Interfaces.SetMTU(ctx, link.Name, mtu); err != nil {
		return false, reverts, fmt.Errorf("setting mtu: %w", err)
	}

	err = tc.poll(ctx, func(ctx context.Context) error {
		port, err := sw.Interfaces.Port(ctx, link.Name)
		if err != nil {
			return err
		}
		if port.MTU != mtu {
			return fmt.Errorf("%s mtu is %d, expected %d", link.Name, port.MTU, mtu) //nolint:goerr113
		}

		return nil
	})
	if err != nil {
		return false, reverts, err
	}

	if err := sw.Interfaces.WaitOper(ctx, link.Name, dut.StateUp, tc.Opts.Attempts, tc.Opts.Delay); err != nil {
		return false, reverts, err
	}

	return false, reverts, nil
}
