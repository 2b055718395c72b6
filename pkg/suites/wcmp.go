// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"fmt"

	"go.githedgehog.com/switchqa/pkg/runner"
)

const TemplateWCMP = "wcmp"

func makeWCMPSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "WCMP Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "WCMP enable",
			F:    tc.wcmpTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func (tc *TestCtx) wcmpTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	reverts, err := tc.apply(ctx, TemplateWCMP, nil)
	if err != nil {
		return false, reverts, err
	}

	err = tc.poll(ctx, func(ctx context.Context) error {
		enabled, err := sw.WCMP.Status(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			return fmt.Errorf("wcmp isn't enabled") //nolint:goerr113
		}

		return nil
	})
	if err != nil {
		return false, reverts, err
	}

	return false, reverts, nil
}
