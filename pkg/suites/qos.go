// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
)

const (
	TemplateBufferAlpha = "buffer-alpha"
	keyDynamicTh        = "dynamic_th"
)

func makeQoSSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "QoS Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "DoRoCE modes",
			F:    tc.doroceModesTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
		{
			Name: "Buffer alpha",
			F:    tc.bufferAlphaTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

// checkPools verifies the buffer pools a DoRoCE mode is expected to create.
func checkPools(mode sonic.DoRoCEMode, cfg *sonic.BufferConfig) error {
	if mode == sonic.DoRoCELossy {
		return nil
	}

	lossless, ingress := 0, 0
	for name, pool := range cfg.Pools {
		if strings.Contains(name, "lossless") {
			lossless++
		}
		if pool["type"] == "ingress" {
			ingress++
		}
	}

	if lossless == 0 {
		return fmt.Errorf("no lossless buffer pool in %s mode", mode) //nolint:goerr113
	}
	if mode == sonic.DoRoCELosslessDoubleIPool && ingress < 2 {
		return fmt.Errorf("expected at least 2 ingress pools in %s mode, got %d", mode, ingress) //nolint:goerr113
	}

	return nil
}

func (tc *TestCtx) doroceModesTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	initial, err := sw.DoRoCE.Status(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting doroce status: %w", err)
	}

	reverts := []runner.RevertFunc{
		func(ctx context.Context) error {
			if initial.Enabled {
				return sw.DoRoCE.Enable(ctx, initial.Mode)
			}

			return sw.DoRoCE.Disable(ctx)
		},
	}

	for _, mode := range sonic.DoRoCEModes {
		if err := sw.DoRoCE.Enable(ctx, mode); err != nil {
			return false, reverts, fmt.Errorf("enabling doroce %s: %w", mode, err)
		}

		err := tc.poll(ctx, func(ctx context.Context) error {
			status, err := sw.DoRoCE.Status(ctx)
			if err != nil {
				return err
			}
			if !status.Enabled || status.Mode != mode {
				return fmt.Errorf("doroce status is %+v, expected %s", *status, mode) //nolint:goerr113
			}

			cfg, err := sw.Buffer.Configuration(ctx)
			if err != nil {
				return err
			}

			return checkPools(mode, cfg)
		})
		if err != nil {
			return false, reverts, err
		}
	}

	return false, reverts, nil
}

func (tc *TestCtx) bufferAlphaTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	cfg, err := sw.Buffer.Configuration(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("getting buffer configuration: %w", err)
	}

	profile := ""
	for _, name := range slices.Sorted(maps.Keys(cfg.Profiles)) {
		if _, ok := cfg.Profiles[name][keyDynamicTh]; ok {
			profile = name

			break
		}
	}
	if profile == "" {
		return true, nil, fmt.Errorf("no buffer profile with dynamic threshold") //nolint:goerr113
	}

	current, err := strconv.Atoi(cfg.Profiles[profile][keyDynamicTh])
	if err != nil {
		return false, nil, fmt.Errorf("parsing %s of %s: %w", keyDynamicTh, profile, err)
	}
	alpha := current + 1
	if alpha > sonic.MaxAlpha {
		alpha = current - 1
	}

	reverts, err := tc.apply(ctx, TemplateBufferAlpha, map[string]any{
		"profile": profile,
		"alpha":   strconv.Itoa(alpha),
	})
	if err != nil {
		return false, reverts, err
	}

	err = tc.poll(ctx, func(ctx context.Context) error {
		cfg, err := sw.Buffer.Configuration(ctx)
		if err != nil {
			return err
		}
		if got := cfg.Profiles[profile][keyDynamicTh]; got != strconv.Itoa(alpha) {
			return fmt.Errorf("%s %s is %q, expected %d", profile, keyDynamicTh, got, alpha) //nolint:goerr113
		}

		return nil
	})
	if err != nil {
		return false, reverts, err
	}

	return false, reverts, nil
}
