// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.githedgehog.com/switchqa/pkg/dut/duttest"
)

func TestDPUPowerCycle(t *testing.T) {
	f := duttest.New().
		OnMatch(`^sudo config chassis modules (shutdown|startup) DPU0$`).
		On("show chassis modules status", showModulesDPU0Offline, showModulesDPU0Online).
		On("show chassis modules midplane-status", showMidplaneDPU0Down, showMidplaneDPU0Up)
	tc := newTestCtx(t, f)
	tc.DPUs = []string{"DPU0"}

	skip, err := runTest(t, tc.dpuPowerCycleTest)
	require.NoError(t, err)
	require.False(t, skip)

	require.Equal(t, 1, f.Count("sudo config chassis modules shutdown DPU0"))
	// once by the test and once by the revert
	require.Equal(t, 2, f.Count("sudo config chassis modules startup DPU0"))
}

func TestDPUPowerCycleFailures(t *testing.T) {
	for _, test := range []struct {
		name     string
		modules  []string
		midplane []string
		err      string
	}{
		{
			name:     "never offline",
			modules:  []string{showModulesDPU0Online},
			midplane: []string{showMidplaneDPU0Up},
			err:      "waiting for dpu DPU0 to go offline",
		},
		{
			name:     "still on the midplane",
			modules:  []string{showModulesDPU0Offline, showModulesDPU0Online},
			midplane: []string{showMidplaneDPU0Up},
			err:      "waiting for dpu DPU0 to leave the midplane: retries exhausted after 3 attempts: dpu DPU0 still reachable at 169.254.200.1",
		},
		{
			name:     "no lease after startup",
			modules:  []string{showModulesDPU0Offline, showModulesDPU0Online},
			midplane: []string{showMidplaneDPU0Down},
			err:      "waiting for dpu DPU0 midplane",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			f := duttest.New().
				OnMatch(`^sudo config chassis modules (shutdown|startup) DPU0$`).
				On("show chassis modules status", test.modules...).
				On("show chassis modules midplane-status", test.midplane...)
			tc := newTestCtx(t, f)
			tc.DPUs = []string{"DPU0"}

			_, err := runTest(t, tc.dpuPowerCycleTest)
			require.ErrorContains(t, err, test.err)
			require.Positive(t, f.Count("sudo config chassis modules startup DPU0"))
		})
	}
}
