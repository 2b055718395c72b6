// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"

	"go.githedgehog.com/switchqa/pkg/dut"
)

const cmdShowBGPDeviceGlobal = "show bgp device-global --json"

// WCMP toggles weighted ECMP, configured through the BGP device-global table.
type WCMP struct {
	engine dut.Engine
}

type DeviceGlobal struct {
	TSA  string `json:"tsa"`
	WCMP string `json:"wcmp"`
}

func (w *WCMP) Set(ctx context.Context, enabled bool) error {
	return runDiscard(ctx, w.engine, sudo("config", "bgp", "device-global", "wcmp", enabledDisabled(enabled)))
}

func (w *WCMP) DeviceGlobal(ctx context.Context) (*DeviceGlobal, error) {
	dg := &DeviceGlobal{}
	if err := decodeJSON(ctx, w.engine, cmdShowBGPDeviceGlobal, dg); err != nil {
		return nil, err
	}

	return dg, nil
}

func (w *WCMP) Status(ctx context.Context) (bool, error) {
	dg, err := w.DeviceGlobal(ctx)
	if err != nil {
		return false, err
	}

	switch dg.WCMP {
	case "enabled":
		return true, nil
	case "disabled":
		return false, nil
	default:
		return false, dut.UnexpectedOutput(cmdShowBGPDeviceGlobal, dg.WCMP, "unknown wcmp state")
	}
}
