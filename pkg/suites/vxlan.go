// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
)

const (
	TemplateVXLAN = "vxlan-evpn"
	defaultNVO    = "nvo"
)

var errNoVXLAN = errors.New("no vxlan config for the dut")

func makeVXLANSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "VXLAN Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "VXLAN tunnel",
			F:    tc.vxlanTunnelTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
		{
			Name: "VXLAN remote VTEP",
			F:    tc.vxlanRemoteVTEPTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly: true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func (tc *TestCtx) vxlanNVO() string {
	if tc.VXLAN.NVO == "" {
		return defaultNVO
	}

	return tc.VXLAN.NVO
}

func (tc *TestCtx) vxlanParams() map[string]any {
	return map[string]any{
		"vtep":      tc.VXLAN.VTEP,
		"source_ip": tc.VXLAN.SourceIP,
		"nvo":       tc.vxlanNVO(),
		"vlan":      tc.VXLAN.VLAN,
		"vni":       tc.VXLAN.VNI,
	}
}

// setupVXLAN pushes the tunnel template and checks every show command reflects it.
func (tc *TestCtx) setupVXLAN(ctx context.Context, sw *sonic.Device) ([]runner.RevertFunc, error) {
	reverts, err := tc.apply(ctx, TemplateVXLAN, tc.vxlanParams())
	if err != nil {
		return reverts, err
	}

	vtep, err := sw.VXLAN.Interface(ctx)
	if err != nil {
		return reverts, fmt.Errorf("getting vxlan interface: %w", err)
	}
	if vtep == nil {
		return reverts, fmt.Errorf("no vtep configured after applying template") //nolint:goerr113
	}
	if vtep.Name != tc.VXLAN.VTEP || vtep.SourceIP != tc.VXLAN.SourceIP {
		return reverts, fmt.Errorf("unexpected vtep %s with source %s", vtep.Name, vtep.SourceIP) //nolint:goerr113
	}
	if vtep.NVO != tc.vxlanNVO() {
		return reverts, fmt.Errorf("vtep nvo is %q, expected %q", vtep.NVO, tc.vxlanNVO()) //nolint:goerr113
	}

	maps, err := sw.VXLAN.VLANVNIMap(ctx)
	if err != nil {
		return reverts, fmt.Errorf("getting vlan vni map: %w", err)
	}
	expected := sonic.VLANVNI{VLAN: fmt.Sprintf("Vlan%d", tc.VXLAN.VLAN), VNI: tc.VXLAN.VNI}
	if !slices.Contains(maps, expected) {
		return reverts, fmt.Errorf("vlan vni map %+v missing in %+v", expected, maps) //nolint:goerr113
	}

	tunnels, err := sw.VXLAN.Tunnels(ctx)
	if err != nil {
		return reverts, fmt.Errorf("getting tunnels: %w", err)
	}
	idx := slices.IndexFunc(tunnels, func(t sonic.Tunnel) bool {
		return t.Name == tc.VXLAN.VTEP
	})
	if idx < 0 {
		return reverts, fmt.Errorf("tunnel %s not found", tc.VXLAN.VTEP) //nolint:goerr113
	}
	if tunnels[idx].SourceIP != tc.VXLAN.SourceIP {
		return reverts, fmt.Errorf("tunnel %s source is %s, expected %s", tc.VXLAN.VTEP, tunnels[idx].SourceIP, tc.VXLAN.SourceIP) //nolint:goerr113
	}

	return reverts, nil
}

func (tc *TestCtx) vxlanTunnelTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}
	if tc.VXLAN == nil {
		return true, nil, errNoVXLAN
	}

	reverts, err := tc.setupVXLAN(ctx, sw)

	return false, reverts, err
}

func (tc *TestCtx) vxlanRemoteVTEPTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}
	if tc.VXLAN == nil {
		return true, nil, errNoVXLAN
	}
	if tc.VXLAN.RemoteVTEP == "" {
		return true, nil, fmt.Errorf("no remote vtep configured for %s", tc.Name) //nolint:goerr113
	}

	reverts, err := tc.setupVXLAN(ctx, sw)
	if err != nil {
		return false, reverts, err
	}

	err = tc.poll(ctx, func(ctx context.Context) error {
		remotes, err := sw.VXLAN.RemoteVTEPs(ctx)
		if err != nil {
			return err
		}

		for _, remote := range remotes {
			if remote.DestIP != tc.VXLAN.RemoteVTEP {
				continue
			}
			if !remote.IsUp() {
				return fmt.Errorf("remote vtep %s is %s", remote.DestIP, remote.OperStatus) //nolint:goerr113
			}

			return nil
		}

		return fmt.Errorf("remote vtep %s not discovered", tc.VXLAN.RemoteVTEP) //nolint:goerr113
	})
	if err != nil {
		return false, reverts, err
	}

	macs, err := sw.VXLAN.RemoteMACs(ctx, tc.VXLAN.RemoteVTEP)
	if err != nil {
		return false, reverts, fmt.Errorf("getting remote macs: %w", err)
	}
	slog.Info("Remote VTEP up", "dut", tc.Name, "remote", tc.VXLAN.RemoteVTEP, "macs", len(macs))

	return false, reverts, nil
}
