// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/dut/duttest"
	"go.githedgehog.com/switchqa/pkg/util/retry"
)

func TestAR(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		OnMatch(`^sudo config (ar|interface ar) `).
		On("show ar config --json", `{"global": {"mode": "enabled", "profile": "default"}, "ports": {"Ethernet0": {"mode": "enabled"}, "Ethernet4": {"mode": "disabled"}}}`)
	d := New(f)

	require.NoError(t, d.AR.SetGlobal(ctx, true))
	require.NoError(t, d.AR.SetProfile(ctx, "default"))
	require.NoError(t, d.AR.SetPort(ctx, "Ethernet0", true))
	require.NoError(t, d.AR.SetPort(ctx, "Ethernet0", false))
	require.NoError(t, d.AR.SetGlobal(ctx, false))

	cfg, err := d.AR.Config(ctx)
	require.NoError(t, err)
	require.True(t, cfg.Enabled())
	require.Equal(t, "default", cfg.Global.Profile)
	require.True(t, cfg.PortEnabled("Ethernet0"))
	require.False(t, cfg.PortEnabled("Ethernet4"))
	require.False(t, cfg.PortEnabled("Ethernet8"))

	require.Equal(t, []string{
		"sudo config ar enabled",
		"sudo config ar profile set default",
		"sudo config interface ar enabled Ethernet0",
		"sudo config interface ar disabled Ethernet0",
		"sudo config ar disabled",
		"show ar config --json",
	}, f.Commands())
}

func TestARConfigNotJSON(t *testing.T) {
	f := duttest.New().On("show ar config --json", "Usage: show ar [OPTIONS]\n")

	_, err := New(f).AR.Config(context.Background())
	require.ErrorIs(t, err, dut.ErrUnexpectedOutput)
}

func TestDoRoCE(t *testing.T) {
	ctx := context.Background()

	for _, test := range []struct {
		name     string
		out      string
		expected *DoRoCEStatus
		err      bool
	}{
		{
			name:     "lossless",
			out:      "DoRoCE status: enabled\nDoRoCE mode: lossless\n",
			expected: &DoRoCEStatus{Enabled: true, Mode: DoRoCELossless},
		},
		{
			name:     "double ipool",
			out:      "DoRoCE is enabled\nMode: lossless_double_ipool\n",
			expected: &DoRoCEStatus{Enabled: true, Mode: DoRoCELosslessDoubleIPool},
		},
		{
			name:     "disabled",
			out:      "DoRoCE is disabled\n",
			expected: &DoRoCEStatus{},
		},
		{
			name: "enabled without mode",
			out:  "DoRoCE status: enabled\n",
			err:  true,
		},
		{
			name: "garbage",
			out:  "Error: not supported\n",
			err:  true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			f := duttest.New().On("show doroce status", test.out)

			status, err := New(f).DoRoCE.Status(ctx)
			if test.err {
				require.ErrorIs(t, err, dut.ErrUnexpectedOutput)

				return
			}

			require.NoError(t, err)
			require.Equal(t, test.expected, status)
		})
	}
}

func TestDoRoCEConfig(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().OnMatch(`^sudo config qos doroce `)
	d := New(f)

	for _, mode := range DoRoCEModes {
		require.NoError(t, d.DoRoCE.Enable(ctx, mode))
	}
	require.NoError(t, d.DoRoCE.Disable(ctx))
	require.Error(t, d.DoRoCE.Enable(ctx, "lossier"))

	require.Equal(t, []string{
		"sudo config qos doroce enable --lossless",
		"sudo config qos doroce enable --lossy",
		"sudo config qos doroce enable --lossless_double_ipool",
		"sudo config qos doroce disable",
	}, f.Commands())
}

func TestWCMP(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		OnMatch(`^sudo config bgp device-global wcmp `).
		On("show bgp device-global --json", `{"tsa": "disabled", "wcmp": "disabled"}`, `{"tsa": "disabled", "wcmp": "enabled"}`, `{"wcmp": "weird"}`)
	d := New(f)

	enabled, err := d.WCMP.Status(ctx)
	require.NoError(t, err)
	require.False(t, enabled)

	require.NoError(t, d.WCMP.Set(ctx, true))

	enabled, err = d.WCMP.Status(ctx)
	require.NoError(t, err)
	require.True(t, enabled)

	_, err = d.WCMP.Status(ctx)
	require.ErrorIs(t, err, dut.ErrUnexpectedOutput)

	require.Equal(t, 1, f.Count("sudo config bgp device-global wcmp enabled"))
}

func TestFwutil(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("fwutil show version", fwutilShowVersion).
		On("fwutil show status", fwutilShowStatus).
		OnMatch(`^sudo fwutil `)
	d := New(f)

	components, err := d.Fwutil.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, components, 4)
	for _, c := range components {
		require.Equal(t, "x86_64-mlnx_msn2700-r0", c.Chassis)
		require.Equal(t, "N/A", c.Module)
	}
	require.Equal(t, Component{Chassis: "x86_64-mlnx_msn2700-r0", Module: "N/A", Name: "BIOS", Version: "0ACLH004_02.02.010_9600"}, components[2])

	version, err := d.Fwutil.Version(ctx, "SSD")
	require.NoError(t, err)
	require.Equal(t, "0202-000", version)

	_, err = d.Fwutil.Version(ctx, "FPGA")
	require.ErrorIs(t, err, dut.ErrUnexpectedOutput)

	statuses, err := d.Fwutil.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, "ONIE", statuses[0].Name)
	require.Equal(t, "2020.11-5.3.0005-9600", statuses[0].Version)
	require.Equal(t, "2020.11-5.3.0006-9600", statuses[0].Available)
	require.False(t, statuses[0].UpToDate())
	require.Equal(t, "x86_64-mlnx_msn2700-r0", statuses[1].Chassis)
	require.True(t, statuses[1].UpToDate())

	require.NoError(t, d.Fwutil.Install(ctx, "ONIE", "/tmp/onie-update.bin"))
	require.NoError(t, d.Fwutil.Update(ctx, "BIOS"))

	commands := f.Commands()
	require.Equal(t, []string{
		"sudo fwutil install chassis component ONIE fw -y /tmp/onie-update.bin",
		"sudo fwutil update chassis component BIOS fw -y",
	}, commands[len(commands)-2:])
}

func TestDPU(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("show chassis modules status", showModulesStatus).
		On("show chassis modules midplane-status", showMidplaneStatus, showMidplaneStatus, showMidplaneStatusUp).
		OnMatch(`^sudo config chassis modules `)
	d := New(f)

	modules, err := d.DPU.Modules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	require.True(t, modules[0].Online())
	require.False(t, modules[1].Online())
	require.Equal(t, "NVIDIA BlueField-3 DPU", modules[1].Description)

	require.NoError(t, d.DPU.Shutdown(ctx, "DPU1"))
	require.NoError(t, d.DPU.Startup(ctx, "DPU1"))

	status, err := d.DPU.WaitReachable(ctx, "DPU1", 5, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, &MidplaneStatus{Name: "DPU1", IP: "169.254.200.2", Reachable: true}, status)
	require.Equal(t, 3, f.Count("show chassis modules midplane-status"))

	require.Equal(t, 1, f.Count("sudo config chassis modules shutdown DPU1"))
	require.Equal(t, 1, f.Count("sudo config chassis modules startup DPU1"))
}

func TestDPUWaitReachableExhausted(t *testing.T) {
	f := duttest.New().On("show chassis modules midplane-status", showMidplaneStatus)

	_, err := New(f).DPU.WaitReachable(context.Background(), "DPU1", 3, time.Millisecond)
	require.ErrorIs(t, err, retry.ErrExhausted)
	require.Equal(t, 3, f.Count("show chassis modules midplane-status"))

	_, err = New(f).DPU.WaitReachable(context.Background(), "DPU7", 1, time.Millisecond)
	require.ErrorContains(t, err, "not in midplane status")
}

func TestBuffer(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("mmuconfig -l", mmuconfigList).
		OnMatch(`^sudo mmuconfig `)
	d := New(f)

	cfg, err := d.Buffer.Configuration(ctx)
	require.NoError(t, err)
	require.Len(t, cfg.Pools, 2)
	require.Equal(t, map[string]string{"mode": "dynamic", "size": "12766208", "type": "ingress"}, cfg.Pools["ingress_lossless_pool"])
	require.Equal(t, "ingress_lossless_pool", cfg.Profiles["pg_lossless_100000_5m_profile"]["pool"])

	require.NoError(t, d.Buffer.SetAlpha(ctx, "pg_lossless_100000_5m_profile", -2))
	require.Error(t, d.Buffer.SetAlpha(ctx, "pg_lossless_100000_5m_profile", 9))
	require.Equal(t, 1, f.Count("sudo mmuconfig -p pg_lossless_100000_5m_profile -a -2"))
}

func TestInterfaces(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("show interfaces status", showInterfacesStatus, showInterfacesStatus, showInterfacesStatusUp).
		OnMatch(`^sudo config interface `)
	d := New(f)

	ports, err := d.Interfaces.Status(ctx)
	require.NoError(t, err)
	require.Len(t, ports, 2)
	require.Equal(t, PortStatus{
		Name: "Ethernet0", Lanes: "0,1,2,3", Speed: "100G", MTU: 9100, FEC: "rs", Alias: "etp1",
		VLAN: "routed", Oper: "up", Admin: "up", Type: "QSFP28 or later",
	}, ports[0])

	require.NoError(t, d.Interfaces.Startup(ctx, "Ethernet4"))
	require.NoError(t, d.Interfaces.WaitOper(ctx, "Ethernet4", dut.StateUp, 3, time.Millisecond))
	require.NoError(t, d.Interfaces.SetMTU(ctx, "Ethernet4", 1500))
	require.NoError(t, d.Interfaces.Shutdown(ctx, "Ethernet4"))

	_, err = d.Interfaces.Port(ctx, "Ethernet8")
	require.ErrorIs(t, err, dut.ErrUnexpectedOutput)

	require.Equal(t, 1, f.Count("sudo config interface startup Ethernet4"))
	require.Equal(t, 1, f.Count("sudo config interface mtu Ethernet4 1500"))
	require.Equal(t, 1, f.Count("sudo config interface shutdown Ethernet4"))
}

func TestFDB(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("show mac", showMAC, showMACEmpty).
		On("show mac -v 100", showMAC).
		On("sudo sonic-clear fdb all")
	d := New(f)

	entries, err := d.MAC.Entries(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, []dut.FDBEntry{
		{VLAN: 100, MAC: "0c:20:12:fe:01:01", Port: "Ethernet0", Type: "dynamic"},
		{VLAN: 100, MAC: "0c:20:12:fe:01:02", Port: "Ethernet4", Type: "static"},
	}, entries)

	count, err := d.MAC.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, d.MAC.Clear(ctx))

	count, err = d.MAC.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	entries, err = d.MAC.Entries(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSystem(t *testing.T) {
	ctx := context.Background()
	errExit := errors.New("exit status 3")
	f := duttest.New().
		On("show version", showVersion).
		On("hostname", "leaf-1\n").
		On("systemctl is-active swss", "active\n").
		OnSeq("systemctl is-active syncd",
			duttest.Response{Out: "activating\n", Err: errExit},
			duttest.Response{Out: "active\n"}).
		OnSeq("systemctl is-active bgp", duttest.Response{Out: "inactive\n", Err: errExit}).
		OnErr("systemctl is-active lldp", errExit).
		On("sudo config save -y").
		On("sudo config reload -y").
		On("show runningconfiguration all", `{"DEVICE_METADATA": {"localhost": {"hostname": "leaf-1"}}}`)
	d := New(f)

	ver, err := d.System.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, "SONiC.202311_RC.59-1a2b3c4d_Internal", ver.SoftwareVersion)
	require.Equal(t, "x86_64-mlnx_msn2700-r0", ver.Platform)
	require.Equal(t, "ACS-MSN2700", ver.HwSKU)
	require.Equal(t, "mellanox", ver.ASIC)
	require.Equal(t, 1, ver.ASICCount)
	require.Equal(t, "Tue Mar 12 10:00:00 UTC 2024", ver.BuildDate)

	active, err := d.System.ServiceActive(ctx, "bgp")
	require.NoError(t, err)
	require.False(t, active)

	_, err = d.System.ServiceActive(ctx, "lldp")
	require.ErrorIs(t, err, errExit)

	require.NoError(t, d.System.WaitServices(ctx, []string{"swss", "syncd"}, 3, time.Millisecond))
	require.Equal(t, 2, f.Count("systemctl is-active syncd"))

	err = d.System.WaitServices(ctx, []string{"swss", "bgp"}, 2, time.Millisecond)
	require.ErrorIs(t, err, retry.ErrExhausted)
	require.ErrorContains(t, err, "bgp")

	require.NoError(t, d.System.SaveConfig(ctx))
	require.NoError(t, d.System.ReloadConfig(ctx))

	cfg, err := d.System.RunningConfig(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"DEVICE_METADATA": {"localhost": {"hostname": "leaf-1"}}}`, string(cfg))
}

func TestDevice(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("show version", showVersion).
		On("hostname", "leaf-1\n").
		On("show interfaces status", showInterfacesStatus).
		On("show mac", showMAC).
		OnMatch(`^sudo `)
	var d dut.Device = New(f)

	info, err := d.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, &dut.Info{
		Hostname: "leaf-1",
		OS:       dut.OSSONiC,
		Version:  "SONiC.202311_RC.59-1a2b3c4d_Internal",
		Platform: "x86_64-mlnx_msn2700-r0",
		HwSKU:    "ACS-MSN2700",
		ASIC:     "mellanox",
	}, info)

	links, err := d.Links(ctx)
	require.NoError(t, err)
	require.Equal(t, []dut.Link{
		{Name: "Ethernet0", Admin: "up", Oper: "up", Speed: "100G", MTU: 9100},
		{Name: "Ethernet4", Admin: "down", Oper: "down", Speed: "100G", MTU: 9100},
	}, links)

	require.NoError(t, d.SetLinkAdmin(ctx, "Ethernet4", true))
	require.NoError(t, d.SetLinkAdmin(ctx, "Ethernet4", false))

	fdb, err := d.FDB(ctx)
	require.NoError(t, err)
	require.Len(t, fdb, 2)

	require.NoError(t, d.ClearFDB(ctx))

	commands := f.Commands()
	require.Equal(t, []string{
		"sudo config interface startup Ethernet4",
		"sudo config interface shutdown Ethernet4",
		"show mac",
		"sudo sonic-clear fdb all",
	}, commands[len(commands)-4:])
}
