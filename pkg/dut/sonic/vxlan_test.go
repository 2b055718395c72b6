// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/dut/duttest"
)

const showVXLANInterface = `VTEP Information:

	VTEP Name : vtep1, SIP  : 10.1.0.32
	NVO Name  : nvo,  VTEP : vtep1
	Source interface  : Loopback0
`

const showVXLANVLANVNIMap = `+---------+-------+
| VLAN    |   VNI |
+=========+=======+
| Vlan100 | 10100 |
+---------+-------+
| Vlan200 | 10200 |
+---------+-------+
Total count : 2
`

const showVXLANTunnel = `+---------------------+-------------+------------------+-------------------+-----------------------------------+
| vxlan tunnel name   | source ip   | destination ip   | tunnel map name   | tunnel map mapping(vni -> vlan)   |
+=====================+=============+==================+===================+===================================+
| vtep1               | 10.1.0.32   |                  | map_10100_Vlan100 | 10100 -> Vlan100                  |
+---------------------+-------------+------------------+-------------------+-----------------------------------+
|                     |             |                  | map_10200_Vlan200 | 10200 -> Vlan200                  |
+---------------------+-------------+------------------+-------------------+-----------------------------------+
Total count : 1
`

const showVXLANRemoteVTEP = `+-----------+-----------+-------------------+--------------+
| SIP       | DIP       | Creation Source   | OperStatus   |
+===========+===========+===================+==============+
| 10.1.0.32 | 10.1.0.34 | EVPN              | oper_up      |
+-----------+-----------+-------------------+--------------+
Total count : 1
`

const showVXLANRemoteMAC = `+---------+-------------------+--------------+-------+---------+
| VLAN    | MAC               | RemoteVTEP   |   VNI | Type    |
+=========+===================+==============+=======+=========+
| Vlan100 | 0C:20:12:FE:02:01 | 10.1.0.34    | 10100 | dynamic |
+---------+-------------------+--------------+-------+---------+
Total count : 1
`

func TestVXLANConfig(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().OnMatch(`^sudo config vxlan `)
	d := New(f)

	require.NoError(t, d.VXLAN.AddTunnel(ctx, "vtep1", "10.1.0.32"))
	require.NoError(t, d.VXLAN.AddEVPNNVO(ctx, "nvo", "vtep1"))
	require.NoError(t, d.VXLAN.AddMap(ctx, "vtep1", 100, 10100))
	require.NoError(t, d.VXLAN.DelMap(ctx, "vtep1", 100, 10100))
	require.NoError(t, d.VXLAN.DelEVPNNVO(ctx, "nvo"))
	require.NoError(t, d.VXLAN.DelTunnel(ctx, "vtep1"))

	require.Equal(t, []string{
		"sudo config vxlan add vtep1 10.1.0.32",
		"sudo config vxlan evpn_nvo add nvo vtep1",
		"sudo config vxlan map add vtep1 100 10100",
		"sudo config vxlan map del vtep1 100 10100",
		"sudo config vxlan evpn_nvo del nvo",
		"sudo config vxlan del vtep1",
	}, f.Commands())
}

func TestVXLANShow(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("show vxlan interface", showVXLANInterface).
		On("show vxlan vlanvnimap", showVXLANVLANVNIMap).
		On("show vxlan tunnel", showVXLANTunnel).
		On("show vxlan remotevtep", showVXLANRemoteVTEP).
		On("show vxlan remotemac all", showVXLANRemoteMAC).
		On("show vxlan remotemac 10.1.0.34", showVXLANRemoteMAC)
	d := New(f)

	info, err := d.VXLAN.Interface(ctx)
	require.NoError(t, err)
	require.Equal(t, &VTEPInfo{Name: "vtep1", SourceIP: "10.1.0.32", NVO: "nvo", SourceInterface: "Loopback0"}, info)

	maps, err := d.VXLAN.VLANVNIMap(ctx)
	require.NoError(t, err)
	require.Equal(t, []VLANVNI{{VLAN: "Vlan100", VNI: 10100}, {VLAN: "Vlan200", VNI: 10200}}, maps)

	tunnels, err := d.VXLAN.Tunnels(ctx)
	require.NoError(t, err)
	require.Equal(t, []Tunnel{{
		Name:     "vtep1",
		SourceIP: "10.1.0.32",
		Maps:     []string{"10100 -> Vlan100", "10200 -> Vlan200"},
	}}, tunnels)

	vteps, err := d.VXLAN.RemoteVTEPs(ctx)
	require.NoError(t, err)
	require.Len(t, vteps, 1)
	require.Equal(t, "10.1.0.34", vteps[0].DestIP)
	require.True(t, vteps[0].IsUp())

	for _, vtep := range []string{"", "10.1.0.34"} {
		macs, err := d.VXLAN.RemoteMACs(ctx, vtep)
		require.NoError(t, err)
		require.Equal(t, []RemoteMAC{{VLAN: "Vlan100", MAC: "0c:20:12:fe:02:01", RemoteVTEP: "10.1.0.34", VNI: 10100, Type: "dynamic"}}, macs)
	}
}

func TestVXLANShowEmpty(t *testing.T) {
	ctx := context.Background()
	f := duttest.New().
		On("show vxlan interface", "").
		On("show vxlan vlanvnimap", "Error: no table\n")
	d := New(f)

	info, err := d.VXLAN.Interface(ctx)
	require.NoError(t, err)
	require.Nil(t, info)

	_, err = d.VXLAN.VLANVNIMap(ctx)
	require.ErrorIs(t, err, dut.ErrUnexpectedOutput)
}
