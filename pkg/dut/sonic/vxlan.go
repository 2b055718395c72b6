// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/tableutil"
)

const (
	cmdShowVXLANInterface  = "show vxlan interface"
	cmdShowVXLANVLANVNIMap = "show vxlan vlanvnimap"
	cmdShowVXLANTunnel     = "show vxlan tunnel"
	cmdShowVXLANRemoteVTEP = "show vxlan remotevtep"
)

type VXLAN struct {
	engine dut.Engine
}

type VTEPInfo struct {
	Name            string
	SourceIP        string
	NVO             string
	SourceInterface string
}

type VLANVNI struct {
	VLAN string
	VNI  int
}

type Tunnel struct {
	Name     string
	SourceIP string
	DestIP   string
	Maps     []string
}

type RemoteVTEP struct {
	SourceIP   string
	DestIP     string
	Source     string
	OperStatus string
}

func (v RemoteVTEP) IsUp() bool {
	return v.OperStatus == "oper_up"
}

type RemoteMAC struct {
	VLAN       string
	MAC        string
	RemoteVTEP string
	VNI        int
	Type       string
}

func (v *VXLAN) AddTunnel(ctx context.Context, name, srcIP string) error {
	return runDiscard(ctx, v.engine, sudo("config", "vxlan", "add", name, srcIP))
}

func (v *VXLAN) DelTunnel(ctx context.Context, name string) error {
	return runDiscard(ctx, v.engine, sudo("config", "vxlan", "del", name))
}

func (v *VXLAN) AddEVPNNVO(ctx context.Context, nvo, vtep string) error {
	return runDiscard(ctx, v.engine, sudo("config", "vxlan", "evpn_nvo", "add", nvo, vtep))
}

func (v *VXLAN) DelEVPNNVO(ctx context.Context, nvo string) error {
	return runDiscard(ctx, v.engine, sudo("config", "vxlan", "evpn_nvo", "del", nvo))
}

func (v *VXLAN) AddMap(ctx context.Context, vtep string, vlan, vni int) error {
	return runDiscard(ctx, v.engine, sudo("config", "vxlan", "map", "add", vtep, itoa(vlan), itoa(vni)))
}

func (v *VXLAN) DelMap(ctx context.Context, vtep string, vlan, vni int) error {
	return runDiscard(ctx, v.engine, sudo("config", "vxlan", "map", "del", vtep, itoa(vlan), itoa(vni)))
}

// Interface returns nil without error when no VTEP is configured.
func (v *VXLAN) Interface(ctx context.Context) (*VTEPInfo, error) {
	out, err := v.engine.Run(ctx, cmdShowVXLANInterface)
	if err != nil {
		return nil, err
	}

	kv := tableutil.ParseKeyValue(out, ":")
	if kv["VTEP Name"] == "" {
		return nil, nil //nolint:nilnil
	}

	return &VTEPInfo{
		Name:            kv["VTEP Name"],
		SourceIP:        kv["SIP"],
		NVO:             kv["NVO Name"],
		SourceInterface: kv["Source interface"],
	}, nil
}

func (v *VXLAN) VLANVNIMap(ctx context.Context) ([]VLANVNI, error) {
	rows, err := table(ctx, v.engine, cmdShowVXLANVLANVNIMap)
	if err != nil {
		return nil, err
	}

	res := make([]VLANVNI, 0, len(rows))
	for _, row := range rows {
		vni, err := atoi(cmdShowVXLANVLANVNIMap, row["VNI"])
		if err != nil {
			return nil, err
		}

		res = append(res, VLANVNI{VLAN: row["VLAN"], VNI: vni})
	}

	return res, nil
}

// Tunnels groups the per-map rows of "show vxlan tunnel" by tunnel.
func (v *VXLAN) Tunnels(ctx context.Context) ([]Tunnel, error) {
	rows, err := table(ctx, v.engine, cmdShowVXLANTunnel)
	if err != nil {
		return nil, err
	}

	tableutil.FillDown(rows, "vxlan tunnel name")

	res := []Tunnel{}
	for _, row := range rows {
		name := row["vxlan tunnel name"]
		if len(res) == 0 || res[len(res)-1].Name != name {
			res = append(res, Tunnel{
				Name:     name,
				SourceIP: row["source ip"],
				DestIP:   row["destination ip"],
				Maps:     []string{},
			})
		}

		if mapping := row["tunnel map mapping(vni -> vlan)"]; mapping != "" {
			last := &res[len(res)-1]
			last.Maps = append(last.Maps, strings.Join(strings.Fields(mapping), " "))
		}
	}

	return res, nil
}

func (v *VXLAN) RemoteVTEPs(ctx context.Context) ([]RemoteVTEP, error) {
	rows, err := table(ctx, v.engine, cmdShowVXLANRemoteVTEP)
	if err != nil {
		return nil, err
	}

	res := make([]RemoteVTEP, 0, len(rows))
	for _, row := range rows {
		res = append(res, RemoteVTEP{
			SourceIP:   row["SIP"],
			DestIP:     row["DIP"],
			Source:     row["Creation Source"],
			OperStatus: row["OperStatus"],
		})
	}

	return res, nil
}

// RemoteMACs lists MACs learned over VXLAN, from all remote VTEPs when vtep is empty.
func (v *VXLAN) RemoteMACs(ctx context.Context, vtep string) ([]RemoteMAC, error) {
	if vtep == "" {
		vtep = "all"
	}
	cmd := command("show", "vxlan", "remotemac", vtep)

	rows, err := table(ctx, v.engine, cmd)
	if err != nil {
		return nil, err
	}

	res := make([]RemoteMAC, 0, len(rows))
	for _, row := range rows {
		vni, err := atoi(cmd, row["VNI"])
		if err != nil {
			return nil, err
		}

		res = append(res, RemoteMAC{
			VLAN:       row["VLAN"],
			MAC:        dut.NormalizeMAC(row["MAC"]),
			RemoteVTEP: row["RemoteVTEP"],
			VNI:        vni,
			Type:       row["Type"],
		})
	}

	return res, nil
}
