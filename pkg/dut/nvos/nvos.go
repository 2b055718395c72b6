// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package nvos implements dut.Device on top of the NVUE "nv" CLI, reading state
// as JSON and applying every change with "nv config apply".
package nvos

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
	"go.githedgehog.com/switchqa/pkg/util/tableutil"
)

const (
	BridgeDomain = "br_default"

	cmdShowSystem    = "nv show system --output json"
	cmdShowInterface = "nv show interface --output json"
	cmdConfigApply   = "nv config apply -y"
)

var skipInterfaceTypes = []string{"loopback", "bridge", "svi"}

type Device struct {
	engine dut.Engine
}

var _ dut.Device = (*Device)(nil)

func New(engine dut.Engine) *Device {
	return &Device{engine: engine}
}

func (d *Device) Engine() dut.Engine {
	return d.engine
}

type System struct {
	Hostname       string `json:"hostname"`
	Build          string `json:"build"`
	ProductName    string `json:"product-name"`
	ProductRelease string `json:"product-release"`
	Platform       string `json:"platform"`
	ASIC           string `json:"asic,omitempty"`
}

type Interface struct {
	Type string `json:"type"`
	Link struct {
		AdminStatus string `json:"admin-status"`
		OperStatus  string `json:"oper-status"`
		Speed       string `json:"speed"`
		MTU         int    `json:"mtu"`
	} `json:"link"`
}

type MACEntry struct {
	MAC       string `json:"mac"`
	VLAN      int    `json:"vlan"`
	Interface string `json:"interface"`
	EntryType string `json:"entry-type"`
}

func (d *Device) show(ctx context.Context, cmd string, v any) error {
	out, err := d.engine.Run(ctx, cmd)
	if err != nil {
		return err
	}

	data, err := tableutil.ExtractJSON(out)
	if err != nil {
		return dut.UnexpectedOutput(cmd, out, err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return dut.UnexpectedOutput(cmd, out, "decoding json: "+err.Error())
	}

	return nil
}

// Set runs "nv set <path...>" and applies the pending revision.
func (d *Device) Set(ctx context.Context, path ...string) error {
	cmd := shellutil.Join(append([]string{"nv", "set"}, path...)...)
	if _, err := d.engine.Run(ctx, cmd); err != nil {
		return err
	}

	if _, err := d.engine.Run(ctx, cmdConfigApply); err != nil {
		return fmt.Errorf("applying %q: %w", cmd, err)
	}

	return nil
}

func (d *Device) System(ctx context.Context) (*System, error) {
	sys := &System{}
	if err := d.show(ctx, cmdShowSystem, sys); err != nil {
		return nil, err
	}

	return sys, nil
}

func (d *Device) Interfaces(ctx context.Context) (map[string]Interface, error) {
	ifaces := map[string]Interface{}
	if err := d.show(ctx, cmdShowInterface, &ifaces); err != nil {
		return nil, err
	}

	return ifaces, nil
}

func (d *Device) MACTable(ctx context.Context) ([]MACEntry, error) {
	cmd := shellutil.Join("nv", "show", "bridge", "domain", BridgeDomain, "mac-table", "--output", "json")

	entries := map[string]MACEntry{}
	if err := d.show(ctx, cmd, &entries); err != nil {
		return nil, err
	}

	res := make([]MACEntry, 0, len(entries))
	for _, entry := range entries {
		res = append(res, entry)
	}
	slices.SortFunc(res, func(a, b MACEntry) int {
		return cmp.Or(cmp.Compare(a.VLAN, b.VLAN), cmp.Compare(a.MAC, b.MAC))
	})

	return res, nil
}

func (d *Device) Info(ctx context.Context) (*dut.Info, error) {
	sys, err := d.System(ctx)
	if err != nil {
		return nil, err
	}

	return &dut.Info{
		Hostname: sys.Hostname,
		OS:       dut.OSNVOS,
		Version:  sys.ProductRelease,
		Platform: sys.Platform,
		HwSKU:    sys.ProductName,
		ASIC:     sys.ASIC,
	}, nil
}

func (d *Device) Links(ctx context.Context) ([]dut.Link, error) {
	ifaces, err := d.Interfaces(ctx)
	if err != nil {
		return nil, err
	}

	links := []dut.Link{}
	for name, iface := range ifaces {
		if slices.Contains(skipInterfaceTypes, iface.Type) {
			continue
		}

		links = append(links, dut.Link{
			Name:  name,
			Admin: strings.ToLower(iface.Link.AdminStatus),
			Oper:  strings.ToLower(iface.Link.OperStatus),
			Speed: iface.Link.Speed,
			MTU:   iface.Link.MTU,
		})
	}
	slices.SortFunc(links, func(a, b dut.Link) int {
		return strings.Compare(a.Name, b.Name)
	})

	return links, nil
}

func (d *Device) SetLinkAdmin(ctx context.Context, name string, up bool) error {
	state := dut.StateDown
	if up {
		state = dut.StateUp
	}

	return d.Set(ctx, "interface", name, "link", "state", state)
}

func (d *Device) FDB(ctx context.Context) ([]dut.FDBEntry, error) {
	entries, err := d.MACTable(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]dut.FDBEntry, 0, len(entries))
	for _, entry := range entries {
		res = append(res, dut.FDBEntry{
			VLAN: entry.VLAN,
			MAC:  dut.NormalizeMAC(entry.MAC),
			Port: entry.Interface,
			Type: entry.EntryType,
		})
	}

	return res, nil
}

func (d *Device) ClearFDB(ctx context.Context) error {
	_, err := d.engine.Run(ctx, shellutil.Join("nv", "action", "clear", "bridge", "domain", BridgeDomain, "mac-table"))

	return err
}
