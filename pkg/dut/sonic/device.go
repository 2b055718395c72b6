// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"fmt"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
)

var _ dut.Device = (*Device)(nil)

func (d *Device) Info(ctx context.Context) (*dut.Info, error) {
	ver, err := d.System.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting version: %w", err)
	}

	hostname, err := d.System.Hostname(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting hostname: %w", err)
	}

	return &dut.Info{
		Hostname: hostname,
		OS:       dut.OSSONiC,
		Version:  ver.SoftwareVersion,
		Platform: ver.Platform,
		HwSKU:    ver.HwSKU,
		ASIC:     ver.ASIC,
	}, nil
}

func (d *Device) Links(ctx context.Context) ([]dut.Link, error) {
	ports, err := d.Interfaces.Status(ctx)
	if err != nil {
		return nil, err
	}

	links := make([]dut.Link, 0, len(ports))
	for _, port := range ports {
		links = append(links, dut.Link{
			Name:  port.Name,
			Admin: strings.ToLower(port.Admin),
			Oper:  strings.ToLower(port.Oper),
			Speed: port.Speed,
			MTU:   port.MTU,
		})
	}

	return links, nil
}

func (d *Device) SetLinkAdmin(ctx context.Context, name string, up bool) error {
	if up {
		return d.Interfaces.Startup(ctx, name)
	}

	return d.Interfaces.Shutdown(ctx, name)
}

func (d *Device) FDB(ctx context.Context) ([]dut.FDBEntry, error) {
	return d.MAC.Entries(ctx, 0)
}

func (d *Device) ClearFDB(ctx context.Context) error {
	return d.MAC.Clear(ctx)
}
