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
	cmdFwutilShowVersion = "fwutil show version"
	cmdFwutilShowStatus  = "fwutil show status"

	FwStatusUpToDate = "up-to-date"
)

// Fwutil drives the platform firmware utility (ONIE, BIOS, CPLD, SSD, ...).
type Fwutil struct {
	engine dut.Engine
}

type Component struct {
	Chassis string
	Module  string
	Name    string
	Version string
}

type ComponentStatus struct {
	Component
	Firmware  string
	Available string
	Status    string
}

func (s ComponentStatus) UpToDate() bool {
	return s.Status == FwStatusUpToDate
}

func (f *Fwutil) Versions(ctx context.Context) ([]Component, error) {
	rows, err := table(ctx, f.engine, cmdFwutilShowVersion)
	if err != nil {
		return nil, err
	}

	tableutil.FillDown(rows, "Chassis", "Module")

	res := make([]Component, 0, len(rows))
	for _, row := range rows {
		res = append(res, Component{
			Chassis: row["Chassis"],
			Module:  row["Module"],
			Name:    row["Component"],
			Version: row["Version"],
		})
	}

	return res, nil
}

func (f *Fwutil) Version(ctx context.Context, component string) (string, error) {
	components, err := f.Versions(ctx)
	if err != nil {
		return "", err
	}

	for _, c := range components {
		if c.Name == component {
			return c.Version, nil
		}
	}

	return "", dut.UnexpectedOutput(cmdFwutilShowVersion, "", "no component "+component)
}

func (f *Fwutil) Status(ctx context.Context) ([]ComponentStatus, error) {
	rows, err := table(ctx, f.engine, cmdFwutilShowStatus)
	if err != nil {
		return nil, err
	}

	tableutil.FillDown(rows, "Chassis", "Module")

	res := make([]ComponentStatus, 0, len(rows))
	for _, row := range rows {
		current, available, _ := strings.Cut(row["Version (Current/Available)"], "/")

		res = append(res, ComponentStatus{
			Component: Component{
				Chassis: row["Chassis"],
				Module:  row["Module"],
				Name:    row["Component"],
				Version: strings.TrimSpace(current),
			},
			Firmware:  row["Firmware"],
			Available: strings.TrimSpace(available),
			Status:    row["Status"],
		})
	}

	return res, nil
}

// Install flashes the firmware image at path (on the DUT) into the chassis component.
func (f *Fwutil) Install(ctx context.Context, component, path string) error {
	return runDiscard(ctx, f.engine, sudo("fwutil", "install", "chassis", "component", component, "fw", "-y", path))
}

// Update flashes the firmware from the platform components.json bundle.
func (f *Fwutil) Update(ctx context.Context, component string) error {
	return runDiscard(ctx, f.engine, sudo("fwutil", "update", "chassis", "component", component, "fw", "-y"))
}
