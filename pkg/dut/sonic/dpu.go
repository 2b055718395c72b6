// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/retry"
)

const (
	cmdShowModulesStatus   = "show chassis modules status"
	cmdShowModulesMidplane = "show chassis modules midplane-status"

	ModuleOnline = "Online"
)

// DPU manages the DPU modules of a smart switch.
type DPU struct {
	engine dut.Engine
}

type Module struct {
	Name        string
	Description string
	Slot        string
	Oper        string
	Admin       string
	Serial      string
}

func (m Module) Online() bool {
	return m.Oper == ModuleOnline
}

type MidplaneStatus struct {
	Name      string
	IP        string
	Reachable bool
}

func (d *DPU) Modules(ctx context.Context) ([]Module, error) {
	rows, err := table(ctx, d.engine, cmdShowModulesStatus)
	if err != nil {
		return nil, err
	}

	res := make([]Module, 0, len(rows))
	for _, row := range rows {
		res = append(res, Module{
			Name:        row["Name"],
			Description: row["Description"],
			Slot:        row["Physical-Slot"],
			Oper:        row["Oper-Status"],
			Admin:       row["Admin-Status"],
			Serial:      row["Serial"],
		})
	}

	return res, nil
}

func (d *DPU) Midplane(ctx context.Context) ([]MidplaneStatus, error) {
	rows, err := table(ctx, d.engine, cmdShowModulesMidplane)
	if err != nil {
		return nil, err
	}

	res := make([]MidplaneStatus, 0, len(rows))
	for _, row := range rows {
		res = append(res, MidplaneStatus{
			Name:      row["Name"],
			IP:        row["IP-Address"],
			Reachable: strings.EqualFold(row["Reachability"], "true"),
		})
	}

	return res, nil
}

func (d *DPU) Startup(ctx context.Context, name string) error {
	return runDiscard(ctx, d.engine, sudo("config", "chassis", "modules", "startup", name))
}

func (d *DPU) Shutdown(ctx context.Context, name string) error {
	return runDiscard(ctx, d.engine, sudo("config", "chassis", "modules", "shutdown", name))
}

// WaitReachable polls the midplane status until the DPU got its address and answers.
func (d *DPU) WaitReachable(ctx context.Context, name string, attempts int, delay time.Duration) (*MidplaneStatus, error) {
	var found *MidplaneStatus

	err := retry.Do(ctx, attempts, delay, func(ctx context.Context) error {
		statuses, err := d.Midplane(ctx)
		if err != nil {
			return err
		}

		for _, status := range statuses {
			if status.Name != name {
				continue
			}
			if !status.Reachable || status.IP == "" {
				return fmt.Errorf("dpu %s not reachable yet (ip %q)", name, status.IP) //nolint:goerr113
			}

			found = &status

			return nil
		}

		return fmt.Errorf("dpu %s not in midplane status", name) //nolint:goerr113
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for dpu %s: %w", name, err)
	}

	slog.Debug("DPU reachable", "dpu", name, "ip", found.IP)

	return found, nil
}
