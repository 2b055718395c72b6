// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/retry"
)

const cmdShowInterfacesStatus = "show interfaces status"

type Interfaces struct {
	engine dut.Engine
}

type PortStatus struct {
	Name  string
	Lanes string
	Speed string
	MTU   int
	FEC   string
	Alias string
	VLAN  string
	Oper  string
	Admin string
	Type  string
}

func (i *Interfaces) Status(ctx context.Context) ([]PortStatus, error) {
	rows, err := table(ctx, i.engine, cmdShowInterfacesStatus)
	if err != nil {
		return nil, err
	}

	res := make([]PortStatus, 0, len(rows))
	for _, row := range rows {
		mtu, err := atoi(cmdShowInterfacesStatus, row["MTU"])
		if err != nil {
			return nil, err
		}

		res = append(res, PortStatus{
			Name:  row["Interface"],
			Lanes: row["Lanes"],
			Speed: row["Speed"],
			MTU:   mtu,
			FEC:   row["FEC"],
			Alias: row["Alias"],
			VLAN:  row["Vlan"],
			Oper:  row["Oper"],
			Admin: row["Admin"],
			Type:  row["Type"],
		})
	}

	return res, nil
}

func (i *Interfaces) Port(ctx context.Context, name string) (*PortStatus, error) {
	ports, err := i.Status(ctx)
	if err != nil {
		return nil, err
	}

	for _, port := range ports {
		if port.Name == name {
			return &port, nil
		}
	}

	return nil, dut.UnexpectedOutput(cmdShowInterfacesStatus, "", "no interface "+name)
}

func (i *Interfaces) Startup(ctx context.Context, name string) error {
	return runDiscard(ctx, i.engine, sudo("config", "interface", "startup", name))
}

func (i *Interfaces) Shutdown(ctx context.Context, name string) error {
	return runDiscard(ctx, i.engine, sudo("config", "interface", "shutdown", name))
}

func (i *Interfaces) SetMTU(ctx context.Context, name string, mtu int) error {
	return runDiscard(ctx, i.engine, sudo("config", "interface", "mtu", name, itoa(mtu)))
}

// WaitOper polls until the port reports the expected oper state.
func (i *Interfaces) WaitOper(ctx context.Context, name, state string, attempts int, delay time.Duration) error {
	err := retry.Do(ctx, attempts, delay, func(ctx context.Context) error {
		port, err := i.Port(ctx, name)
		if err != nil {
			return err
		}
		if !strings.EqualFold(port.Oper, state) {
			return fmt.Errorf("%s oper is %q", name, port.Oper) //nolint:goerr113
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("waiting for %s oper %s: %w", name, state, err)
	}

	return nil
}
