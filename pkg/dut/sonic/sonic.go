// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package sonic wraps the SONiC CLI: every subsystem gets a small type that
// formats config/show commands, runs them through a dut.Engine and parses the
// printed tables, key/value blocks or JSON into Go values.
package sonic

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
	"go.githedgehog.com/switchqa/pkg/util/tableutil"
)

type Device struct {
	engine dut.Engine

	VXLAN      *VXLAN
	AR         *AR
	DoRoCE     *DoRoCE
	Fwutil     *Fwutil
	WCMP       *WCMP
	DPU        *DPU
	Buffer     *Buffer
	Interfaces *Interfaces
	MAC        *FDB
	System     *System
}

func New(engine dut.Engine) *Device {
	return &Device{
		engine:     engine,
		VXLAN:      &VXLAN{engine: engine},
		AR:         &AR{engine: engine},
		DoRoCE:     &DoRoCE{engine: engine},
		Fwutil:     &Fwutil{engine: engine},
		WCMP:       &WCMP{engine: engine},
		DPU:        &DPU{engine: engine},
		Buffer:     &Buffer{engine: engine},
		Interfaces: &Interfaces{engine: engine},
		MAC:        &FDB{engine: engine},
		System:     &System{engine: engine},
	}
}

func (d *Device) Engine() dut.Engine {
	return d.engine
}

func command(args ...string) string {
	return shellutil.Join(args...)
}

func sudo(args ...string) string {
	return command(append([]string{"sudo"}, args...)...)
}

func enabledDisabled(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}

func runDiscard(ctx context.Context, e dut.Engine, cmd string) error {
	_, err := e.Run(ctx, cmd)

	return err
}

func table(ctx context.Context, e dut.Engine, cmd string) ([]tableutil.Row, error) {
	out, err := e.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}

	rows, err := tableutil.ParseTable(out)
	if err != nil {
		return nil, dut.UnexpectedOutput(cmd, out, err.Error())
	}

	return rows, nil
}

func decodeJSON(ctx context.Context, e dut.Engine, cmd string, v any) error {
	out, err := e.Run(ctx, cmd)
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

// atoi parses an integer cell, "N/A" and empty cells are 0.
func atoi(cmd, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, dut.UnexpectedOutput(cmd, value, "not a number")
	}

	return n, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
