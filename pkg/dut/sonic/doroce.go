// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
)

const cmdShowDoRoCEStatus = "show doroce status"

type DoRoCEMode string

const (
	DoRoCELossless            DoRoCEMode = "lossless"
	DoRoCELossy               DoRoCEMode = "lossy"
	DoRoCELosslessDoubleIPool DoRoCEMode = "lossless_double_ipool"
)

var DoRoCEModes = []DoRoCEMode{
	DoRoCELossless,
	DoRoCELossy,
	DoRoCELosslessDoubleIPool,
}

var (
	doroceStateRe = regexp.MustCompile(`(?im)^.*doroce\b.*\b(enabled|disabled)\b`)
	doroceModeRe  = regexp.MustCompile(`(?im)\bmode\b\s*:?\s*(lossless_double_ipool|lossless|lossy)\b`)
)

// DoRoCE manages the RoCE QoS profile (buffers, PFC and ECN in one switch).
type DoRoCE struct {
	engine dut.Engine
}

type DoRoCEStatus struct {
	Enabled bool
	Mode    DoRoCEMode
}

func (d *DoRoCE) Enable(ctx context.Context, mode DoRoCEMode) error {
	if !slices.Contains(DoRoCEModes, mode) {
		return fmt.Errorf("unknown DoRoCE mode %q", mode) //nolint:goerr113
	}

	return runDiscard(ctx, d.engine, sudo("config", "qos", "doroce", "enable", "--"+string(mode)))
}

func (d *DoRoCE) Disable(ctx context.Context) error {
	return runDiscard(ctx, d.engine, sudo("config", "qos", "doroce", "disable"))
}

func (d *DoRoCE) Status(ctx context.Context) (*DoRoCEStatus, error) {
	out, err := d.engine.Run(ctx, cmdShowDoRoCEStatus)
	if err != nil {
		return nil, err
	}

	m := doroceStateRe.FindStringSubmatch(out)
	if m == nil {
		return nil, dut.UnexpectedOutput(cmdShowDoRoCEStatus, out, "no DoRoCE state")
	}

	status := &DoRoCEStatus{
		Enabled: strings.EqualFold(m[1], "enabled"),
	}
	if m := doroceModeRe.FindStringSubmatch(out); m != nil {
		status.Mode = DoRoCEMode(strings.ToLower(m[1]))
	}
	if status.Enabled && status.Mode == "" {
		return nil, dut.UnexpectedOutput(cmdShowDoRoCEStatus, out, "enabled without mode")
	}

	return status, nil
}
