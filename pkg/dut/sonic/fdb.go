// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
)

const cmdShowMAC = "show mac"

var fdbTotalRe = regexp.MustCompile(`Total number of entries\s+(\d+)`)

type FDB struct {
	engine dut.Engine
}

// Entries lists the FDB, only for the given VLAN when vlan is positive.
func (f *FDB) Entries(ctx context.Context, vlan int) ([]dut.FDBEntry, error) {
	cmd := cmdShowMAC
	if vlan > 0 {
		cmd = command("show", "mac", "-v", itoa(vlan))
	}

	rows, err := table(ctx, f.engine, cmd)
	if err != nil {
		return nil, err
	}

	res := make([]dut.FDBEntry, 0, len(rows))
	for _, row := range rows {
		id, err := atoi(cmd, row["Vlan"])
		if err != nil {
			return nil, err
		}

		res = append(res, dut.FDBEntry{
			VLAN: id,
			MAC:  dut.NormalizeMAC(row["MacAddress"]),
			Port: row["Port"],
			Type: strings.ToLower(row["Type"]),
		})
	}

	return res, nil
}

func (f *FDB) Count(ctx context.Context) (int, error) {
	out, err := f.engine.Run(ctx, cmdShowMAC)
	if err != nil {
		return 0, err
	}

	m := fdbTotalRe.FindStringSubmatch(out)
	if m == nil {
		return 0, dut.UnexpectedOutput(cmdShowMAC, out, "no total")
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, dut.UnexpectedOutput(cmdShowMAC, out, err.Error())
	}

	return n, nil
}

func (f *FDB) Clear(ctx context.Context) error {
	return runDiscard(ctx, f.engine, sudo("sonic-clear", "fdb", "all"))
}
