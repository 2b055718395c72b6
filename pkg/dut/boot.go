// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package dut

import (
	"context"
	"strings"
)

const CmdBootID = "cat /proc/sys/kernel/random/boot_id"

// BootID returns the kernel boot id of the device, it changes on every boot.
func BootID(ctx context.Context, e Engine) (string, error) {
	out, err := e.Run(ctx, CmdBootID)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	id := strings.TrimSpace(out)
	if id == "" || strings.ContainsAny(id, " \n") {
		return "", UnexpectedOutput(CmdBootID, out, "not a boot id")
	}

	return id, nil
}
