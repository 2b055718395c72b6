// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package dut_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/dut/duttest"
)

func TestBootID(t *testing.T) {
	ctx := context.Background()
	errRefused := errors.New("connection refused")

	f := duttest.New().OnSeq(dut.CmdBootID,
		duttest.Response{Out: "4f0e3a8c-5c1d-4a61-9d4e-0b6f1b2c3d4e\n"},
		duttest.Response{Err: errRefused},
		duttest.Response{Out: "\n"},
	)

	id, err := dut.BootID(ctx, f)
	require.NoError(t, err)
	require.Equal(t, "4f0e3a8c-5c1d-4a61-9d4e-0b6f1b2c3d4e", id)

	_, err = dut.BootID(ctx, f)
	require.ErrorIs(t, err, errRefused)

	_, err = dut.BootID(ctx, f)
	require.ErrorIs(t, err, dut.ErrUnexpectedOutput)
}
