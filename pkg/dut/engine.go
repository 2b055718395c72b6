// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package dut

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/melbahja/goph"
	"go.githedgehog.com/switchqa/pkg/util/sshutil"
)

type SSHEngine struct {
	Name string
	SSH  *sshutil.Config
}

var _ Engine = (*SSHEngine)(nil)

func NewSSHEngine(name string, ssh *sshutil.Config) *SSHEngine {
	return &SSHEngine{Name: name, SSH: ssh}
}

func (e *SSHEngine) Run(ctx context.Context, cmd string) (string, error) {
	slog.Debug("Running", "dut", e.Name, "cmd", cmd)

	stdout, stderr, err := e.SSH.Run(ctx, cmd)
	if err != nil {
		if stderr = strings.TrimSpace(stderr); stderr != "" {
			return stdout, fmt.Errorf("running %q on %s: %w: %s", cmd, e.Name, err, stderr)
		}

		return stdout, fmt.Errorf("running %q on %s: %w", cmd, e.Name, err)
	}

	return stdout, nil
}

// HostEngine runs commands on a Linux host over an established goph connection,
// stdout and stderr are combined.
type HostEngine struct {
	Name   string
	Client *goph.Client
}

var _ Engine = (*HostEngine)(nil)

func NewHostEngine(name string, client *goph.Client) *HostEngine {
	return &HostEngine{Name: name, Client: client}
}

func (e *HostEngine) Run(ctx context.Context, cmd string) (string, error) {
	slog.Debug("Running", "host", e.Name, "cmd", cmd)

	out, err := e.Client.RunContext(ctx, cmd)
	if err != nil {
		return string(out), fmt.Errorf("running %q on %s: %w: %s", cmd, e.Name, err, strings.TrimSpace(string(out)))
	}

	return string(out), nil
}

func (e *HostEngine) Close() error {
	if err := e.Client.Close(); err != nil {
		return fmt.Errorf("closing connection to %s: %w", e.Name, err)
	}

	return nil
}
