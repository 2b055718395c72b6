// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"

	"go.githedgehog.com/switchqa/pkg/dut"
)

const cmdShowARConfig = "show ar config --json"

// AR configures adaptive routing.
type AR struct {
	engine dut.Engine
}

type ARGlobal struct {
	Mode    string `json:"mode"`
	Profile string `json:"profile"`
}

type ARPort struct {
	Mode string `json:"mode"`
}

type ARConfig struct {
	Global   ARGlobal                     `json:"global"`
	Profiles map[string]map[string]string `json:"profiles,omitempty"`
	Ports    map[string]ARPort            `json:"ports,omitempty"`
}

func (c *ARConfig) Enabled() bool {
	return c.Global.Mode == "enabled"
}

func (c *ARConfig) PortEnabled(port string) bool {
	p, ok := c.Ports[port]

	return ok && p.Mode == "enabled"
}

func (a *AR) SetGlobal(ctx context.Context, enabled bool) error {
	return runDiscard(ctx, a.engine, sudo("config", "ar", enabledDisabled(enabled)))
}

func (a *AR) SetProfile(ctx context.Context, name string) error {
	return runDiscard(ctx, a.engine, sudo("config", "ar", "profile", "set", name))
}

func (a *AR) SetPort(ctx context.Context, port string, enabled bool) error {
	return runDiscard(ctx, a.engine, sudo("config", "interface", "ar", enabledDisabled(enabled), port))
}

func (a *AR) Config(ctx context.Context) (*ARConfig, error) {
	cfg := &ARConfig{}
	if err := decodeJSON(ctx, a.engine, cmdShowARConfig, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
