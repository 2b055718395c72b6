// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.githedgehog.com/switchqa/pkg/dut"
)

const (
	cmdMMUConfigList = "mmuconfig -l"

	MinAlpha = -8
	MaxAlpha = 8
)

var mmuSectionRe = regexp.MustCompile(`^(Pool|Profile):\s*(\S+)\s*$`)

// Buffer reads and tunes the MMU buffer pools and profiles.
type Buffer struct {
	engine dut.Engine
}

type BufferConfig struct {
	Pools    map[string]map[string]string
	Profiles map[string]map[string]string
}

// Configuration parses the "Pool: <name>" and "Profile: <name>" sections of
// mmuconfig, each followed by a dashed block of "key value" lines.
func (b *Buffer) Configuration(ctx context.Context) (*BufferConfig, error) {
	out, err := b.engine.Run(ctx, cmdMMUConfigList)
	if err != nil {
		return nil, err
	}

	cfg := &BufferConfig{
		Pools:    map[string]map[string]string{},
		Profiles: map[string]map[string]string{},
	}

	var current map[string]string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Trim(line, "- ") == "" {
			continue
		}

		if m := mmuSectionRe.FindStringSubmatch(line); m != nil {
			current = map[string]string{}
			if m[1] == "Pool" {
				cfg.Pools[m[2]] = current
			} else {
				cfg.Profiles[m[2]] = current
			}

			continue
		}

		if current == nil {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, dut.UnexpectedOutput(cmdMMUConfigList, line, "expected key and value")
		}
		current[fields[0]] = fields[1]
	}

	if len(cfg.Pools) == 0 {
		return nil, dut.UnexpectedOutput(cmdMMUConfigList, out, "no buffer pools")
	}

	return cfg, nil
}

// SetAlpha sets the dynamic threshold of a buffer profile.
func (b *Buffer) SetAlpha(ctx context.Context, profile string, alpha int) error {
	if alpha < MinAlpha || alpha > MaxAlpha {
		return fmt.Errorf("alpha %d out of range [%d, %d]", alpha, MinAlpha, MaxAlpha) //nolint:goerr113
	}

	return runDiscard(ctx, b.engine, sudo("mmuconfig", "-p", profile, "-a", itoa(alpha)))
}
