// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sonic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/retry"
	"go.githedgehog.com/switchqa/pkg/util/tableutil"
)

const (
	cmdShowVersion       = "show version"
	cmdHostname          = "hostname"
	cmdShowRunningConfig = "show runningconfiguration all"

	StateActive = "active"
)

// CriticalServices are expected to be active on every SONiC switch.
var CriticalServices = []string{"database", "swss", "syncd", "bgp", "teamd", "pmon", "lldp"}

type System struct {
	engine dut.Engine
}

type VersionInfo struct {
	SoftwareVersion  string
	OSVersion        string
	Distribution     string
	Kernel           string
	BuildCommit      string
	BuildDate        string
	Platform         string
	HwSKU            string
	ASIC             string
	ASICCount        int
	SerialNumber     string
	ModelNumber      string
	HardwareRevision string
	Uptime           string
}

// Version parses "show version" up to the docker image list.
func (s *System) Version(ctx context.Context) (*VersionInfo, error) {
	out, err := s.engine.Run(ctx, cmdShowVersion)
	if err != nil {
		return nil, err
	}

	kv := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Docker images") {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if kv["SONiC Software Version"] == "" {
		return nil, dut.UnexpectedOutput(cmdShowVersion, out, "no software version")
	}

	asicCount, err := atoi(cmdShowVersion, kv["ASIC Count"])
	if err != nil {
		return nil, err
	}

	return &VersionInfo{
		SoftwareVersion:  kv["SONiC Software Version"],
		OSVersion:        kv["SONiC OS Version"],
		Distribution:     kv["Distribution"],
		Kernel:           kv["Kernel"],
		BuildCommit:      kv["Build commit"],
		BuildDate:        kv["Build date"],
		Platform:         kv["Platform"],
		HwSKU:            kv["HwSKU"],
		ASIC:             kv["ASIC"],
		ASICCount:        asicCount,
		SerialNumber:     kv["Serial Number"],
		ModelNumber:      kv["Model Number"],
		HardwareRevision: kv["Hardware Revision"],
		Uptime:           kv["Uptime"],
	}, nil
}

func (s *System) Hostname(ctx context.Context) (string, error) {
	out, err := s.engine.Run(ctx, cmdHostname)
	if err != nil {
		return "", err
	}

	hostname := strings.TrimSpace(out)
	if hostname == "" {
		return "", dut.UnexpectedOutput(cmdHostname, out, "empty hostname")
	}

	return hostname, nil
}

// ServiceActive reports whether the systemd unit is active. systemctl exits
// non-zero for inactive units, so a printed state wins over the error.
func (s *System) ServiceActive(ctx context.Context, name string) (bool, error) {
	out, err := s.engine.Run(ctx, command("systemctl", "is-active", name))
	state := strings.TrimSpace(out)
	if state == StateActive {
		return true, nil
	}
	if state != "" && !strings.Contains(state, " ") {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return false, dut.UnexpectedOutput("systemctl is-active "+name, out, "unknown state")
}

// WaitServices polls until all services are active.
func (s *System) WaitServices(ctx context.Context, names []string, attempts int, delay time.Duration) error {
	err := retry.Do(ctx, attempts, delay, func(ctx context.Context) error {
		inactive := []string{}
		for _, name := range names {
			active, err := s.ServiceActive(ctx, name)
			if err != nil {
				return err
			}
			if !active {
				inactive = append(inactive, name)
			}
		}
		if len(inactive) > 0 {
			return fmt.Errorf("services not active: %s", strings.Join(inactive, ", ")) //nolint:goerr113
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("waiting for services: %w", err)
	}

	return nil
}

func (s *System) SaveConfig(ctx context.Context) error {
	return runDiscard(ctx, s.engine, sudo("config", "save", "-y"))
}

func (s *System) ReloadConfig(ctx context.Context) error {
	return runDiscard(ctx, s.engine, sudo("config", "reload", "-y"))
}

// RunningConfig returns the running CONFIG_DB as JSON.
func (s *System) RunningConfig(ctx context.Context) (json.RawMessage, error) {
	out, err := s.engine.Run(ctx, cmdShowRunningConfig)
	if err != nil {
		return nil, err
	}

	data, err := tableutil.ExtractJSON(out)
	if err != nil {
		return nil, dut.UnexpectedOutput(cmdShowRunningConfig, out, err.Error())
	}
	if !json.Valid(data) {
		return nil, dut.UnexpectedOutput(cmdShowRunningConfig, out, "invalid json")
	}

	return json.RawMessage(data), nil
}
