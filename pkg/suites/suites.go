// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package suites holds the device validation tests run by the runner.
package suites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.githedgehog.com/switchqa/pkg/artifactory"
	"go.githedgehog.com/switchqa/pkg/cfgtmpl"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/dut/nvos"
	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
	"go.githedgehog.com/switchqa/pkg/testbed"
	"go.githedgehog.com/switchqa/pkg/util/retry"
)

const (
	DefaultAttempts      = 30
	DefaultDelay         = 2 * time.Second
	DefaultRebootTimeout = 10 * time.Minute
)

var (
	errNoTemplates = errors.New("no template library")
	errNotSONiC    = errors.New("not a SONiC DUT")
)

type PowerController interface {
	CycleAll(ctx context.Context, outlets map[string]string) error
}

type Artifacts interface {
	Latest(ctx context.Context, repo, path, name string) (*artifactory.Item, error)
	Download(ctx context.Context, item artifactory.Item, dest string, progress bool) (string, error)
}

// Host is a traffic host attached to a DUT port.
type Host struct {
	Name    string
	Iface   string
	MAC     string
	DUTPort string
	VLAN    int
	Peer    string
	Engine  dut.Engine
}

type Opts struct {
	Extended      bool
	Attempts      int
	Delay         time.Duration
	RebootTimeout time.Duration
	DownloadDir   string
}

func (o *Opts) defaults() {
	if o.Attempts == 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Delay == 0 {
		o.Delay = DefaultDelay
	}
	if o.RebootTimeout == 0 {
		o.RebootTimeout = DefaultRebootTimeout
	}
}

// TestCtx is everything a test needs to know about one DUT.
type TestCtx struct {
	Name   string
	OS     dut.OS
	Engine dut.Engine
	Device dut.Device
	SONiC  *sonic.Device
	NVOS   *nvos.Device

	Templates *cfgtmpl.Library
	Hosts     []Host
	Ports     []string
	DPUs      []string
	VXLAN     *testbed.VXLAN
	Firmware  []testbed.Firmware
	Outlets   map[string]string
	Power     PowerController
	Artifacts Artifacts

	// WaitReachable blocks until the DUT answers over ssh again, e.g. after a power cycle.
	WaitReachable func(ctx context.Context) error
	// Upload copies a local file to the DUT.
	Upload func(local, remote string) error

	Opts Opts
}

func New(name string, dutOS dut.OS, engine dut.Engine, opts Opts) (*TestCtx, error) {
	if err := dutOS.Validate(); err != nil {
		return nil, err
	}

	opts.defaults()
	tc := &TestCtx{
		Name:   name,
		OS:     dutOS,
		Engine: engine,
		Opts:   opts,
	}

	switch dutOS {
	case dut.OSSONiC:
		tc.SONiC = sonic.New(engine)
		tc.Device = tc.SONiC
	case dut.OSNVOS:
		tc.NVOS = nvos.New(engine)
		tc.Device = tc.NVOS
	}

	return tc, nil
}

// Env reports what the DUT and the testbed lack, for static skips.
func (tc *TestCtx) Env() runner.SkipFlags {
	return runner.SkipFlags{
		ExtendedOnly: tc.Opts.Extended,
		SONiCOnly:    tc.OS != dut.OSSONiC,
		NVOSOnly:     tc.OS != dut.OSNVOS,
		NoDPU:        len(tc.DPUs) == 0,
		NoPower:      tc.Power == nil || len(tc.Outlets) == 0,
		NoHosts:      len(tc.Hosts) == 0,
		NoFirmware:   len(tc.Firmware) == 0,
	}
}

func (tc *TestCtx) poll(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, tc.Opts.Attempts, tc.Opts.Delay, fn)
}

func (tc *TestCtx) sonic() (*sonic.Device, error) {
	if tc.SONiC == nil {
		return nil, errNotSONiC
	}

	return tc.SONiC, nil
}

// apply pushes a template and wraps its revert into a runner revert.
func (tc *TestCtx) apply(ctx context.Context, name string, params map[string]any) ([]runner.RevertFunc, error) {
	if tc.Templates == nil {
		return nil, errNoTemplates
	}

	revert, err := tc.Templates.Apply(ctx, tc.Engine, name, params)
	reverts := []runner.RevertFunc{}
	if revert != nil {
		reverts = append(reverts, func(ctx context.Context) error {
			if err := revert(ctx); err != nil {
				return fmt.Errorf("reverting template %s: %w", name, err)
			}

			return nil
		})
	}
	if err != nil {
		return reverts, fmt.Errorf("applying template %s: %w", name, err)
	}

	return reverts, nil
}

// ready is the setup of every suite: the DUT answers and, for SONiC, the critical services are up.
func (tc *TestCtx) ready(ctx context.Context, initial bool) error {
	if initial {
		info, err := tc.Device.Info(ctx)
		if err != nil {
			return fmt.Errorf("getting dut info: %w", err)
		}
		slog.Debug("DUT ready", "dut", tc.Name, "hostname", info.Hostname, "version", info.Version)
	}

	if tc.SONiC != nil {
		if err := tc.SONiC.System.WaitServices(ctx, sonic.CriticalServices, tc.Opts.Attempts, tc.Opts.Delay); err != nil {
			return err
		}
	}

	return nil
}

// All returns the suites in the order they should run.
func All(tc *TestCtx) []*runner.JUnitTestSuite {
	return []*runner.JUnitTestSuite{
		makeSystemSuite(tc),
		makeLinkSuite(tc),
		makeFDBSuite(tc),
		makeVXLANSuite(tc),
		makeQoSSuite(tc),
		makeDPUSuite(tc),
		makeFirmwareSuite(tc),
		makeARSuite(tc),
		makeWCMPSuite(tc),
	}
}
