// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.githedgehog.com/switchqa/pkg/artifactory"
	"go.githedgehog.com/switchqa/pkg/cfgtmpl"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/testbed"
	"golang.org/x/sync/errgroup"
)

// FromTestbed builds the test context for a DUT of the testbed and connects
// to its traffic hosts. The returned close func disconnects the hosts.
func FromTestbed(ctx context.Context, tb *testbed.Testbed, d *testbed.DUT, lib *cfgtmpl.Library, opts Opts) (*TestCtx, func() error, error) {
	ssh := tb.SSHConfig(d)
	tc, err := New(d.Name, d.OS, dut.NewSSHEngine(d.Name, ssh), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("dut %s: %w", d.Name, err)
	}

	tc.Templates = lib
	tc.Ports = d.Ports
	tc.DPUs = d.DPUs
	tc.VXLAN = d.VXLAN
	tc.Firmware = d.Firmware
	tc.WaitReachable = ssh.Wait
	tc.Upload = ssh.UploadPath

	if client := tb.PowerClient(); client != nil && len(d.Outlets) > 0 {
		tc.Outlets = d.Outlets
		tc.Power = client
	}

	if cfg := tb.ArtifactoryConfig(); cfg != nil {
		client, err := artifactory.New(*cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating artifactory client: %w", err)
		}
		tc.Artifacts = client
	}

	hosts, err := tb.HostsOf(d)
	if err != nil {
		return nil, nil, err
	}

	engines := []*dut.HostEngine{}
	enginesMu := sync.Mutex{}
	closeAll := func() error {
		errs := []error{}
		for _, engine := range engines {
			errs = append(errs, engine.Close())
		}

		return errors.Join(errs...)
	}

	g, gctx := errgroup.WithContext(ctx)
	tc.Hosts = make([]Host, len(hosts))
	for idx, host := range hosts {
		g.Go(func() error {
			engine, err := host.Connect(gctx)
			if err != nil {
				return err
			}

			enginesMu.Lock()
			engines = append(engines, engine)
			enginesMu.Unlock()

			tc.Hosts[idx] = Host{
				Name:    host.Name,
				Iface:   host.Iface,
				MAC:     host.MAC,
				DUTPort: host.DUTPort,
				VLAN:    host.VLAN,
				Peer:    host.Peer,
				Engine:  engine,
			}
			slog.Debug("Connected to host", "host", host.Name, "dut", d.Name)

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("connecting hosts: %w", err), closeAll())
	}

	return tc, closeAll, nil
}
