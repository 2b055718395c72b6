// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package suites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"go.githedgehog.com/switchqa/pkg/dut/sonic"
	"go.githedgehog.com/switchqa/pkg/runner"
	"go.githedgehog.com/switchqa/pkg/testbed"
)

var errNoArtifacts = errors.New("no artifact storage or upload configured")

func makeFirmwareSuite(tc *TestCtx) *runner.JUnitTestSuite {
	suite := &runner.JUnitTestSuite{
		Name:  "Firmware Suite",
		Setup: tc.ready,
	}
	suite.TestCases = []runner.JUnitTestCase{
		{
			Name: "Firmware versions",
			F:    tc.firmwareVersionsTest,
			SkipFlags: runner.SkipFlags{
				SONiCOnly:  true,
				NoFirmware: true,
			},
		},
		{
			Name: "Firmware install",
			F:    tc.firmwareInstallTest,
			SkipFlags: runner.SkipFlags{
				ExtendedOnly: true,
				SONiCOnly:    true,
				NoFirmware:   true,
			},
		},
	}
	suite.Tests = len(suite.TestCases)

	return suite
}

func (tc *TestCtx) firmwareVersionsTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}

	for _, fw := range tc.Firmware {
		ver, err := sw.Fwutil.Version(ctx, fw.Component)
		if err != nil {
			return false, nil, fmt.Errorf("getting %s version: %w", fw.Component, err)
		}
		if ver == "" || ver == "N/A" {
			return false, nil, fmt.Errorf("no version reported for %s", fw.Component) //nolint:goerr113
		}
		slog.Info("Firmware", "component", fw.Component, "version", ver)
	}

	return false, nil, nil
}

func (tc *TestCtx) downloadDir() (string, func(), error) {
	if tc.Opts.DownloadDir != "" {
		if err := os.MkdirAll(tc.Opts.DownloadDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating download dir: %w", err)
		}

		return tc.Opts.DownloadDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "swqa-firmware-")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp dir: %w", err)
	}

	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (tc *TestCtx) firmwareInstallTest(ctx context.Context) (bool, []runner.RevertFunc, error) {
	sw, err := tc.sonic()
	if err != nil {
		return true, nil, err
	}
	if tc.Artifacts == nil || tc.Upload == nil {
		return true, nil, errNoArtifacts
	}

	dir, cleanup, err := tc.downloadDir()
	if err != nil {
		return false, nil, err
	}
	defer cleanup()

	for _, fw := range tc.Firmware {
		before, err := sw.Fwutil.Version(ctx, fw.Component)
		if err != nil {
			return false, nil, fmt.Errorf("getting %s version: %w", fw.Component, err)
		}

		item, err := tc.Artifacts.Latest(ctx, fw.Repo, fw.Path, fw.Name)
		if err != nil {
			return false, nil, fmt.Errorf("looking up %s firmware: %w", fw.Component, err)
		}

		local, err := tc.Artifacts.Download(ctx, *item, dir, false)
		if err != nil {
			return false, nil, fmt.Errorf("downloading %s: %w", item.FullPath(), err)
		}

		remote := path.Join("/tmp", item.Name)
		if err := tc.Upload(local, remote); err != nil {
			return false, nil, fmt.Errorf("uploading %s: %w", item.Name, err)
		}

		slog.Info("Installing firmware", "component", fw.Component, "image", item.FullPath(), "current", before)
		if err := sw.Fwutil.Install(ctx, fw.Component, remote); err != nil {
			return false, nil, fmt.Errorf("installing %s firmware: %w", fw.Component, err)
		}

		after, err := sw.Fwutil.Version(ctx, fw.Component)
		if err != nil {
			return false, nil, fmt.Errorf("getting %s version after install: %w", fw.Component, err)
		}
		slog.Info("Firmware installed", "component", fw.Component, "before", before, "after", after)

		if fw.Version == "" || after == fw.Version {
			continue
		}
		if err := checkPending(ctx, sw, fw); err != nil {
			return false, nil, err
		}
	}

	return false, nil, nil
}

// checkPending accepts an image that only becomes active after a reboot, as
// long as fwutil reports it as the available version.
func checkPending(ctx context.Context, sw *sonic.Device, fw testbed.Firmware) error {
	statuses, err := sw.Fwutil.Status(ctx)
	if err != nil {
		return fmt.Errorf("getting firmware status: %w", err)
	}

	for _, status := range statuses {
		if status.Name != fw.Component {
			continue
		}
		if status.Available == fw.Version {
			slog.Info("Firmware pending activation", "component", fw.Component, "current", status.Version, "available", status.Available)

			return nil
		}

		return fmt.Errorf("%s firmware version mismatch: current %s, available %s, expected %s", fw.Component, status.Version, status.Available, fw.Version) //nolint:goerr113
	}

	return fmt.Errorf("%s firmware version mismatch: no status, expected %s", fw.Component, fw.Version) //nolint:goerr113
}
