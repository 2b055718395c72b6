// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package mars runs the suites from a remote player host and collects the JUnit report.
package mars

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"go.githedgehog.com/switchqa/pkg/runner"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
)

const (
	DefaultBinary  = "swqa"
	DefaultWorkDir = "/tmp"
)

// Player is where the suites run, sshutil.Config is the real one.
type Player interface {
	StreamLog(ctx context.Context, cmd string, logName string, log func(msg string, args ...any)) error
	DownloadPath(remotePath string, localPath string) error
}

type Opts struct {
	Name          string
	Binary        string
	WorkDir       string
	Testbed       string
	DUT           string
	Regexes       []string
	InvertRegex   bool
	FailFast      bool
	Extended      bool
	Verbose       bool
	RemoteResults string
	LocalResults  string
}

func (o *Opts) defaults() {
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.Name == "" {
		o.Name = "player"
	}
	if o.RemoteResults == "" {
		dir := o.WorkDir
		if dir == "" {
			dir = DefaultWorkDir
		}
		o.RemoteResults = path.Join(dir, "swqa-"+uuid.New().String()+".xml")
	}
}

// Command returns the remote command line running the suites.
func Command(opts Opts) string {
	opts.defaults()

	args := []string{opts.Binary, "run", "--testbed", opts.Testbed, "--results-file", opts.RemoteResults}
	if opts.DUT != "" {
		args = append(args, "--dut", opts.DUT)
	}
	for _, regex := range opts.Regexes {
		args = append(args, "--regex", regex)
	}
	if opts.InvertRegex {
		args = append(args, "--invert-regex")
	}
	if opts.FailFast {
		args = append(args, "--fail-fast")
	}
	if opts.Extended {
		args = append(args, "--extended")
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}

	cmd := shellutil.Join(args...)
	if opts.WorkDir != "" {
		cmd = "cd " + shellutil.Quote(opts.WorkDir) + " && " + cmd
	}

	return cmd
}

// Run executes the suites on the player and fetches the report. A failed
// remote run that still produced a report returns both.
func Run(ctx context.Context, player Player, opts Opts) (*runner.JUnitReport, error) {
	if opts.Testbed == "" {
		return nil, fmt.Errorf("no remote testbed path") //nolint:goerr113
	}
	opts.defaults()

	cmd := Command(opts)
	slog.Info("Running suites on player", "player", opts.Name, "cmd", cmd)

	var runErr error
	if err := player.StreamLog(ctx, cmd, opts.Name, slog.Info); err != nil {
		runErr = fmt.Errorf("running suites on %s: %w", opts.Name, err)
	}

	local := opts.LocalResults
	if local == "" {
		dir, err := os.MkdirTemp("", "swqa-mars-")
		if err != nil {
			return nil, errors.Join(runErr, fmt.Errorf("creating temp dir: %w", err))
		}
		defer os.RemoveAll(dir)

		local = filepath.Join(dir, path.Base(opts.RemoteResults))
	}

	if err := player.DownloadPath(opts.RemoteResults, local); err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("downloading results from %s: %w", opts.Name, err))
	}

	report, err := runner.ReadReport(local)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}

	slog.Info("Player results", "player", opts.Name, "suites", len(report.Suites), "failures", report.Failures())

	return report, runErr
}
