// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package swqa implements the swqa commands on top of the testbed, the suites and the runner.
package swqa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"go.githedgehog.com/switchqa/pkg/artifactory"
	"go.githedgehog.com/switchqa/pkg/cfgtmpl"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/embed"
	"go.githedgehog.com/switchqa/pkg/loganalyzer"
	"go.githedgehog.com/switchqa/pkg/mars"
	"go.githedgehog.com/switchqa/pkg/power"
	"go.githedgehog.com/switchqa/pkg/runner"
	"go.githedgehog.com/switchqa/pkg/skipif"
	"go.githedgehog.com/switchqa/pkg/suites"
	"go.githedgehog.com/switchqa/pkg/testbed"
	"go.githedgehog.com/switchqa/pkg/tracker/github"
	"go.githedgehog.com/switchqa/pkg/tracker/redmine"
)

const DefaultSearchLimit = 20

var (
	ErrNoPDU         = errors.New("no pdu configured")
	ErrNoArtifactory = errors.New("no artifactory configured")
)

// Templates returns the builtin templates together with the ones referenced by the testbed.
func Templates(tb *testbed.Testbed) (*cfgtmpl.Library, error) {
	lib := cfgtmpl.NewLibrary()
	if err := lib.AddData(embed.Templates, embed.TemplatesSource); err != nil {
		return nil, fmt.Errorf("loading builtin templates: %w", err)
	}

	if tb != nil {
		if err := lib.AddFiles(tb.Templates...); err != nil {
			return nil, fmt.Errorf("loading testbed templates: %w", err)
		}
	}

	return lib, nil
}

// Skipper builds the skip rule evaluator for the DUT, nil if the testbed has no rules.
func Skipper(ctx context.Context, tb *testbed.Testbed, info *dut.Info) (*skipif.Evaluator, error) {
	if len(tb.SkipRules) == 0 {
		return nil, nil //nolint:nilnil
	}

	rules, err := skipif.Load(tb.SkipRules...)
	if err != nil {
		return nil, fmt.Errorf("loading skip rules: %w", err)
	}

	var gh, rm skipif.IssueChecker
	if cfg := tb.GitHubConfig(); cfg != nil {
		client, err := github.New(ctx, *cfg)
		if err != nil {
			return nil, fmt.Errorf("creating github client: %w", err)
		}
		gh = client
	}
	if cfg := tb.RedmineConfig(); cfg != nil {
		client, err := redmine.New(*cfg)
		if err != nil {
			return nil, fmt.Errorf("creating redmine client: %w", err)
		}
		rm = client
	}

	eval, err := skipif.NewEvaluator(rules, skipif.FactsFromInfo(info), gh, rm)
	if err != nil {
		return nil, fmt.Errorf("compiling skip rules: %w", err)
	}

	return eval, nil
}

func logAnalyzer(tb *testbed.Testbed, engine dut.Engine) (*loganalyzer.Analyzer, error) {
	rules := loganalyzer.DefaultRules
	if tb.LogRules != "" {
		var err error
		if rules, err = loganalyzer.LoadRules(tb.LogRules); err != nil {
			return nil, err
		}
	}

	a, err := loganalyzer.New(engine, rules)
	if err != nil {
		return nil, fmt.Errorf("creating log analyzer: %w", err)
	}

	return a, nil
}

type RunOpts struct {
	Testbed       string
	DUT           string
	Regexes       []string
	InvertRegex   bool
	ResultsFile   string
	Extended      bool
	FailFast      bool
	PauseOnFail   bool
	NoLogAnalyzer bool
	DownloadDir   string
	Pick          PickFunc
}

func DoRun(ctx context.Context, opts RunOpts) error {
	tb, err := testbed.Load(opts.Testbed)
	if err != nil {
		return fmt.Errorf("loading testbed: %w", err)
	}

	d, err := resolveDUT(tb, opts.DUT, opts.Pick)
	if err != nil {
		return err //nolint:wrapcheck
	}

	lib, err := Templates(tb)
	if err != nil {
		return err
	}

	tc, closeHosts, err := suites.FromTestbed(ctx, tb, d, lib, suites.Opts{
		Extended:    opts.Extended,
		DownloadDir: opts.DownloadDir,
	})
	if err != nil {
		return fmt.Errorf("preparing tests: %w", err)
	}
	defer func() {
		if err := closeHosts(); err != nil {
			slog.Warn("Failed to close host connections", "err", err)
		}
	}()

	info, err := tc.Device.Info(ctx)
	if err != nil {
		return fmt.Errorf("getting dut info: %w", err)
	}
	slog.Info("Testing DUT", "dut", d.Name, "os", info.OS, "version", info.Version, "platform", info.Platform)

	runOpts := runner.Opts{
		Regexes:        opts.Regexes,
		InvertRegex:    opts.InvertRegex,
		FailFast:       opts.FailFast,
		PauseOnFailure: opts.PauseOnFail,
		ResultsFile:    opts.ResultsFile,
		Env:            tc.Env(),
	}

	skipper, err := Skipper(ctx, tb, info)
	if err != nil {
		return err
	}
	if skipper != nil {
		runOpts.Skipper = skipper
	}

	if !opts.NoLogAnalyzer {
		analyzer, err := logAnalyzer(tb, tc.Engine)
		if err != nil {
			return err
		}
		runOpts.LogAnalyzer = analyzer
	}

	if _, err := runner.Run(ctx, suites.All(tc), runOpts); err != nil {
		return fmt.Errorf("running suites: %w", err)
	}

	return nil
}

// DoList prints the suites without connecting to anything.
func DoList(_ context.Context, dutOS dut.OS) error {
	tc, err := suites.New("list", dutOS, nil, suites.Opts{})
	if err != nil {
		return fmt.Errorf("listing suites: %w", err)
	}

	runner.List(suites.All(tc))

	return nil
}

func DoExec(ctx context.Context, testbedPath, dutName, cmd string, pick PickFunc) error {
	tb, err := testbed.Load(testbedPath)
	if err != nil {
		return fmt.Errorf("loading testbed: %w", err)
	}

	d, err := resolveDUT(tb, dutName, pick)
	if err != nil {
		return err //nolint:wrapcheck
	}

	out, err := tb.Engine(d).Run(ctx, cmd)
	fmt.Print(out)
	if err != nil {
		return fmt.Errorf("running on %s: %w", d.Name, err)
	}

	return nil
}

// ParseParams parses key=value pairs.
func ParseParams(pairs []string) (map[string]any, error) {
	params := map[string]any{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", pair) //nolint:goerr113
		}
		params[key] = value
	}

	return params, nil
}

// DoTemplateRender prints what applying the template would send, testbedPath is optional.
func DoTemplateRender(testbedPath, name string, pairs []string) error {
	var tb *testbed.Testbed
	if testbedPath != "" {
		var err error
		if tb, err = testbed.Load(testbedPath); err != nil {
			return fmt.Errorf("loading testbed: %w", err)
		}
	}

	lib, err := Templates(tb)
	if err != nil {
		return err
	}

	if name == "" {
		for _, name := range lib.Names() {
			fmt.Println(name)
		}

		return nil
	}

	params, err := ParseParams(pairs)
	if err != nil {
		return err
	}

	r, err := lib.Render(name, params)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if r.Kind == cfgtmpl.KindPatch {
		fmt.Println(string(r.Patch))

		return nil
	}

	fmt.Println("# apply")
	for _, cmd := range r.Apply {
		fmt.Println(cmd)
	}
	fmt.Println("# cleanup")
	for _, cmd := range r.Cleanup {
		fmt.Println(cmd)
	}

	return nil
}

// DoSkipCheck evaluates the skip rules against the DUT for the given tests or all of them.
func DoSkipCheck(ctx context.Context, testbedPath, dutName string, tests []string, pick PickFunc) error {
	tb, err := testbed.Load(testbedPath)
	if err != nil {
		return fmt.Errorf("loading testbed: %w", err)
	}

	d, err := resolveDUT(tb, dutName, pick)
	if err != nil {
		return err //nolint:wrapcheck
	}

	tc, err := suites.New(d.Name, d.OS, tb.Engine(d), suites.Opts{})
	if err != nil {
		return err //nolint:wrapcheck
	}

	info, err := tc.Device.Info(ctx)
	if err != nil {
		return fmt.Errorf("getting dut info: %w", err)
	}

	eval, err := Skipper(ctx, tb, info)
	if err != nil {
		return err
	}
	if eval == nil {
		slog.Warn("No skip rules in testbed", "testbed", tb.Name)

		return nil
	}

	if len(tests) == 0 {
		for _, suite := range suites.All(tc) {
			tests = append(tests, lo.Map(suite.TestCases, func(test runner.JUnitTestCase, _ int) string {
				return test.Name
			})...)
		}
	}

	rows := make([][]string, 0, len(tests))
	for _, test := range tests {
		decision := eval.ShouldSkip(ctx, test)
		rows = append(rows, []string{test, fmt.Sprintf("%t", decision.Skip), decision.Reason})
	}

	return printTable(os.Stdout, []string{"Test", "Skip", "Reason"}, rows)
}

func printTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(header)...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("adding table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	return nil
}

type SearchOpts struct {
	Repo     string
	Path     string
	Name     string
	Limit    int
	Download string
}

func DoArtifactsSearch(ctx context.Context, testbedPath string, opts SearchOpts) error {
	tb, err := testbed.Load(testbedPath)
	if err != nil {
		return fmt.Errorf("loading testbed: %w", err)
	}

	cfg := tb.ArtifactoryConfig()
	if cfg == nil {
		return ErrNoArtifactory
	}

	client, err := artifactory.New(*cfg)
	if err != nil {
		return fmt.Errorf("creating artifactory client: %w", err)
	}

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	q, err := artifactory.FindQuery(opts.Repo, opts.Path, opts.Name, limit)
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	items, err := client.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	rows := lo.Map(items, func(item artifactory.Item, _ int) []string {
		return []string{item.FullPath(), fmt.Sprintf("%d", item.Size), item.Modified.Format("2006-01-02 15:04")}
	})
	if err := printTable(os.Stdout, []string{"Path", "Size", "Modified"}, rows); err != nil {
		return err
	}

	if opts.Download == "" {
		return nil
	}
	if len(items) == 0 {
		return fmt.Errorf("nothing to download: %w", artifactory.ErrNotFound)
	}

	path, err := client.Download(ctx, items[0], opts.Download, true)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	slog.Info("Downloaded", "item", items[0].FullPath(), "path", path)

	return nil
}

// DoPower applies the action to all outlets of the DUTs, all DUTs if none given.
func DoPower(ctx context.Context, testbedPath string, duts []string, action power.Action) error {
	if !slices.Contains(power.Actions, action) {
		return fmt.Errorf("invalid power action %q", action) //nolint:goerr113
	}

	tb, err := testbed.Load(testbedPath)
	if err != nil {
		return fmt.Errorf("loading testbed: %w", err)
	}

	client := tb.PowerClient()
	if client == nil {
		return ErrNoPDU
	}

	if len(duts) == 0 {
		duts = lo.Map(tb.DUTs, func(d testbed.DUT, _ int) string { return d.Name })
	}

	for _, name := range duts {
		d, err := tb.DUT(name)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if len(d.Outlets) == 0 {
			slog.Warn("DUT has no outlets, skipping", "dut", d.Name)

			continue
		}

		slog.Info("Powering DUT", "dut", d.Name, "action", action, "psus", len(d.Outlets))
		if action == power.ActionCycle {
			err = client.CycleAll(ctx, d.Outlets)
		} else {
			err = client.PowerAll(ctx, d.Outlets, action)
		}
		if err != nil {
			return fmt.Errorf("powering %s: %w", d.Name, err)
		}
	}

	return nil
}

type MarsOpts struct {
	Testbed     string
	Player      string
	DUT         string
	Regexes     []string
	InvertRegex bool
	FailFast    bool
	Extended    bool
	Verbose     bool
	ResultsFile string
}

func DoMars(ctx context.Context, opts MarsOpts) error {
	tb, err := testbed.Load(opts.Testbed)
	if err != nil {
		return fmt.Errorf("loading testbed: %w", err)
	}

	p, err := tb.Player(opts.Player)
	if err != nil {
		return err //nolint:wrapcheck
	}

	report, err := mars.Run(ctx, tb.PlayerSSHConfig(p), mars.Opts{
		Name:         p.Name,
		Binary:       p.Binary,
		WorkDir:      p.WorkDir,
		Testbed:      p.Testbed,
		DUT:          opts.DUT,
		Regexes:      opts.Regexes,
		InvertRegex:  opts.InvertRegex,
		FailFast:     opts.FailFast,
		Extended:     opts.Extended,
		Verbose:      opts.Verbose,
		LocalResults: opts.ResultsFile,
	})
	if report != nil {
		for _, suite := range report.Suites {
			slog.Info("Suite", "name", suite.Name, "tests", suite.Tests, "failures", suite.Failures, "skipped", suite.Skipped)
		}
	}
	if err != nil {
		return fmt.Errorf("mars run on %s: %w", p.Name, err)
	}

	return nil
}
