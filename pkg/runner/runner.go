// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package runner selects and runs test suites against a DUT and produces JUnit reports.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"go.githedgehog.com/switchqa/pkg/loganalyzer"
	"go.githedgehog.com/switchqa/pkg/skipif"
	"golang.org/x/term"
)

var (
	errInitialSetup = errors.New("initial setup failed")
	ErrTestsFailed  = errors.New("some tests failed")
)

// Skipper decides dynamically whether a test should be skipped, see skipif.Evaluator.
type Skipper interface {
	ShouldSkip(ctx context.Context, test string) skipif.Decision
}

// LogAnalyzer brackets every test with syslog markers, see loganalyzer.Analyzer.
type LogAnalyzer interface {
	Start(ctx context.Context, name string) (loganalyzer.Marker, error)
	Stop(ctx context.Context, m loganalyzer.Marker) (*loganalyzer.Result, error)
}

type Opts struct {
	Regexes        []string
	InvertRegex    bool
	FailFast       bool
	PauseOnFailure bool
	ResultsFile    string

	// Env describes what the testbed lacks, a test is skipped if it sets a flag that's set here.
	// ExtendedOnly is inverted: set it to enable extended tests.
	Env SkipFlags

	Skipper     Skipper
	LogAnalyzer LogAnalyzer

	// Pause is called on failures when PauseOnFailure is set, defaults to waiting for the user.
	Pause func(ctx context.Context) error
}

func printTestSuite(ts *JUnitTestSuite) {
	slog.Info("*** Test suite", "suite", ts.Name, "tests", ts.Tests)
	for _, test := range ts.TestCases {
		slog.Info("* Test", "name", test.Name, "skipFlags", test.SkipFlags.PrettyPrint())
	}
}

// List prints the suites together with their tests and skip flags.
func List(suites []*JUnitTestSuite) {
	for _, suite := range suites {
		printTestSuite(suite)
	}
}

func printSuiteResults(ts *JUnitTestSuite) {
	var numFailed, numSkipped, numPassed int
	slog.Info("Test suite results", "suite", ts.Name)
	for _, test := range ts.TestCases {
		if test.Skipped != nil { //nolint:gocritic
			slog.Warn("SKIP", "test", test.Name, "reason", test.Skipped.Message)
			numSkipped++
		} else if test.Failure != nil {
			slog.Error("FAIL", "test", test.Name, "error", strings.ReplaceAll(test.Failure.Message, "\n", "; "))
			numFailed++
		} else {
			slog.Info("PASS", "test", test.Name)
			numPassed++
		}
	}
	slog.Info("Test suite summary", "tests", len(ts.TestCases), "passed", numPassed, "skipped", numSkipped, "failed", numFailed, "duration", ts.TimeHuman)
}

func PauseOnFailure(ctx context.Context) error {
	slog.Warn("Test failed, pausing execution. Note that reverts might still need to apply, so if you intend to continue, please make sure to leave the DUT in the same state as you found it")

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// CI environment - pause for a long time to allow debugging
		pauseDuration := 60 * time.Minute
		slog.Info("Test will automatically continue due to the non-interactive env after the pause duration", "duration", pauseDuration)
		slog.Info("You can connect to debug the DUT state during this pause")

		select {
		case <-ctx.Done():
			return fmt.Errorf("sleeping for pause on failure: %w", ctx.Err())
		case <-time.After(pauseDuration):
		}
	} else {
		slog.Info("Press enter to continue...")
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
			return fmt.Errorf("waiting for enter: %w", err)
		}
	}

	slog.Info("Continuing...")

	return nil
}

func (o *Opts) pause(ctx context.Context) {
	if !o.PauseOnFailure {
		return
	}

	pause := o.Pause
	if pause == nil {
		pause = PauseOnFailure
	}
	if err := pause(ctx); err != nil {
		slog.Warn("Pause on failure failed, ignoring", "err", err.Error())
	}
}

func setup(ctx context.Context, ts *JUnitTestSuite, initial bool) error {
	if ts.Setup == nil {
		return nil
	}

	return ts.Setup(ctx, initial)
}

func fail(ts *JUnitTestSuite, idx int, err error) {
	if ts.TestCases[idx].Failure == nil {
		ts.Failures++
	}
	ts.TestCases[idx].Failure = &Failure{
		Message: err.Error(),
	}
}

func (o *Opts) startLogs(ctx context.Context, name string) (loganalyzer.Marker, bool) {
	if o.LogAnalyzer == nil {
		return loganalyzer.Marker{}, false
	}

	marker, err := o.LogAnalyzer.Start(ctx, name)
	if err != nil {
		slog.Warn("Starting log analyzer failed, syslog won't be checked", "test", name, "err", err.Error())

		return loganalyzer.Marker{}, false
	}

	return marker, true
}

func (o *Opts) stopLogs(ctx context.Context, marker loganalyzer.Marker) error {
	res, err := o.LogAnalyzer.Stop(ctx, marker)
	if err != nil {
		return fmt.Errorf("stopping log analyzer: %w", err)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("log analyzer: %w", err)
	}

	return nil
}

func doRunSuite(ctx context.Context, opts *Opts, ts *JUnitTestSuite) (*JUnitTestSuite, error) {
	suiteStart := time.Now()
	slog.Info("** Running test suite", "suite", ts.Name, "tests", len(ts.TestCases), "start-time", suiteStart.Format(time.RFC3339))

	if err := setup(ctx, ts, true); err != nil {
		slog.Error("Initial test suite setup failed", "suite", ts.Name, "error", err.Error())
		opts.pause(ctx)

		return ts, fmt.Errorf("%w: %w", errInitialSetup, err)
	}

	prevRevertsFailed := false
	for idx, test := range ts.TestCases {
		if test.Skipped != nil {
			slog.Info("SKIP", "test", test.Name, "reason", test.Skipped.Message)

			continue
		}
		slog.Info("* Running test", "test", test.Name)
		if prevRevertsFailed {
			if err := setup(ctx, ts, false); err != nil {
				err = fmt.Errorf("failed to run setup between tests: %w", err)
				fail(ts, idx, err)
				slog.Error("FAIL", "test", test.Name, "error", err.Error())
				opts.pause(ctx)
				if opts.FailFast {
					return ts, err
				}

				continue
			}
		}
		prevRevertsFailed = false

		marker, analyzing := opts.startLogs(ctx, test.Name)

		testStart := time.Now()
		skip, reverts, err := test.F(ctx)
		ts.TestCases[idx].Time = time.Since(testStart).Seconds()
		// - if skip is true, the test is marked as skipped and the error is only the skip reason
		// - if err is not nil, the test is marked as failed
		// - reverts are applied in reverse order, the first failing one fails the test and stops the rest
		// - syslog is checked last, a passed test fails if unexpected errors were logged
		if skip {
			skipMsg := "Skipped by test function (unspecified reason)"
			if err != nil {
				skipMsg = err.Error()
			}
			err = nil
			ts.TestCases[idx].Skipped = &Skipped{
				Message: skipMsg,
			}
			ts.Skipped++
			slog.Warn("SKIP", "test", test.Name, "reason", skipMsg)
		}
		if err != nil {
			fail(ts, idx, err)
			slog.Error("FAIL", "test", test.Name, "error", err.Error())
			opts.pause(ctx)
		}

		for ridx := len(reverts) - 1; ridx >= 0; ridx-- {
			revertErr := reverts[ridx](ctx)
			if revertErr == nil {
				continue
			}

			slog.Error("REVERT FAIL", "test", test.Name, "error", revertErr.Error())
			err = errors.Join(err, revertErr)
			if skip {
				ts.TestCases[idx].Skipped = nil
				ts.Skipped--
			}
			fail(ts, idx, err)
			prevRevertsFailed = true
			opts.pause(ctx)

			break
		}

		if analyzing {
			if logErr := opts.stopLogs(ctx, marker); logErr != nil && !skip {
				slog.Error("FAIL", "test", test.Name, "error", logErr.Error())
				err = errors.Join(err, logErr)
				fail(ts, idx, err)
			}
		}

		if err != nil && opts.FailFast {
			ts.TimeHuman = time.Since(suiteStart).Round(time.Second)
			ts.Time = ts.TimeHuman.Seconds()

			return ts, fmt.Errorf("test %q failed: %w", test.Name, err)
		}
		if !skip && err == nil {
			slog.Info("PASS", "test", test.Name)
		}
	}

	ts.TimeHuman = time.Since(suiteStart).Round(time.Second)
	ts.Time = ts.TimeHuman.Seconds()
	slog.Info("** Finished test suite", "suite", ts.Name, "duration", ts.TimeHuman.String())
	printSuiteResults(ts)

	return ts, nil
}

func compileRegexes(regexes []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(regexes))
	for _, regex := range regexes {
		re, err := regexp.Compile(regex)
		if err != nil {
			return nil, fmt.Errorf("compiling regex %s: %w", regex, err)
		}
		compiled = append(compiled, re)
	}

	return compiled, nil
}

func regexpSelection(regexes []*regexp.Regexp, invertRegex bool, suite *JUnitTestSuite) *JUnitTestSuite {
	if len(regexes) == 0 {
		return suite
	}

	for i, test := range suite.TestCases {
		matched := false
		for _, regex := range regexes {
			if regex.MatchString(test.Name) {
				matched = true

				break
			}
		}
		// we skip the test:
		// - if it matched and we are inverting the regex (match == true, invertRegex == true)
		// - if it didn't match and we are not inverting the regex (match == false, invertRegex == false)
		if matched == invertRegex {
			suite.TestCases[i].Skipped = &Skipped{
				Message: "Regex selection",
			}
			suite.Skipped++
		}
	}

	return suite
}

// skipReason returns why the test can't run in env, or an empty string.
func skipReason(test, env SkipFlags) string {
	switch {
	case test.ExtendedOnly && !env.ExtendedOnly:
		return "Extended tests are not enabled"
	case test.SONiCOnly && env.SONiCOnly:
		return "The DUT isn't running SONiC"
	case test.NVOSOnly && env.NVOSOnly:
		return "The DUT isn't running NVOS"
	case test.NoDPU && env.NoDPU:
		return "There are no DPU modules on the DUT"
	case test.NoPower && env.NoPower:
		return "There are no PDU outlets configured for the DUT"
	case test.NoHosts && env.NoHosts:
		return "There are no traffic hosts attached to the DUT"
	case test.NoFirmware && env.NoFirmware:
		return "There are no firmware artifacts configured"
	}

	return ""
}

func failAllTests(suite *JUnitTestSuite, err error) *JUnitTestSuite {
	for i := range suite.TestCases {
		if suite.TestCases[i].Skipped != nil {
			continue
		}
		fail(suite, i, err)
	}

	return suite
}

func selectAndRunSuite(ctx context.Context, opts *Opts, suite *JUnitTestSuite, regexes []*regexp.Regexp) (*JUnitTestSuite, error) {
	suite.Tests = len(suite.TestCases)
	suite = regexpSelection(regexes, opts.InvertRegex, suite)
	for i, test := range suite.TestCases {
		if test.Skipped != nil {
			continue
		}
		reason := skipReason(test.SkipFlags, opts.Env)
		if reason == "" && opts.Skipper != nil {
			if decision := opts.Skipper.ShouldSkip(ctx, test.Name); decision.Skip {
				reason = decision.Reason
			}
		}
		if reason != "" {
			suite.TestCases[i].Skipped = &Skipped{
				Message: reason,
			}
			suite.Skipped++
		}
	}
	if suite.Skipped == suite.Tests {
		slog.Info("All tests in suite skipped, skipping suite", "suite", suite.Name)

		return suite, nil
	}

	suite, err := doRunSuite(ctx, opts, suite)
	if err != nil {
		// We could get here because:
		// 1) the initial setup has failed and we didn't run any tests (regardless of failFast)
		// 2) one of the tests has failed and failFast is set
		if errors.Is(err, errInitialSetup) {
			suite = failAllTests(suite, err)
		}

		return suite, err
	}

	return suite, nil
}

// Run runs all suites with the selection and skip rules of opts. The report is
// returned even if some tests failed, in that case the error wraps ErrTestsFailed.
func Run(ctx context.Context, suites []*JUnitTestSuite, opts Opts) (*JUnitReport, error) {
	runStart := time.Now()

	regexes, err := compileRegexes(opts.Regexes)
	if err != nil {
		return nil, err
	}

	report := &JUnitReport{}
	var runErr error
	for _, suite := range suites {
		results, err := selectAndRunSuite(ctx, &opts, suite, regexes)
		report.Suites = append(report.Suites, *results)
		if err != nil && opts.FailFast {
			runErr = fmt.Errorf("running suite %s: %w", suite.Name, err)

			break
		}
	}

	slog.Info("*** Recap of the test results ***")
	for idx := range report.Suites {
		printSuiteResults(&report.Suites[idx])
	}

	if opts.ResultsFile != "" {
		if err := report.WriteFile(opts.ResultsFile); err != nil {
			return report, errors.Join(runErr, err)
		}
	}

	slog.Info("All tests completed", "duration", time.Since(runStart).String())

	if failures := report.Failures(); failures > 0 {
		counts := []string{}
		for _, suite := range report.Suites {
			counts = append(counts, fmt.Sprintf("%s=%d", suite.Name, suite.Failures))
		}

		return report, errors.Join(runErr, fmt.Errorf("%w: %s", ErrTestsFailed, strings.Join(counts, ", ")))
	}

	return report, runErr
}
