// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"go.githedgehog.com/switchqa/pkg/loganalyzer"
	"go.githedgehog.com/switchqa/pkg/skipif"
)

func TestRegexpSelection(t *testing.T) {
	tsr := JUnitTestSuite{
		Name: "TestSuite1",
		TestCases: []JUnitTestCase{
			{
				Name: "Critical services",
			},
			{
				Name: "Version facts",
			},
			{
				Name: "VXLAN tunnel",
			},
			{
				Name: "VXLAN remote VTEP",
			},
			{
				Name: "AR port enable",
			},
			{
				Name: "WCMP enable",
			},
		},
	}

	tests := []struct {
		name        string
		regexes     []string
		invertRegex bool
		indexes     []int
	}{
		{
			name:        "No Regexes",
			regexes:     []string{},
			invertRegex: false,
			indexes:     []int{0, 1, 2, 3, 4, 5},
		},
		{
			name:        "No Regexes Inverted (no effect)",
			regexes:     []string{},
			invertRegex: true,
			indexes:     []int{0, 1, 2, 3, 4, 5},
		},
		{
			name:        "VXLAN",
			regexes:     []string{"^VXLAN"},
			invertRegex: false,
			indexes:     []int{2, 3},
		},
		{
			name:        "VXLAN Inverted",
			regexes:     []string{"^VXLAN"},
			invertRegex: true,
			indexes:     []int{0, 1, 4, 5},
		},
		{
			name:        "VXLAN + enable",
			regexes:     []string{"^VXLAN", "enable$"},
			invertRegex: false,
			indexes:     []int{2, 3, 4, 5},
		},
		{
			name:        "VXLAN + enable Inverted",
			regexes:     []string{"^VXLAN", "enable$"},
			invertRegex: true,
			indexes:     []int{0, 1},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			newSuite := &JUnitTestSuite{
				Name:      tsr.Name,
				TestCases: make([]JUnitTestCase, len(tsr.TestCases)),
			}
			copy(newSuite.TestCases, tsr.TestCases)
			var regexes []*regexp.Regexp
			for _, regex := range test.regexes {
				r, err := regexp.Compile(regex)
				require.NoError(t, err)
				regexes = append(regexes, r)
			}
			newSuite = regexpSelection(regexes, test.invertRegex, newSuite)
			for i, tc := range newSuite.TestCases {
				if slices.Contains(test.indexes, i) {
					require.Nil(t, tc.Skipped, "test case %s should not be skipped", tc.Name)
				} else {
					require.NotNil(t, tc.Skipped, "test case %s should be skipped", tc.Name)
				}
			}
		})
	}
}

func TestSkipReason(t *testing.T) {
	for _, test := range []struct {
		name     string
		test     SkipFlags
		env      SkipFlags
		expected bool
	}{
		{name: "no flags"},
		{name: "extended disabled", test: SkipFlags{ExtendedOnly: true}, expected: true},
		{name: "extended enabled", test: SkipFlags{ExtendedOnly: true}, env: SkipFlags{ExtendedOnly: true}},
		{name: "sonic only on nvos", test: SkipFlags{SONiCOnly: true}, env: SkipFlags{SONiCOnly: true}, expected: true},
		{name: "sonic only on sonic", test: SkipFlags{SONiCOnly: true}, env: SkipFlags{NVOSOnly: true}},
		{name: "no dpu", test: SkipFlags{NoDPU: true}, env: SkipFlags{NoDPU: true}, expected: true},
		{name: "env lacks unrelated", test: SkipFlags{NoPower: true}, env: SkipFlags{NoHosts: true, NoFirmware: true}},
	} {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, skipReason(test.test, test.env) != "")
		})
	}
}

func TestPrettyPrint(t *testing.T) {
	require.Equal(t, "None", (&SkipFlags{}).PrettyPrint())
	require.Equal(t, "EO, SONiC, NoPDU", (&SkipFlags{ExtendedOnly: true, SONiCOnly: true, NoPower: true}).PrettyPrint())
}

type recorder struct {
	calls []string
}

func (r *recorder) test(name string, skip bool, err error, reverts ...string) TestFunc {
	return func(_ context.Context) (bool, []RevertFunc, error) {
		r.calls = append(r.calls, "run "+name)
		fns := []RevertFunc{}
		for _, revert := range reverts {
			fns = append(fns, func(_ context.Context) error {
				r.calls = append(r.calls, "revert "+revert)
				if revert == "broken" {
					return errors.New("revert broken") //nolint:goerr113
				}

				return nil
			})
		}

		return skip, fns, err
	}
}

func (r *recorder) setup(err error) SetupFunc {
	return func(_ context.Context, initial bool) error {
		if initial {
			r.calls = append(r.calls, "setup initial")
		} else {
			r.calls = append(r.calls, "setup")
		}

		return err
	}
}

func TestRunSuite(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	errBoom := errors.New("boom") //nolint:goerr113

	suite := &JUnitTestSuite{
		Name:  "System",
		Setup: rec.setup(nil),
		TestCases: []JUnitTestCase{
			{Name: "pass", F: rec.test("pass", false, nil, "a", "b")},
			{Name: "fail", F: rec.test("fail", false, errBoom, "c")},
			{Name: "skip", F: rec.test("skip", true, errors.New("no vtep")), SkipFlags: SkipFlags{}}, //nolint:goerr113
			{Name: "revert fails", F: rec.test("revert fails", false, nil, "d", "broken", "e")},
			{Name: "after broken revert", F: rec.test("after broken revert", false, nil)},
			{Name: "extended", F: rec.test("extended", false, nil), SkipFlags: SkipFlags{ExtendedOnly: true}},
		},
	}

	results := filepath.Join(t.TempDir(), "results.xml")
	report, err := Run(ctx, []*JUnitTestSuite{suite}, Opts{ResultsFile: results})
	require.ErrorIs(t, err, ErrTestsFailed)
	require.Len(t, report.Suites, 1)

	require.Equal(t, []string{
		"setup initial",
		"run pass", "revert b", "revert a",
		"run fail", "revert c",
		"run skip",
		"run revert fails", "revert e", "revert broken",
		"setup",
		"run after broken revert",
	}, rec.calls)

	res := report.Suites[0]
	require.Equal(t, 6, res.Tests)
	require.Equal(t, 2, res.Failures)
	require.Equal(t, 2, res.Skipped)
	require.Nil(t, res.TestCases[0].Failure)
	require.Equal(t, "boom", res.TestCases[1].Failure.Message)
	require.Equal(t, "no vtep", res.TestCases[2].Skipped.Message)
	require.Equal(t, "revert broken", res.TestCases[3].Failure.Message)
	require.Nil(t, res.TestCases[4].Failure)
	require.Equal(t, "Extended tests are not enabled", res.TestCases[5].Skipped.Message)

	read, err := ReadReport(results)
	require.NoError(t, err)
	require.Len(t, read.Suites, 1)
	require.Equal(t, 2, read.Failures())
	require.Equal(t, "boom", read.Suites[0].TestCases[1].Failure.Message)
}

func TestRunFailFast(t *testing.T) {
	rec := &recorder{}
	suites := []*JUnitTestSuite{
		{
			Name: "first",
			TestCases: []JUnitTestCase{
				{Name: "fail", F: rec.test("fail", false, errors.New("boom"), "a")}, //nolint:goerr113
				{Name: "never", F: rec.test("never", false, nil)},
			},
		},
		{
			Name:      "second",
			TestCases: []JUnitTestCase{{Name: "never either", F: rec.test("never either", false, nil)}},
		},
	}

	report, err := Run(context.Background(), suites, Opts{FailFast: true})
	require.ErrorIs(t, err, ErrTestsFailed)
	require.ErrorContains(t, err, "running suite first")
	require.Len(t, report.Suites, 1)
	require.Equal(t, []string{"run fail", "revert a"}, rec.calls)
}

func TestRunInitialSetupFails(t *testing.T) {
	rec := &recorder{}
	suites := []*JUnitTestSuite{
		{
			Name:  "broken",
			Setup: rec.setup(errors.New("no connection")), //nolint:goerr113
			TestCases: []JUnitTestCase{
				{Name: "one", F: rec.test("one", false, nil)},
				{Name: "two", F: rec.test("two", false, nil)},
				{Name: "selected out", F: rec.test("selected out", false, nil)},
			},
		},
		{
			Name:      "next",
			TestCases: []JUnitTestCase{{Name: "three", F: rec.test("three", false, nil)}},
		},
	}

	report, err := Run(context.Background(), suites, Opts{Regexes: []string{"^(one|two|three)$"}})
	require.ErrorIs(t, err, ErrTestsFailed)
	require.Equal(t, []string{"setup initial", "run three"}, rec.calls)
	require.Equal(t, 2, report.Suites[0].Failures)
	require.Contains(t, report.Suites[0].TestCases[0].Failure.Message, "initial setup failed")
	require.NotNil(t, report.Suites[0].TestCases[2].Skipped)
	require.Equal(t, 0, report.Suites[1].Failures)
}

type fakeSkipper map[string]string

func (f fakeSkipper) ShouldSkip(_ context.Context, test string) skipif.Decision {
	reason, ok := f[test]

	return skipif.Decision{Skip: ok, Reason: reason}
}

type fakeAnalyzer struct {
	started []string
	dirty   map[string]bool
}

func (f *fakeAnalyzer) Start(_ context.Context, name string) (loganalyzer.Marker, error) {
	f.started = append(f.started, name)

	return loganalyzer.Marker{ID: "id-" + name, Name: name}, nil
}

func (f *fakeAnalyzer) Stop(_ context.Context, m loganalyzer.Marker) (*loganalyzer.Result, error) {
	res := &loganalyzer.Result{Marker: m}
	if f.dirty[m.Name] {
		res.Matched = []string{"Oct 14 10:00:00 sonic ERR syncd: SAI failure"}
	}

	return res, nil
}

func TestRunSkipperAndLogAnalyzer(t *testing.T) {
	rec := &recorder{}
	analyzer := &fakeAnalyzer{dirty: map[string]bool{"noisy": true}}
	suites := []*JUnitTestSuite{
		{
			Name: "suite",
			TestCases: []JUnitTestCase{
				{Name: "clean", F: rec.test("clean", false, nil)},
				{Name: "noisy", F: rec.test("noisy", false, nil)},
				{Name: "known issue", F: rec.test("known issue", false, nil)},
			},
		},
	}

	pauses := 0
	report, err := Run(context.Background(), suites, Opts{
		Skipper:        fakeSkipper{"known issue": "Open issue: github.com/org/repo#1"},
		LogAnalyzer:    analyzer,
		PauseOnFailure: true,
		Pause: func(_ context.Context) error {
			pauses++

			return nil
		},
	})
	require.ErrorIs(t, err, ErrTestsFailed)
	require.Equal(t, []string{"run clean", "run noisy"}, rec.calls)
	require.Equal(t, []string{"clean", "noisy"}, analyzer.started)
	require.Equal(t, 0, pauses)

	res := report.Suites[0]
	require.Nil(t, res.TestCases[0].Failure)
	require.Contains(t, res.TestCases[1].Failure.Message, "1 error lines in syslog")
	require.Equal(t, "Open issue: github.com/org/repo#1", res.TestCases[2].Skipped.Message)
}

func TestRunAllSkipped(t *testing.T) {
	rec := &recorder{}
	suites := []*JUnitTestSuite{
		{
			Name:  "dpu",
			Setup: rec.setup(nil),
			TestCases: []JUnitTestCase{
				{Name: "midplane", F: rec.test("midplane", false, nil), SkipFlags: SkipFlags{NoDPU: true}},
			},
		},
	}

	report, err := Run(context.Background(), suites, Opts{Env: SkipFlags{NoDPU: true}})
	require.NoError(t, err)
	require.Empty(t, rec.calls)
	require.Equal(t, 1, report.Suites[0].Skipped)
}
