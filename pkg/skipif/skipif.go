// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package skipif decides whether a test is skipped on the current DUT based on
// YAML rules: platform and release lists, OS version constraints and the state
// of known issues in GitHub or Redmine.
package skipif

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"
	"go.githedgehog.com/switchqa/pkg/dut"
	"sigs.k8s.io/yaml"
)

type Rule struct {
	Tests     []string `json:"tests"`
	Platforms []string `json:"platforms,omitempty"`
	Releases  []string `json:"releases,omitempty"`
	Versions  string   `json:"versions,omitempty"`
	GitHub    []string `json:"github,omitempty"`
	Redmine   []string `json:"redmine,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

type File struct {
	Rules []Rule `json:"rules"`
}

func (r *Rule) hasConditions() bool {
	return len(r.Platforms) > 0 || len(r.Releases) > 0 || r.Versions != "" || len(r.GitHub) > 0 || len(r.Redmine) > 0
}

// Load reads rules from one or more YAML files.
func Load(paths ...string) ([]Rule, error) {
	rules := []Rule{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		f := &File{}
		if err := yaml.UnmarshalStrict(data, f); err != nil {
			return nil, fmt.Errorf("unmarshaling %q: %w", path, err)
		}

		rules = append(rules, f.Rules...)
	}

	return rules, nil
}

// Facts describe the DUT the rules are evaluated against.
type Facts struct {
	OS       dut.OS
	Platform string
	HwSKU    string
	Release  string
	Version  string
}

func FactsFromInfo(info *dut.Info) Facts {
	return Facts{
		OS:       info.OS,
		Platform: info.Platform,
		HwSKU:    info.HwSKU,
		Release:  dut.Release(info.Version),
		Version:  info.Version,
	}
}

// IssueChecker reports whether an issue is still active, i.e. the bug it tracks is not fixed yet.
type IssueChecker interface {
	IsActive(ctx context.Context, ref string) (bool, error)
}

type Decision struct {
	Skip   bool
	Reason string
}

type compiledRule struct {
	Rule
	tests     []*regexp.Regexp
	platforms []*regexp.Regexp
	versions  *semver.Constraints
}

type Evaluator struct {
	rules   []compiledRule
	facts   Facts
	version *semver.Version
	github  IssueChecker
	redmine IssueChecker

	mu    sync.Mutex
	cache map[string]bool
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", expr, err)
		}
		res = append(res, re)
	}

	return res, nil
}

// NewEvaluator validates and compiles rules. Nil checkers disable the respective tracker.
func NewEvaluator(rules []Rule, facts Facts, github, redmine IssueChecker) (*Evaluator, error) {
	e := &Evaluator{
		facts:   facts,
		github:  github,
		redmine: redmine,
		cache:   map[string]bool{},
	}

	if facts.Version != "" {
		if v, err := dut.SemVer(facts.Version); err == nil {
			e.version = v
		} else {
			slog.Debug("No semantic version for DUT", "version", facts.Version, "err", err)
		}
	}

	errs := []error{}
	for idx, rule := range rules {
		c, err := compileRule(rule)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", idx, err))

			continue
		}
		e.rules = append(e.rules, c)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid skip rules: %w", err)
	}

	return e, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	c := compiledRule{Rule: rule}

	if len(rule.Tests) == 0 {
		return c, fmt.Errorf("no tests") //nolint:goerr113
	}
	if !rule.hasConditions() {
		return c, fmt.Errorf("no conditions") //nolint:goerr113
	}

	var err error
	if c.tests, err = compileAll(rule.Tests); err != nil {
		return c, fmt.Errorf("tests: %w", err)
	}
	if c.platforms, err = compileAll(rule.Platforms); err != nil {
		return c, fmt.Errorf("platforms: %w", err)
	}
	if rule.Versions != "" {
		if c.versions, err = semver.NewConstraint(rule.Versions); err != nil {
			return c, fmt.Errorf("versions %q: %w", rule.Versions, err)
		}
	}

	return c, nil
}

// ShouldSkip evaluates all rules applying to the test. Any holding condition
// of any applicable rule skips it. Tracker errors are logged and treated as
// the issue being inactive.
func (e *Evaluator) ShouldSkip(ctx context.Context, test string) Decision {
	for _, rule := range e.rules {
		if !lo.SomeBy(rule.tests, func(re *regexp.Regexp) bool { return re.MatchString(test) }) {
			continue
		}

		if cond, ok := e.holds(ctx, rule); ok {
			reason := cond
			if rule.Reason != "" {
				reason = rule.Reason + ": " + cond
			}

			slog.Debug("Skip rule holds", "test", test, "reason", reason)

			return Decision{Skip: true, Reason: reason}
		}
	}

	return Decision{}
}

func (e *Evaluator) holds(ctx context.Context, rule compiledRule) (string, bool) {
	for _, re := range rule.platforms {
		for _, value := range []string{e.facts.Platform, e.facts.HwSKU} {
			if value != "" && re.MatchString(value) {
				return fmt.Sprintf("platform %s matches %q", value, re.String()), true
			}
		}
	}

	if e.facts.Release != "" && lo.Contains(rule.Releases, e.facts.Release) {
		return "release " + e.facts.Release, true
	}

	if rule.versions != nil && e.version != nil && rule.versions.Check(e.version) {
		return fmt.Sprintf("version %s matches %q", e.facts.Version, rule.Versions), true
	}

	for _, ref := range rule.GitHub {
		if e.active(ctx, "github", e.github, ref) {
			return "github issue " + ref + " is open", true
		}
	}

	for _, ref := range rule.Redmine {
		if e.active(ctx, "redmine", e.redmine, ref) {
			return "redmine issue " + ref + " is open", true
		}
	}

	return "", false
}

func (e *Evaluator) active(ctx context.Context, tracker string, checker IssueChecker, ref string) bool {
	if checker == nil {
		slog.Warn("Issue tracker not configured, ignoring issue", "tracker", tracker, "issue", ref)

		return false
	}

	key := tracker + ":" + strings.TrimSpace(ref)

	e.mu.Lock()
	defer e.mu.Unlock()

	if active, ok := e.cache[key]; ok {
		return active
	}

	active, err := checker.IsActive(ctx, ref)
	if err != nil {
		slog.Warn("Failed to check issue, assuming inactive", "tracker", tracker, "issue", ref, "err", err)
		active = false
	}
	e.cache[key] = active

	return active
}
