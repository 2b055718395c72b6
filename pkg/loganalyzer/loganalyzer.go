// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package loganalyzer brackets a test with syslog markers on the DUT and
// checks the lines logged in between against match/ignore/expect rules.
package loganalyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/retry"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
	"sigs.k8s.io/yaml"
)

const (
	Tag = "swqa-loganalyzer"

	endToken     = "SWQA_LOGANALYZER_END"
	maxReported  = 5
	defaultDelay = time.Second
)

var ErrMarkerNotFound = errors.New("end marker not found in syslog")

var DefaultRules = Rules{
	Match: []string{
		`\s(ERR|CRIT|EMERG|ALERT)\s`,
		`(?i)\bkernel panic\b`,
		`(?i)\bsegfault\b`,
	},
	Ignore: []string{
		Tag,
	},
}

var DefaultFiles = []string{"/var/log/syslog.1", "/var/log/syslog"}

type Rules struct {
	Match  []string `json:"match,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
	Expect []string `json:"expect,omitempty"`
}

// LoadRules reads rules from YAML, missing lists are taken from DefaultRules.
func LoadRules(path string) (Rules, error) {
	rules := Rules{}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("reading rules: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, &rules); err != nil {
		return rules, fmt.Errorf("unmarshaling rules: %w", err)
	}

	if err := mergo.Merge(&rules, DefaultRules); err != nil {
		return rules, fmt.Errorf("merging default rules: %w", err)
	}

	return rules, nil
}

type compiled struct {
	match, ignore, expect []*regexp.Regexp
}

func compile(exprs []string) ([]*regexp.Regexp, error) {
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

func matchAny(res []*regexp.Regexp, line string) int {
	for idx, re := range res {
		if re.MatchString(line) {
			return idx
		}
	}

	return -1
}

type Analyzer struct {
	engine dut.Engine
	rules  Rules
	re     compiled

	Files    []string
	Attempts int
	Delay    time.Duration
}

func New(engine dut.Engine, rules Rules) (*Analyzer, error) {
	a := &Analyzer{
		engine:   engine,
		rules:    rules,
		Files:    DefaultFiles,
		Attempts: 5,
		Delay:    defaultDelay,
	}

	var err error
	if a.re.match, err = compile(rules.Match); err != nil {
		return nil, fmt.Errorf("match rules: %w", err)
	}
	if a.re.ignore, err = compile(rules.Ignore); err != nil {
		return nil, fmt.Errorf("ignore rules: %w", err)
	}
	if a.re.expect, err = compile(rules.Expect); err != nil {
		return nil, fmt.Errorf("expect rules: %w", err)
	}

	return a, nil
}

type Marker struct {
	ID   string
	Name string
}

func (m Marker) start() string {
	return "start-" + m.ID
}

func (m Marker) end() string {
	return "end-" + m.ID
}

func (a *Analyzer) log(ctx context.Context, msg string) error {
	_, err := a.engine.Run(ctx, shellutil.Join("logger", "-t", Tag, msg))

	return err
}

// Start writes a unique start marker for the named test into syslog.
func (a *Analyzer) Start(ctx context.Context, name string) (Marker, error) {
	m := Marker{ID: uuid.NewString(), Name: name}

	if err := a.log(ctx, m.start()+" "+name); err != nil {
		return m, fmt.Errorf("writing start marker: %w", err)
	}

	return m, nil
}

func (a *Analyzer) extractCommand(m Marker) string {
	files := make([]string, len(a.Files))
	for idx, file := range a.Files {
		files[idx] = shellutil.Quote(file)
	}

	prog := fmt.Sprintf(`/%s/{f=1;next} /%s/{print "%s";exit} f`, m.start(), m.end(), endToken)

	return fmt.Sprintf(`for f in %s; do [ -f "$f" ] && sudo cat "$f"; done | awk %s`,
		strings.Join(files, " "), shellutil.Quote(prog))
}

type Result struct {
	Marker          Marker
	Lines           []string
	Matched         []string
	Expected        []string
	MissingExpected []string
}

func (r *Result) Err() error {
	errs := []error{}

	if len(r.Matched) > 0 {
		reported := r.Matched
		if len(reported) > maxReported {
			reported = reported[:maxReported]
		}
		errs = append(errs, fmt.Errorf("%d error lines in syslog: %s", len(r.Matched), strings.Join(reported, "; "))) //nolint:goerr113
	}

	if len(r.MissingExpected) > 0 {
		errs = append(errs, fmt.Errorf("expected messages not logged: %s", strings.Join(r.MissingExpected, ", "))) //nolint:goerr113
	}

	return errors.Join(errs...)
}

// Stop writes the end marker, fetches the lines logged since Start and classifies them.
func (a *Analyzer) Stop(ctx context.Context, m Marker) (*Result, error) {
	if err := a.log(ctx, m.end()+" "+m.Name); err != nil {
		return nil, fmt.Errorf("writing end marker: %w", err)
	}

	var lines []string
	cmd := a.extractCommand(m)
	err := retry.Do(ctx, a.Attempts, a.Delay, func(ctx context.Context) error {
		out, err := a.engine.Run(ctx, cmd)
		if err != nil {
			return err
		}

		lines = []string{}
		for _, line := range strings.Split(out, "\n") {
			if line == endToken {
				return nil
			}
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}

		return ErrMarkerNotFound
	})
	if err != nil {
		return nil, fmt.Errorf("extracting syslog for %s: %w", m.Name, err)
	}

	res := a.Classify(lines)
	res.Marker = m

	slog.Debug("Log analyzed", "test", m.Name, "lines", len(lines), "matched", len(res.Matched), "missing", len(res.MissingExpected))

	return res, nil
}

// Classify applies the rules to syslog lines.
func (a *Analyzer) Classify(lines []string) *Result {
	res := &Result{
		Lines:    lines,
		Matched:  []string{},
		Expected: []string{},
	}

	found := make([]bool, len(a.re.expect))
	for _, line := range lines {
		expected := false
		for idx, re := range a.re.expect {
			if re.MatchString(line) {
				found[idx] = true
				expected = true
			}
		}
		if expected {
			res.Expected = append(res.Expected, line)

			continue
		}

		if matchAny(a.re.match, line) >= 0 && matchAny(a.re.ignore, line) < 0 {
			res.Matched = append(res.Matched, line)
		}
	}

	for idx, ok := range found {
		if !ok {
			res.MissingExpected = append(res.MissingExpected, a.rules.Expect[idx])
		}
	}

	return res
}
