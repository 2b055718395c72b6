// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package duttest provides a scriptable fake engine for testing CLI wrappers and suites.
package duttest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"go.githedgehog.com/switchqa/pkg/dut"
)

var ErrNoResponse = errors.New("no canned response")

type Response struct {
	Out string
	Err error
}

type matcher struct {
	re        *regexp.Regexp
	responses []Response
}

// Fake answers commands with canned outputs. Exact matches win over regexes,
// regexes are tried in registration order. When several responses are
// registered for one command they are returned in sequence and the last one
// repeats.
type Fake struct {
	mu       sync.Mutex
	exact    map[string][]Response
	served   map[string]int
	matchers []*matcher
	commands []string

	// Fallback is returned for unknown commands when set, ErrNoResponse otherwise.
	Fallback *Response
}

var _ dut.Engine = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		exact:  map[string][]Response{},
		served: map[string]int{},
	}
}

// On registers outputs for the exact command.
func (f *Fake) On(cmd string, outs ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(outs) == 0 {
		outs = []string{""}
	}
	for _, out := range outs {
		f.exact[cmd] = append(f.exact[cmd], Response{Out: out})
	}

	return f
}

// OnErr makes the exact command fail with err.
func (f *Fake) OnErr(cmd string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exact[cmd] = append(f.exact[cmd], Response{Err: err})

	return f
}

// OnSeq registers a sequence of responses for the exact command.
func (f *Fake) OnSeq(cmd string, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.exact[cmd] = append(f.exact[cmd], responses...)

	return f
}

// OnMatch registers outputs for every command matching expr.
func (f *Fake) OnMatch(expr string, outs ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(outs) == 0 {
		outs = []string{""}
	}
	m := &matcher{re: regexp.MustCompile(expr)}
	for _, out := range outs {
		m.responses = append(m.responses, Response{Out: out})
	}
	f.matchers = append(f.matchers, m)

	return f
}

func (f *Fake) next(key string, responses []Response) Response {
	idx := f.served[key]
	f.served[key]++
	if idx >= len(responses) {
		idx = len(responses) - 1
	}

	return responses[idx]
}

func (f *Fake) Run(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("running %q: %w", cmd, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, cmd)

	if responses, ok := f.exact[cmd]; ok {
		resp := f.next(cmd, responses)

		return resp.Out, resp.Err
	}

	for idx, m := range f.matchers {
		if m.re.MatchString(cmd) {
			resp := f.next(fmt.Sprintf("re#%d", idx), m.responses)

			return resp.Out, resp.Err
		}
	}

	if f.Fallback != nil {
		return f.Fallback.Out, f.Fallback.Err
	}

	return "", fmt.Errorf("%w: %q", ErrNoResponse, cmd)
}

// Commands returns all commands issued so far in order.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.commands)
}

// Count returns how many times cmd was issued.
func (f *Fake) Count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.commands {
		if c == cmd {
			n++
		}
	}

	return n
}

func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = nil
	f.served = map[string]int{}
}
