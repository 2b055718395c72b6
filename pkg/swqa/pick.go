// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package swqa

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
	"go.githedgehog.com/switchqa/pkg/testbed"
)

// PickFunc returns the index of the chosen name.
type PickFunc func(label string, names []string) (int, error)

// TerminalPicker returns the interactive picker if both stdin and stdout are terminals, nil otherwise.
func TerminalPicker() PickFunc {
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}

	return selectName
}

func selectName(label string, names []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: names,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "\U0001F994 {{ . | cyan }}",
			Inactive: "{{ . | cyan }}",
			Selected: "\U0001F994 {{ . | red | cyan }}",
		},
		Size: 20,
		Searcher: func(input string, index int) bool {
			name := strings.ReplaceAll(strings.ToLower(names[index]), " ", "")
			input = strings.ReplaceAll(strings.ToLower(input), " ", "")

			return strings.Contains(name, input)
		},
	}

	selected, _, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("failed to select: %w", err)
	}

	return selected, nil
}

// resolveDUT looks up the named DUT. With no name on a multi-DUT testbed it asks pick, if any, to choose one.
func resolveDUT(tb *testbed.Testbed, name string, pick PickFunc) (*testbed.DUT, error) {
	if name != "" || len(tb.DUTs) < 2 || pick == nil {
		return tb.DUT(name) //nolint:wrapcheck
	}

	names := lo.Map(tb.DUTs, func(d testbed.DUT, _ int) string { return d.Name })
	slices.Sort(names)

	selected, err := pick("Select DUT:", names)
	if err != nil {
		return nil, err
	}
	if selected < 0 || selected >= len(names) {
		return nil, fmt.Errorf("selected dut %d out of range", selected) //nolint:goerr113
	}

	return tb.DUT(names[selected]) //nolint:wrapcheck
}
