// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package dut defines the command execution handle used to drive a device under
// test and the OS-neutral view of a device shared by the SONiC and NVOS wrappers.
package dut

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrUnexpectedOutput = errors.New("unexpected output")

// Engine runs a command on the device and returns its stdout.
type Engine interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// UnexpectedOutput wraps ErrUnexpectedOutput with the command and a short excerpt of its output.
func UnexpectedOutput(cmd, out string, reason string) error {
	const maxExcerpt = 200

	excerpt := strings.TrimSpace(out)
	if len(excerpt) > maxExcerpt {
		excerpt = excerpt[:maxExcerpt] + "..."
	}

	return fmt.Errorf("%w: %s: %s (output: %q)", ErrUnexpectedOutput, cmd, reason, excerpt)
}

type OS string

const (
	OSSONiC OS = "sonic"
	OSNVOS  OS = "nvos"
)

var OSes = []OS{
	OSSONiC,
	OSNVOS,
}

func (o OS) Validate() error {
	if !slices.Contains(OSes, o) {
		return fmt.Errorf("unknown OS %q", o) //nolint:goerr113
	}

	return nil
}

const (
	StateUp   = "up"
	StateDown = "down"
)

type Link struct {
	Name  string
	Admin string
	Oper  string
	Speed string
	MTU   int
}

func (l Link) IsUp() bool {
	return l.Admin == StateUp && l.Oper == StateUp
}

type FDBEntry struct {
	VLAN int
	MAC  string
	Port string
	Type string
}

type Info struct {
	Hostname string
	OS       OS
	Version  string
	Platform string
	HwSKU    string
	ASIC     string
}

// Device is the part of a switch CLI both SONiC and NVOS provide.
type Device interface {
	Info(ctx context.Context) (*Info, error)
	Links(ctx context.Context) ([]Link, error)
	SetLinkAdmin(ctx context.Context, name string, up bool) error
	FDB(ctx context.Context) ([]FDBEntry, error)
	ClearFDB(ctx context.Context) error
}

// FindLink returns the link with the given name.
func FindLink(links []Link, name string) (Link, bool) {
	idx := slices.IndexFunc(links, func(l Link) bool { return l.Name == name })
	if idx < 0 {
		return Link{}, false
	}

	return links[idx], true
}

// NormalizeMAC returns the lowercase colon-separated form of a MAC address.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(mac), "-", ":"))
}
