// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package dut

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	sonicRelease = regexp.MustCompile(`(?:^|[.\-_])((?:19|20)\d{4})(?:[._\-]|$)`)
	numericParts = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)
)

// Release returns the release tag of an OS version string, e.g. "202311" for
// "SONiC.202311_RC.59-1a2b3c4d_Internal" or "master" for master builds.
func Release(version string) string {
	if m := sonicRelease.FindStringSubmatch(version); m != nil {
		return m[1]
	}
	if strings.Contains(strings.ToLower(version), "master") {
		return "master"
	}

	return ""
}

// SemVer extracts a semantic version from an OS version string. SONiC release
// tags become the major version (202311 -> 202311.0.0), dotted versions drop
// leading zeros ("nvos-25.02.2002" -> 25.2.2002).
func SemVer(version string) (*semver.Version, error) {
	if rel := Release(version); rel != "" && rel != "master" {
		n, err := strconv.ParseUint(rel, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing release %q: %w", rel, err)
		}

		return semver.New(n, 0, 0, "", ""), nil
	}

	m := numericParts.FindStringSubmatch(version)
	if m == nil {
		return nil, fmt.Errorf("no version in %q", version) //nolint:goerr113
	}

	parts := make([]uint64, 3)
	for idx, p := range m[1:] {
		if p == "" {
			continue
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing version %q: %w", version, err)
		}
		parts[idx] = n
	}

	return semver.New(parts[0], parts[1], parts[2], "", ""), nil
}
