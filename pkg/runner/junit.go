// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"
)

// A revert function is a function that undoes a step taken by the test. It is meant
// to be run after the test is done, regardless of whether it succeeded or failed.
type RevertFunc func(context.Context) error

// A test function is a function that runs a test. It takes a context and returns
// a boolean indicating whether the test was skipped (e.g. due to missing resources),
// a list of revert functions to be run after the test, and an error if the test failed.
// note that the error contains the reason for the skip if the test was skipped.
type TestFunc func(context.Context) (bool, []RevertFunc, error)

// A setup function prepares the DUT before the tests of a suite, initial is
// true for the first call of the suite.
type SetupFunc func(ctx context.Context, initial bool) error

type JUnitReport struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TimeHuman time.Duration   `xml:"-"`
	TestCases []JUnitTestCase `xml:"testcase"`
	Setup     SetupFunc       `xml:"-"`
}

type JUnitTestCase struct {
	XMLName   xml.Name  `xml:"testcase"`
	ClassName string    `xml:"classname,attr"`
	Name      string    `xml:"name,attr"`
	Time      float64   `xml:"time,attr"`
	Failure   *Failure  `xml:"failure,omitempty"`
	Skipped   *Skipped  `xml:"skipped,omitempty"`
	F         TestFunc  `xml:"-"` // function to run
	SkipFlags SkipFlags `xml:"-"` // flags to determine whether to skip the test
}

type Failure struct {
	XMLName xml.Name `xml:"failure"`
	Message string   `xml:"message,attr"`
	Type    string   `xml:"type,attr"`
}

type Skipped struct {
	XMLName xml.Name `xml:"skipped"`
	Message string   `xml:"message,attr,omitempty"`
}

type SkipFlags struct {
	ExtendedOnly bool `xml:"-"` // skip if extended tests are not enabled
	SONiCOnly    bool `xml:"-"` // skip if the DUT isn't running SONiC
	NVOSOnly     bool `xml:"-"` // skip if the DUT isn't running NVOS
	NoDPU        bool `xml:"-"` // skip if the DUT has no DPU modules
	NoPower      bool `xml:"-"` // skip if no PDU outlets are configured for the DUT
	NoHosts      bool `xml:"-"` // skip if there are no traffic hosts attached to the DUT
	NoFirmware   bool `xml:"-"` // skip if no firmware artifacts are configured
}

func (sf *SkipFlags) PrettyPrint() string {
	var parts []string
	if sf.ExtendedOnly {
		parts = append(parts, "EO")
	}
	if sf.SONiCOnly {
		parts = append(parts, "SONiC")
	}
	if sf.NVOSOnly {
		parts = append(parts, "NVOS")
	}
	if sf.NoDPU {
		parts = append(parts, "NoDPU")
	}
	if sf.NoPower {
		parts = append(parts, "NoPDU")
	}
	if sf.NoHosts {
		parts = append(parts, "NoHosts")
	}
	if sf.NoFirmware {
		parts = append(parts, "NoFw")
	}
	if len(parts) == 0 {
		return "None"
	}

	return strings.Join(parts, ", ")
}

// Failures returns the number of failed tests across all suites.
func (r *JUnitReport) Failures() int {
	total := 0
	for _, suite := range r.Suites {
		total += suite.Failures
	}

	return total
}

func (r *JUnitReport) WriteFile(path string) error {
	output, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling XML: %w", err)
	}
	if err := os.WriteFile(path, output, 0o600); err != nil {
		return fmt.Errorf("writing XML file: %w", err)
	}

	return nil
}

func ReadReport(path string) (*JUnitReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	report := &JUnitReport{}
	if err := xml.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("unmarshalling report: %w", err)
	}

	return report, nil
}
