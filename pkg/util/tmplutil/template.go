// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package tmplutil

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
)

func funcs() template.FuncMap {
	f := sprig.TxtFuncMap()
	f["shq"] = shellutil.Quote

	return f
}

// Parse parses tmplText with sprig functions and shq, missing keys are errors.
func Parse(name, tmplText string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcs()).Option("missingkey=error").Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	return tmpl, nil
}

func Execute(tmpl *template.Template, data any) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}

func FromTemplate(name, tmplText string, data any) (string, error) {
	tmpl, err := Parse(name, tmplText)
	if err != nil {
		return "", err
	}

	return Execute(tmpl, data)
}
