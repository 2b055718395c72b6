// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package cfgtmpl loads named configuration templates and pushes them to a
// device, returning a revert that restores the previous configuration.
package cfgtmpl

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"dario.cat/mergo"
	"go.githedgehog.com/switchqa/pkg/util/tmplutil"
	jsonpatch "gopkg.in/evanphx/json-patch.v4"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/yaml"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrDuplicate = errors.New("duplicate template")
)

type Kind string

const (
	KindCommands Kind = "commands"
	KindPatch    Kind = "patch"
)

type Template struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Apply       []string       `json:"apply,omitempty"`
	Cleanup     []string       `json:"cleanup,omitempty"`
	Patch       string         `json:"patch,omitempty"`
	Verify      bool           `json:"verify,omitempty"`

	source string
}

type File struct {
	Templates []Template `json:"templates"`
}

func (t *Template) Kind() Kind {
	if t.Patch != "" {
		return KindPatch
	}

	return KindCommands
}

func (t *Template) Validate() error {
	if errs := validation.IsDNS1123Label(t.Name); len(errs) > 0 {
		return fmt.Errorf("invalid name %q: %s", t.Name, strings.Join(errs, ", ")) //nolint:goerr113
	}

	switch {
	case t.Patch != "" && (len(t.Apply) > 0 || len(t.Cleanup) > 0):
		return fmt.Errorf("template %q: patch can't be combined with apply/cleanup", t.Name) //nolint:goerr113
	case t.Patch == "" && len(t.Apply) == 0:
		return fmt.Errorf("template %q: either apply or patch is required", t.Name) //nolint:goerr113
	case t.Patch == "" && t.Verify:
		return fmt.Errorf("template %q: verify is only supported for patch templates", t.Name) //nolint:goerr113
	}

	return nil
}

type Library struct {
	templates map[string]*Template
}

func NewLibrary() *Library {
	return &Library{templates: map[string]*Template{}}
}

// Load reads template files into a new library.
func Load(paths ...string) (*Library, error) {
	lib := NewLibrary()
	if err := lib.AddFiles(paths...); err != nil {
		return nil, err
	}

	return lib, nil
}

// AddFiles reads template files, directories are scanned for *.yaml and *.yml.
func (l *Library) AddFiles(paths ...string) error {
	for _, path := range paths {
		files := []string{path}

		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("checking %q: %w", path, err)
		}
		if stat.IsDir() {
			files = []string{}
			for _, pattern := range []string{"*.yaml", "*.yml"} {
				matches, err := filepath.Glob(filepath.Join(path, pattern))
				if err != nil {
					return fmt.Errorf("listing %q: %w", path, err)
				}
				files = append(files, matches...)
			}
			slices.Sort(files)
		}

		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %q: %w", file, err)
			}

			if err := l.AddData(data, file); err != nil {
				return err
			}
		}
	}

	return nil
}

// AddData parses a YAML template file and adds its templates.
func (l *Library) AddData(data []byte, source string) error {
	f := &File{}
	// numbers stay json.Number so that large VNIs aren't rendered in exponent form
	if err := yaml.UnmarshalStrict(data, f, func(d *json.Decoder) *json.Decoder {
		d.UseNumber()

		return d
	}); err != nil {
		return fmt.Errorf("unmarshaling %q: %w", source, err)
	}

	for _, t := range f.Templates {
		t.source = source
		if err := l.Add(t); err != nil {
			return err
		}
	}

	return nil
}

func (l *Library) Add(t Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validating %s: %w", t.source, err)
	}

	if prev, exists := l.templates[t.Name]; exists {
		return fmt.Errorf("%w %q in %s (first defined in %s)", ErrDuplicate, t.Name, t.source, prev.source)
	}

	for _, text := range append(append([]string{t.Patch}, t.Apply...), t.Cleanup...) {
		if _, err := tmplutil.Parse(t.Name, text); err != nil {
			return fmt.Errorf("template %q in %s: %w", t.Name, t.source, err)
		}
	}

	l.templates[t.Name] = &t

	return nil
}

func (l *Library) Get(name string) (*Template, error) {
	t, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return t, nil
}

func (l *Library) Names() []string {
	return slices.Sorted(maps.Keys(l.templates))
}

type Rendered struct {
	Name    string
	Kind    Kind
	Apply   []string
	Cleanup []string
	Patch   []byte
	Verify  bool
}

// Render merges params over the template defaults and executes the template.
func (l *Library) Render(name string, params map[string]any) (*Rendered, error) {
	t, err := l.Get(name)
	if err != nil {
		return nil, err
	}

	return t.render(params)
}

func (t *Template) params(params map[string]any) (map[string]any, error) {
	merged := map[string]any{}
	if params != nil {
		merged = maps.Clone(params)
	}
	if len(t.Params) > 0 {
		if err := mergo.Merge(&merged, t.Params); err != nil {
			return nil, fmt.Errorf("merging defaults: %w", err)
		}
	}

	return merged, nil
}

func (t *Template) render(params map[string]any) (*Rendered, error) {
	data, err := t.params(params)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}

	res := &Rendered{
		Name:   t.Name,
		Kind:   t.Kind(),
		Verify: t.Verify,
	}

	if res.Kind == KindPatch {
		patch, err := tmplutil.FromTemplate(t.Name+"/patch", t.Patch, data)
		if err != nil {
			return nil, fmt.Errorf("template %q: rendering patch: %w", t.Name, err)
		}

		if _, err := jsonpatch.DecodePatch([]byte(patch)); err != nil {
			return nil, fmt.Errorf("template %q: invalid json patch: %w", t.Name, err)
		}
		res.Patch = []byte(strings.TrimSpace(patch))

		return res, nil
	}

	if res.Apply, err = renderCommands(t.Name+"/apply", t.Apply, data); err != nil {
		return nil, err
	}
	if res.Cleanup, err = renderCommands(t.Name+"/cleanup", t.Cleanup, data); err != nil {
		return nil, err
	}

	return res, nil
}

// renderCommands drops commands rendering to an empty string.
func renderCommands(name string, cmds []string, data map[string]any) ([]string, error) {
	res := []string{}
	for idx, cmd := range cmds {
		out, err := tmplutil.FromTemplate(fmt.Sprintf("%s[%d]", name, idx), cmd, data)
		if err != nil {
			return nil, fmt.Errorf("rendering %s[%d]: %w", name, idx, err)
		}

		if out = strings.TrimSpace(out); out != "" {
			res = append(res, out)
		}
	}

	return res, nil
}
