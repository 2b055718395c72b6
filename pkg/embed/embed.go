// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package embed carries the configuration shipped inside the swqa binary.
package embed

import (
	_ "embed"
)

const TemplatesSource = "builtin"

// Templates are the builtin configuration templates, see cfgtmpl.
//
//go:embed templates.yaml
var Templates []byte
