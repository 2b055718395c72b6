// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package cfgtmpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/util/shellutil"
	"go.githedgehog.com/switchqa/pkg/util/tableutil"
	jsonpatch "gopkg.in/evanphx/json-patch.v4"
)

const (
	cmdShowRunningConfig = "show runningconfiguration all"

	patchDir       = "/tmp"
	heredocMarker  = "SWQA_PATCH_EOF"
	checkpointBase = "swqa"
)

// Revert undoes an applied template.
type Revert func(ctx context.Context) error

// Apply renders the template and pushes it through e. A non-nil Revert is
// returned as soon as anything was sent to the device, also together with an
// error, so the caller can restore a partially applied configuration.
func (l *Library) Apply(ctx context.Context, e dut.Engine, name string, params map[string]any) (Revert, error) {
	r, err := l.Render(name, params)
	if err != nil {
		return nil, err
	}

	slog.Debug("Applying template", "name", name, "kind", r.Kind)

	if r.Kind == KindPatch {
		return applyPatch(ctx, e, r)
	}

	return applyCommands(ctx, e, r)
}

func applyCommands(ctx context.Context, e dut.Engine, r *Rendered) (Revert, error) {
	revert := func(ctx context.Context) error {
		slog.Debug("Reverting template", "name", r.Name)

		errs := []error{}
		for _, cmd := range r.Cleanup {
			if _, err := e.Run(ctx, cmd); err != nil {
				errs = append(errs, fmt.Errorf("cleanup %q: %w", cmd, err))
			}
		}

		return errors.Join(errs...)
	}

	for idx, cmd := range r.Apply {
		if _, err := e.Run(ctx, cmd); err != nil {
			return revert, fmt.Errorf("applying template %q: command %d/%d: %w", r.Name, idx+1, len(r.Apply), err)
		}
	}

	return revert, nil
}

// CheckpointName returns a unique config checkpoint name for a template.
func CheckpointName(template string) string {
	return fmt.Sprintf("%s-%s-%s", checkpointBase, template, strings.SplitN(uuid.New().String(), "-", 2)[0])
}

func applyPatch(ctx context.Context, e dut.Engine, r *Rendered) (Revert, error) {
	if r.Verify {
		if err := verifyPatch(ctx, e, r); err != nil {
			return nil, err
		}
	}

	checkpoint := CheckpointName(r.Name)
	if _, err := e.Run(ctx, shellutil.Join("sudo", "config", "checkpoint", checkpoint)); err != nil {
		return nil, fmt.Errorf("creating checkpoint for %q: %w", r.Name, err)
	}

	revert := func(ctx context.Context) error {
		slog.Debug("Rolling back template", "name", r.Name, "checkpoint", checkpoint)

		if _, err := e.Run(ctx, shellutil.Join("sudo", "config", "rollback", checkpoint)); err != nil {
			return fmt.Errorf("rolling back %q to %s: %w", r.Name, checkpoint, err)
		}
		if _, err := e.Run(ctx, shellutil.Join("sudo", "config", "delete-checkpoint", checkpoint)); err != nil {
			return fmt.Errorf("deleting checkpoint %s: %w", checkpoint, err)
		}

		return nil
	}

	path := patchDir + "/" + checkpoint + ".json"
	if _, err := e.Run(ctx, WriteFileCommand(path, r.Patch)); err != nil {
		return revert, fmt.Errorf("uploading patch for %q: %w", r.Name, err)
	}

	_, applyErr := e.Run(ctx, shellutil.Join("sudo", "config", "apply-patch", path))
	if _, err := e.Run(ctx, shellutil.Join("rm", "-f", path)); err != nil {
		slog.Warn("Failed to remove patch file", "path", path, "err", err)
	}
	if applyErr != nil {
		return revert, fmt.Errorf("applying patch %q: %w", r.Name, applyErr)
	}

	return revert, nil
}

// WriteFileCommand returns a shell command writing data to path with a quoted heredoc.
func WriteFileCommand(path string, data []byte) string {
	return fmt.Sprintf("cat > %s <<'%s'\n%s\n%s", shellutil.Quote(path), heredocMarker, strings.TrimRight(string(data), "\n"), heredocMarker)
}

func verifyPatch(ctx context.Context, e dut.Engine, r *Rendered) error {
	out, err := e.Run(ctx, cmdShowRunningConfig)
	if err != nil {
		return fmt.Errorf("getting running config: %w", err)
	}

	running, err := tableutil.ExtractJSON(out)
	if err != nil {
		return dut.UnexpectedOutput(cmdShowRunningConfig, out, err.Error())
	}

	patch, err := jsonpatch.DecodePatch(r.Patch)
	if err != nil {
		return fmt.Errorf("decoding patch %q: %w", r.Name, err)
	}

	if _, err := patch.Apply(running); err != nil {
		return fmt.Errorf("patch %q doesn't apply to running config: %w", r.Name, err)
	}

	return nil
}
