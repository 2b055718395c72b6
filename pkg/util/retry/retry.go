// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Package retry wraps bounded polling for device state that converges eventually,
// e.g. services coming up after a restart or a DHCP lease being issued.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

var ErrExhausted = errors.New("retries exhausted")

// Do calls fn up to attempts times with delay between the calls and returns
// nil on the first success. Otherwise the last error is returned wrapped with ErrExhausted.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, wait.Backoff{
		Duration: delay,
		Factor:   1,
		Steps:    attempts,
	}, func(ctx context.Context) (bool, error) {
		attempt++
		if lastErr = fn(ctx); lastErr != nil {
			slog.Debug("Attempt failed", "attempt", fmt.Sprintf("%d/%d", attempt, attempts), "err", lastErr)

			return false, nil
		}

		return true, nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("cancelled after %d attempts: %w", attempt, errors.Join(ctxErr, lastErr))
	}
	if wait.Interrupted(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, lastErr)
	}

	return fmt.Errorf("polling: %w", err)
}

// Until polls cond every interval until it returns true or timeout passes.
// An error from cond stops the polling immediately.
func Until(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, cond)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("cancelled: %w", ctxErr)
	}
	if wait.Interrupted(err) {
		return fmt.Errorf("%w: condition not met within %s", ErrExhausted, timeout)
	}

	return err
}
