// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

// Context-aware variants of the easyssh-proxy run/stream helpers: a command is
// bound to ctx instead of a fixed timeout.
package sshutil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/appleboy/easyssh-proxy"
)

// maxLineSize is the longest output line accepted from a remote command.
const maxLineSize = 1024 * 1024

// lineFunc receives a single output line, stderr is true for lines read from stderr.
type lineFunc func(line string, stderr bool)

// streamContext runs command on the remote and calls onLine for every line of
// its output until the command exits or ctx is cancelled.
func streamContext(ctx context.Context, ssh *easyssh.MakeConfig, command string, onLine lineFunc) error {
	session, client, err := ssh.Connect()
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer client.Close()
	defer session.Close()

	outReader, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening stdout pipe: %w", err)
	}
	errReader, err := session.StderrPipe()
	if err != nil {
		return fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := session.Start(command); err != nil {
		return fmt.Errorf("starting command: %w", err)
	}

	// onLine is called from two readers
	lineMu := sync.Mutex{}
	emit := func(line string, stderr bool) {
		lineMu.Lock()
		defer lineMu.Unlock()
		onLine(line, stderr)
	}

	var outErr, errErr error
	readers := sync.WaitGroup{}
	readers.Go(func() {
		outErr = scanLines(outReader, false, emit)
	})
	readers.Go(func() {
		errErr = scanLines(errReader, true, emit)
	})

	done := make(chan struct{})
	go func() {
		readers.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		// closing the connection unblocks the readers
		_ = session.Close()
		_ = client.Close()
		<-done

		return fmt.Errorf("cancelled: %w", ctx.Err())
	case <-done:
	}

	if err := session.Wait(); err != nil {
		return errors.Join(fmt.Errorf("waiting for command: %w", err), outErr, errErr)
	}

	return errors.Join(outErr, errErr)
}

// scanLines calls emit for every line read from r. On a read error or an
// overlong line the rest of r is discarded so the remote isn't blocked on a full pipe.
func scanLines(r io.Reader, stderr bool, emit lineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		emit(scanner.Text(), stderr)
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)

		name := "stdout"
		if stderr {
			name = "stderr"
		}

		return fmt.Errorf("reading %s: %w", name, err)
	}

	return nil
}

// runContext runs command on the remote and returns its collected stdout and stderr.
func runContext(ctx context.Context, ssh *easyssh.MakeConfig, command string) (string, string, error) {
	outStr, errStr := &strings.Builder{}, &strings.Builder{}
	err := streamContext(ctx, ssh, command, func(line string, stderr bool) {
		if stderr {
			errStr.WriteString(line + "\n")
		} else {
			outStr.WriteString(line + "\n")
		}
	})

	return outStr.String(), errStr.String(), err
}
