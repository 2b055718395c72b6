// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sshutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/appleboy/easyssh-proxy"
	"github.com/pkg/sftp"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultPort    = 22

	waitToken = "switchqa"
)

var ErrTimeout = fmt.Errorf("timeout")

type Remote struct {
	User string
	Host string
	Port uint
}

func (r Remote) String() string {
	return fmt.Sprintf("%s@%s:%d", r.User, r.Host, r.Port)
}

type Config struct {
	Remote Remote
	Proxy  *Remote

	Password   string
	SSHKey     string
	SSHKeyPath string
	SSHTimeout time.Duration

	ssh *easyssh.MakeConfig
}

func (c *Config) init() error {
	if c.Remote.Host == "" {
		return fmt.Errorf("remote host is not set") //nolint:goerr113
	}
	if c.Remote.Port == 0 {
		c.Remote.Port = DefaultPort
	}
	if c.SSHTimeout == 0 {
		c.SSHTimeout = DefaultTimeout
	}

	if c.ssh == nil {
		c.ssh = &easyssh.MakeConfig{
			User:     c.Remote.User,
			Server:   c.Remote.Host,
			Port:     fmt.Sprintf("%d", c.Remote.Port),
			Password: c.Password,
			Key:      c.SSHKey,
			KeyPath:  c.SSHKeyPath,
			Timeout:  c.SSHTimeout,
		}

		if c.Proxy != nil {
			port := c.Proxy.Port
			if port == 0 {
				port = DefaultPort
			}
			c.ssh.Proxy = easyssh.DefaultConfig{
				User:    c.Proxy.User,
				Server:  c.Proxy.Host,
				Port:    fmt.Sprintf("%d", port),
				Key:     c.SSHKey,
				KeyPath: c.SSHKeyPath,
				Timeout: c.SSHTimeout,
			}
		}
	}

	return nil
}

// Wait blocks until the remote answers a trivial command, e.g. after a reboot or a config reload.
func (c *Config) Wait(ctx context.Context) error {
	if err := c.init(); err != nil {
		return fmt.Errorf("initializing ssh config: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled: %w", ctx.Err())
		case <-time.After(5 * time.Second):
			attemptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			outStr, _, err := c.Run(attemptCtx, "echo "+waitToken)
			cancel()
			if err != nil {
				slog.Debug("Remote not reachable yet", "remote", c.Remote.String(), "err", err)

				continue
			}

			if outStr != waitToken+"\n" {
				slog.Warn("unexpected wait response", "value", outStr)

				continue
			}

			return nil
		}
	}
}

// Run runs cmd on the remote and returns its stdout and stderr. The command is
// bound to ctx, if ctx has no deadline the configured SSH timeout applies.
func (c *Config) Run(ctx context.Context, cmd string) (string, string, error) {
	if err := c.init(); err != nil {
		return "", "", fmt.Errorf("initializing ssh config: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SSHTimeout)
		defer cancel()
	}

	outStr, errStr, err := runContext(ctx, c.ssh, cmd)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return outStr, errStr, fmt.Errorf("timeout running command: %w", ErrTimeout)
		}

		return outStr, errStr, fmt.Errorf("running command: %w", err)
	}

	return outStr, errStr, nil
}

// StreamLog runs a long command and passes every output line to log prefixed with logName.
func (c *Config) StreamLog(ctx context.Context, cmd string, logName string, log func(msg string, args ...any)) error {
	if err := c.init(); err != nil {
		return fmt.Errorf("initializing ssh config: %w", err)
	}

	err := streamContext(ctx, c.ssh, cmd, func(line string, _ bool) {
		if line != "" {
			log(logName + ": " + line)
		}
	})
	if err != nil {
		return fmt.Errorf("streaming command: %w", err)
	}

	return nil
}

func (c *Config) NewSftp() (*sftp.Client, func() error, error) {
	if err := c.init(); err != nil {
		return nil, nil, fmt.Errorf("initializing ssh config: %w", err)
	}

	session, client, err := c.ssh.Connect()
	if err != nil {
		return nil, nil, fmt.Errorf("connecting: %w", err)
	}
	_ = session.Close()

	cleanup := func() error {
		return client.Close()
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, cleanup, fmt.Errorf("creating new sftp client: %w", err)
	}

	return sftpClient, cleanup, nil
}

func UploadPathWith(ftp *sftp.Client, localPath string, remotePath string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening local file: %w", err)
	}
	defer local.Close()

	remote, err := ftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("creating remote file: %w", err)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}

	return nil
}

func (c *Config) UploadPath(localPath string, remotePath string) error {
	ftp, cleanup, err := c.NewSftp()
	if cleanup != nil {
		defer cleanup() //nolint:errcheck
	}
	if err != nil {
		return fmt.Errorf("creating sftp: %w", err)
	}
	defer ftp.Close()

	return UploadPathWith(ftp, localPath, remotePath)
}

func DownloadPathWith(ftp *sftp.Client, remotePath string, localPath string) error {
	local, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating local file: %w", err)
	}
	defer local.Close()

	remote, err := ftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("opening remote file: %w", err)
	}
	defer remote.Close()

	if _, err = io.Copy(local, remote); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}

	if err := local.Sync(); err != nil {
		return fmt.Errorf("syncing local file: %w", err)
	}

	return nil
}

func (c *Config) DownloadPath(remotePath string, localPath string) error {
	ftp, cleanup, err := c.NewSftp()
	if cleanup != nil {
		defer cleanup() //nolint:errcheck
	}
	if err != nil {
		return fmt.Errorf("creating sftp: %w", err)
	}
	defer ftp.Close()

	return DownloadPathWith(ftp, remotePath, localPath)
}
