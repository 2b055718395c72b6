// Copyright 2025 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package sshutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigInitDefaults(t *testing.T) {
	for _, test := range []struct {
		name      string
		cfg       Config
		err       bool
		port      string
		proxyPort string
	}{
		{
			name: "no host",
			cfg:  Config{Remote: Remote{User: "admin"}},
			err:  true,
		},
		{
			name: "default port",
			cfg:  Config{Remote: Remote{User: "admin", Host: "10.0.0.1"}},
			port: "22",
		},
		{
			name: "custom port with proxy",
			cfg: Config{
				Remote: Remote{User: "admin", Host: "10.0.0.1", Port: 2222},
				Proxy:  &Remote{User: "jump", Host: "10.0.0.254"},
			},
			port:      "2222",
			proxyPort: "22",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg := test.cfg
			err := cfg.init()
			if test.err {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, test.port, cfg.ssh.Port)
			require.Equal(t, DefaultTimeout, cfg.ssh.Timeout)
			if test.proxyPort != "" {
				require.Equal(t, test.proxyPort, cfg.ssh.Proxy.Port)
				require.Equal(t, "jump", cfg.ssh.Proxy.User)
			}
		})
	}
}

func TestRunWithoutHost(t *testing.T) {
	cfg := &Config{}

	_, _, err := cfg.Run(context.Background(), "true")
	require.Error(t, err)
}

func TestWaitCancelled(t *testing.T) {
	cfg := &Config{Remote: Remote{User: "admin", Host: "127.0.0.1", Port: 1}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := cfg.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteString(t *testing.T) {
	require.Equal(t, "admin@10.0.0.1:22", Remote{User: "admin", Host: "10.0.0.1", Port: 22}.String())
}
