// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "separate value",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "equals value",
			args:     []string{"--config=/etc/authgate.yaml", "--help"},
			wantFlag: "/etc/authgate.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""
			t.Cleanup(func() { configFile = "" })

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCmd()
	for _, name := range []string{"env", "http.addr", "http.client_url", "database.driver", "database.url", "database.auto_migrate", "redis.addr", "mail.driver", "log.level", "log.format", "metrics.addr"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	t.Setenv("AUTHGATE_TOKEN__SECRET", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve", "--database.driver=memory"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token.secret")
}

func TestResolveConfigFile(t *testing.T) {
	t.Cleanup(func() { configFile = "" })

	t.Run("flag wins", func(t *testing.T) {
		configFile = "/etc/authgate.yaml"
		got, err := resolveConfigFile()
		require.NoError(t, err)
		assert.Equal(t, "/etc/authgate.yaml", got)
	})

	t.Run("xdg file", func(t *testing.T) {
		configFile = ""
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		dir := filepath.Join(base, "authgate")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("env: development\n"), 0o600))

		got, err := resolveConfigFile()
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		configFile = ""
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		got, err := resolveConfigFile()
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
