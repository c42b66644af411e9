// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/config/authgate", got)
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/testuser/.config/authgate", got)
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		got, err := FindConfigFile()
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("present", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		dir := filepath.Join(base, "authgate")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("env: development\n"), 0o600))

		got, err := FindConfigFile()
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("directory named like the file", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		require.NoError(t, os.MkdirAll(filepath.Join(base, "authgate", "config.yaml"), 0o700))

		got, err := FindConfigFile()
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
