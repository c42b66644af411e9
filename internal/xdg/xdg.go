// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package xdg resolves the XDG base directory for Authgate configuration.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName    = "authgate"
	configName = "config.yaml"
)

// ConfigDir returns $XDG_CONFIG_HOME/authgate, falling back to
// ~/.config/authgate.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// FindConfigFile returns the path of config.yaml in ConfigDir, or "" when
// no such file exists.
func FindConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, configName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", nil
	}
	return path, nil
}
