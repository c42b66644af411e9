// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/authgate/authgate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Authgate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "Authgate - account authentication service",
		Long: `Authgate registers user accounts, verifies their email address with a
one-time code, issues session tokens, and handles password resets.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// addConfigFlags registers overrides for the most common settings. Flag
// names are configuration keys, so config.Load can apply them directly.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("env", "", "deployment environment (development or production)")
	fs.String("http.addr", "", "API listen address")
	fs.String("http.client_url", "", "browser client origin and base of reset links")
	fs.String("database.driver", "", "account storage driver (postgres or memory)")
	fs.String("database.url", "", "PostgreSQL connection URL")
	fs.Bool("database.auto_migrate", false, "apply pending migrations on startup")
	fs.String("redis.addr", "", "Redis address for rate limiting (empty = disabled)")
	fs.String("mail.driver", "", "mail transport (smtp or log)")
	fs.String("log.level", "", "log level (debug, info, warn, error)")
	fs.String("log.format", "", "log format (json or text)")
	fs.String("metrics.addr", "", "metrics/health HTTP address")
}

// resolveConfigFile returns the --config path, or the XDG config file when
// the flag is unset and one exists.
func resolveConfigFile() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return xdg.FindConfigFile()
}
