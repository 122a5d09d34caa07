// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Gatekeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatekeep",
		Short: "Gatekeep - account and session service",
		Long: `Gatekeep registers users, logs them in with JWT access and refresh
tokens, verifies email addresses, and resets passwords.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneCmd())

	return cmd
}

// loadConfig reads the layered configuration for a command.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	return config.Load(configFile, fs)
}
