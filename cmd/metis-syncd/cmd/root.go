// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package cmd implements the CLI commands for metis-syncd.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// appVersion is set by main.go.
	appVersion string

	// workspaceRoot is the directory containing .metis/config.yaml. Defaults
	// to the current working directory.
	workspaceRoot string

	// verbose enables OnPhase/OnRetry progress output on stderr.
	verbose bool
)

// rootCmd is the base command when metis-syncd is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:     "metis-syncd",
	Short:   "Synchronize a Metis workspace with its central repository",
	Version: appVersion,
}

// Execute runs the root command, wiring version into the CLI.
func Execute(version string) {
	appVersion = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cwd, _ := os.Getwd()
	rootCmd.PersistentFlags().StringVar(&workspaceRoot, "root", cwd, "workspace root (directory containing .metis/)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print sync phase and retry events to stderr")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pullCmd)
}
