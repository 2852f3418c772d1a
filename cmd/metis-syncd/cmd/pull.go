// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metis-project/metis-sync/pkg/config"
	"github.com/metis-project/metis-sync/pkg/orchestrator"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch and hydrate non-owned workspaces without pushing",
	RunE:  runPull,
}

func runPull(_ *cobra.Command, _ []string) error {
	logger := loggerFor(verbose)
	store := config.NewStore(workspaceRoot)
	eng := orchestrator.New(store, workspaceRoot)
	eng.Progress = progressSinkFor(logger)

	result, err := eng.PullOnly(context.Background())
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	switch {
	case result.NoUpstream:
		fmt.Println("no upstream configured; nothing to pull")
	case result.NoChange:
		fmt.Println("central repository has no commits yet")
	default:
		fmt.Println("hydrated from central repository")
	}
	for _, warning := range result.HydrationWarnings {
		logger.Warn("%s", warning)
	}
	return nil
}
