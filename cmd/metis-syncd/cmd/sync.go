// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metis-project/metis-sync/pkg/config"
	"github.com/metis-project/metis-sync/pkg/orchestrator"
	"github.com/metis-project/metis-sync/pkg/projection"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full sync cycle: fetch, hydrate, flatten, dehydrate, push",
	RunE:  runSync,
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	logger := loggerFor(verbose)
	store := config.NewStore(workspaceRoot)
	eng := orchestrator.New(store, workspaceRoot)
	eng.Progress = progressSinkFor(logger)

	result, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	switch {
	case result.NoUpstream:
		fmt.Println("no upstream configured; nothing to sync")
	case result.NoChange:
		fmt.Println("up to date, nothing pushed")
	default:
		fmt.Printf("pushed commit %s (%d attempt(s))\n", result.Commit, result.Attempts)
	}
	for _, warning := range result.HydrationWarnings {
		logger.Warn("%s", warning)
	}

	if result.NoUpstream {
		return nil
	}

	cache, err := projection.Build(ctx, workspaceRoot, mustOwnedPrefix(store), discoverPrefixes(workspaceRoot))
	if err != nil {
		return fmt.Errorf("rebuild projection cache: %w", err)
	}
	for _, warning := range cache.Warnings {
		logger.Warn("projection: %s", warning)
	}

	return nil
}

// mustOwnedPrefix reads the workspace's owned prefix for the projection
// build; a config load failure here just yields an empty prefix, which
// only affects the Owned flag on cached documents, not correctness of the
// already-completed sync.
func mustOwnedPrefix(store *config.Store) string {
	cfg, err := store.Load()
	if err != nil {
		return ""
	}
	return cfg.Workspace.Prefix
}
