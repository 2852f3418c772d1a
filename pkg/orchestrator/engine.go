// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package orchestrator drives one full sync cycle: fetch, hydrate,
// flatten, dehydrate, push, with a full-cycle retry loop bounded by a
// retry budget. It is the only package that sequences the others
// (pkg/gitsync, pkg/hydration, pkg/dehydration, pkg/layout, pkg/config)
// into the engine's externally visible behavior.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	metiserrors "github.com/metis-project/metis-sync/internal/errors"
	"github.com/metis-project/metis-sync/pkg/config"
	"github.com/metis-project/metis-sync/pkg/dehydration"
	"github.com/metis-project/metis-sync/pkg/gitsync"
	"github.com/metis-project/metis-sync/pkg/hydration"
	"github.com/metis-project/metis-sync/pkg/layout"
)

// DefaultMaxRetries is the full-cycle retry budget New sets; a negative
// Engine.MaxRetries also falls back to it. A MaxRetries of zero allows the
// first attempt only, with no retry.
const DefaultMaxRetries = 5

// Result summarizes the outcome of a completed sync cycle.
type Result struct {
	// NoUpstream is true when the workspace has no upstream configured
	// (single-workspace mode); every other field is zero in that case.
	NoUpstream bool

	// NoChange is true when dehydration found nothing to push (Run), or
	// when the central repository has no commits yet (PullOnly).
	NoChange bool

	Commit   string
	Attempts int

	HydrationWarnings []string
}

// Engine wires config, auth, and the workspace root into a runnable sync
// cycle.
type Engine struct {
	ConfigStore *config.Store
	MetisRoot   string
	AuthToken   gitsync.AuthToken
	MaxRetries  int

	StateStore StateStore
	Progress   ProgressSink
}

// New creates an Engine with sane defaults for StateStore/Progress.
func New(configStore *config.Store, metisRoot string) *Engine {
	return &Engine{
		ConfigStore: configStore,
		MetisRoot:   metisRoot,
		MaxRetries:  DefaultMaxRetries,
		StateStore:  NewInMemoryStateStore(),
		Progress:    NoopProgressSink{},
	}
}

// Run performs a full sync cycle, retrying from the top on PushRejected up
// to MaxRetries times.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	cfg, err := e.ConfigStore.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Sync.UpstreamURL == "" {
		return Result{NoUpstream: true}, nil
	}

	maxRetries := e.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	state := e.stateStore()
	progress := e.progressSink()

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		result, cycleErr := e.runOnce(ctx, cfg)
		if cycleErr == nil {
			result.Attempts = attempt
			if result.Commit != "" {
				if err := e.ConfigStore.UpdateLastSyncedCommit(result.Commit); err != nil {
					return Result{}, fmt.Errorf("persist last_synced_commit: %w", err)
				}
			}
			_ = state.Save(ctx, RunState{Attempt: attempt, LastCommit: result.Commit})
			progress.OnComplete(result)
			return result, nil
		}

		lastErr = cycleErr
		if !errors.Is(cycleErr, metiserrors.ErrPushRejected) {
			return Result{}, cycleErr
		}

		_ = state.Save(ctx, RunState{Attempt: attempt, LastError: cycleErr.Error(), InProgress: true})
		progress.OnRetry(attempt, cycleErr)
	}

	return Result{}, &metiserrors.RetriesExhaustedError{Retries: maxRetries, Last: lastErr}
}

// PullOnly performs fetch and hydration only: no flatten, dehydrate, push,
// or retry. Used by read-heavy callers (e.g. an MCP server) that want the
// local filesystem refreshed without writing anything back upstream.
func (e *Engine) PullOnly(ctx context.Context) (Result, error) {
	cfg, err := e.ConfigStore.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Sync.UpstreamURL == "" {
		return Result{NoUpstream: true}, nil
	}

	progress := e.progressSink()
	progress.OnPhase("fetch")

	sc, err := gitsync.NewSyncContext(cfg.Sync.UpstreamURL, e.AuthToken)
	if err != nil {
		return Result{}, fmt.Errorf("prepare sync context: %w", err)
	}
	defer sc.Close()

	head, ok, err := sc.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{NoChange: true}, nil
	}

	progress.OnPhase("hydrate")
	hydrateResult, err := hydration.Hydrate(ctx, sc, head, cfg.Workspace.Prefix, e.MetisRoot, config.IsValidPrefix)
	if err != nil {
		return Result{}, fmt.Errorf("hydrate: %w", err)
	}

	result := Result{HydrationWarnings: hydrateResult.Warnings}
	progress.OnComplete(result)
	return result, nil
}

// runOnce executes one full attempt: fetch, hydrate, flatten, dehydrate,
// push. Every attempt builds a fresh SyncContext, since between our last
// attempt's fetch and push, other workspaces may have advanced the central
// repository.
func (e *Engine) runOnce(ctx context.Context, cfg config.WorkspaceConfig) (Result, error) {
	progress := e.progressSink()
	prefix := cfg.Workspace.Prefix

	progress.OnPhase("fetch")
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	sc, err := gitsync.NewSyncContext(cfg.Sync.UpstreamURL, e.AuthToken)
	if err != nil {
		return Result{}, fmt.Errorf("prepare sync context: %w", err)
	}
	defer sc.Close()

	head, ok, err := sc.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	var hydrationWarnings []string
	if ok {
		progress.OnPhase("hydrate")
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		hydrateResult, err := hydration.Hydrate(ctx, sc, head, prefix, e.MetisRoot, config.IsValidPrefix)
		if err != nil {
			return Result{}, fmt.Errorf("hydrate: %w", err)
		}
		hydrationWarnings = hydrateResult.Warnings
	}

	progress.OnPhase("flatten")
	localDocs, _, err := layout.Flatten(filepath.Join(e.MetisRoot, prefix))
	if err != nil {
		return Result{}, fmt.Errorf("flatten %s: %w", prefix, err)
	}

	progress.OnPhase("dehydrate")
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	outcome, err := dehydration.Dehydrate(sc, head, prefix, localDocs)
	if err != nil {
		return Result{}, fmt.Errorf("dehydrate: %w", err)
	}
	if !outcome.Changed {
		return Result{NoChange: true, HydrationWarnings: hydrationWarnings}, nil
	}

	progress.OnPhase("push")
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := sc.Push(ctx); err != nil {
		return Result{}, err
	}

	return Result{Commit: outcome.Commit.String(), HydrationWarnings: hydrationWarnings}, nil
}

func (e *Engine) stateStore() StateStore {
	if e.StateStore != nil {
		return e.StateStore
	}
	return NewInMemoryStateStore()
}

func (e *Engine) progressSink() ProgressSink {
	if e.Progress != nil {
		return e.Progress
	}
	return NoopProgressSink{}
}
