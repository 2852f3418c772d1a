// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package hydration mirrors every non-owned workspace's subtree from the
// fetched central commit down onto the local filesystem, and keeps the
// workspace ignore file in sync with which prefixes are present.
package hydration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sync/errgroup"

	"github.com/metis-project/metis-sync/pkg/gitsync"
	"github.com/metis-project/metis-sync/pkg/layout"
)

// reservedDirNames are hierarchy scaffolding directories that must never be
// treated as a workspace prefix, even if their name happens to pass the
// prefix regex.
var reservedDirNames = map[string]bool{
	"strategies": true,
	"adrs":       true,
	"backlog":    true,
	"templates":  true,
	"archived":   true,
}

// maxParallelWorkspaces bounds how many prefixes are hydrated concurrently.
const maxParallelWorkspaces = 4

// WorkspaceStats reports what Hydrate did for one workspace prefix.
type WorkspaceStats struct {
	FilesWritten int
	FilesRemoved int
}

// Result aggregates the outcome of a full hydration pass.
type Result struct {
	PerWorkspace map[string]WorkspaceStats
	Warnings     []string
}

// IsValidPrefixFunc reports whether a directory name is a legal workspace
// prefix. Injected so this package doesn't import pkg/config for a single
// regex.
type IsValidPrefixFunc func(name string) bool

// Hydrate mirrors every workspace except ownedPrefix from the fetched
// commit into metisRoot, then rewrites the ignore file. Partial failures on
// one workspace are recorded in the result rather than aborting the rest.
func Hydrate(ctx context.Context, sc *gitsync.SyncContext, head plumbing.Hash, ownedPrefix, metisRoot string, isValidPrefix IsValidPrefixFunc) (Result, error) {
	remotePrefixes, err := sc.TopLevelDirs(head)
	if err != nil {
		return Result{}, fmt.Errorf("list remote prefixes: %w", err)
	}
	remoteSet := make(map[string]bool, len(remotePrefixes))
	for _, p := range remotePrefixes {
		remoteSet[p] = true
	}

	var toHydrate []string
	for _, p := range remotePrefixes {
		if p == ownedPrefix || reservedDirNames[p] || !isValidPrefix(p) {
			continue
		}
		toHydrate = append(toHydrate, p)
	}

	var mu sync.Mutex
	stats := make(map[string]WorkspaceStats, len(toHydrate))
	var warnings []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelWorkspaces)

	for _, prefix := range toHydrate {
		prefix := prefix
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			docs, err := sc.ReadFlatUnderPrefix(head, prefix)
			if err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("%s: %v", prefix, err))
				mu.Unlock()
				return nil
			}

			target := filepath.Join(metisRoot, prefix)
			before, _, _ := layout.ReadFlat(target)

			if err := layout.WriteFlat(target, docs); err != nil {
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("%s: %v", prefix, err))
				mu.Unlock()
				return nil
			}

			removed := 0
			for code := range before {
				if _, kept := docs[code]; !kept {
					removed++
				}
			}

			mu.Lock()
			stats[prefix] = WorkspaceStats{FilesWritten: len(docs), FilesRemoved: removed}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("hydrate: %w", err)
	}

	if err := pruneStaleWorkspaceDirs(metisRoot, ownedPrefix, remoteSet, isValidPrefix); err != nil {
		warnings = append(warnings, fmt.Sprintf("prune stale workspaces: %v", err))
	}

	if err := rewriteIgnoreFile(metisRoot, toHydrate); err != nil {
		return Result{PerWorkspace: stats, Warnings: warnings}, fmt.Errorf("rewrite ignore file: %w", err)
	}

	return Result{PerWorkspace: stats, Warnings: warnings}, nil
}

// pruneStaleWorkspaceDirs removes local top-level directories that look
// like a hydrated workspace prefix but are no longer present on the
// remote, as long as they contain only ".md" files (the safety check: a
// directory holding anything else was not purely hydration output, so it's
// left alone).
func pruneStaleWorkspaceDirs(metisRoot, ownedPrefix string, remoteSet map[string]bool, isValidPrefix IsValidPrefixFunc) error {
	entries, err := os.ReadDir(metisRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || name == ownedPrefix || strings.HasPrefix(name, ".") {
			continue
		}
		if reservedDirNames[name] || !isValidPrefix(name) || remoteSet[name] {
			continue
		}
		if !containsOnlyMarkdown(filepath.Join(metisRoot, name)) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(metisRoot, name)); err != nil {
			return err
		}
	}
	return nil
}

func containsOnlyMarkdown(dir string) bool {
	var onlyMarkdown = true
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			onlyMarkdown = false
		}
		return nil
	})
	return onlyMarkdown
}

// rewriteIgnoreFile writes <metisRoot>/.metisignore with one "<prefix>/"
// line per hydrated prefix, merged with whatever was already there
// (set-union, deduplicated), written atomically.
func rewriteIgnoreFile(metisRoot string, hydratedPrefixes []string) error {
	path := filepath.Join(metisRoot, ".metisignore")

	existing := map[string]bool{}
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				existing[line] = true
			}
		}
	}
	for _, prefix := range hydratedPrefixes {
		existing[prefix+"/"] = true
	}

	lines := make([]string, 0, len(existing))
	for line := range existing {
		lines = append(lines, line)
	}
	sort.Strings(lines)

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}

	tmp, err := os.CreateTemp(metisRoot, ".metisignore-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
