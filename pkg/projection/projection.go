// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package projection builds a read-only, cross-workspace index over every
// document on disk after a sync completes. It never runs mid-cycle and has
// no incremental mode: each call to Build walks every hydrated and owned
// prefix fresh.
package projection

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/metis-project/metis-sync/pkg/frontmatter"
)

// maxParallelWalks bounds how many prefix directories are walked
// concurrently while building the cache, the same idiom pkg/hydration uses
// for its per-prefix fan-out.
const maxParallelWalks = 4

// CachedDocument is one projection cache entry: frontmatter plus the
// location metadata the cache itself adds (workspace, ownership, path).
// Derived, never authoritative — the flat file on disk is the source of
// truth.
type CachedDocument struct {
	ShortCode    string
	Title        string
	DocumentType string
	Phase        string
	Parent       string
	BlockedBy    []string
	Archived     bool
	Workspace    string
	Owned        bool
	FilePath     string
}

// ProgressSummary aggregates children of one document by phase.
type ProgressSummary struct {
	Backlog   int
	Todo      int
	Active    int
	Completed int
	Blocked   int
	Other     int
}

// Warning records a non-fatal problem hit while building the cache.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

// Cache is a built, read-only snapshot of every document across every
// workspace. Safe for concurrent reads; never mutated after Build returns.
type Cache struct {
	byShortCode map[string]CachedDocument

	// children maps a parent short code to every short code naming it as
	// parent, across all workspaces. Self-references and parents absent from
	// byShortCode (orphaned references) are excluded.
	children map[string][]string

	// blocks maps a blocker short code to every short code that lists it
	// in blocked_by.
	blocks map[string][]string

	// workspaceMembers maps a prefix to every short code found under it,
	// including duplicates of a short code also present elsewhere.
	workspaceMembers map[string][]string

	Warnings []Warning
}

// Build walks metisRoot for every entry in prefixes (owned and hydrated
// alike) and constructs a fresh Cache. Per-prefix walks run concurrently
// (bounded by maxParallelWalks); the four index maps are assembled from the
// merged results in a single non-concurrent final pass, so no shared map is
// ever written to from more than one goroutine.
func Build(ctx context.Context, metisRoot, ownedPrefix string, prefixes []string) (*Cache, error) {
	type walkResult struct {
		prefix   string
		docs     []CachedDocument
		warnings []Warning
	}

	results := make([]walkResult, len(prefixes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelWalks)

	for i, prefix := range prefixes {
		i, prefix := i, prefix
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, warnings := walkPrefix(filepath.Join(metisRoot, prefix), prefix, prefix == ownedPrefix)
			results[i] = walkResult{prefix: prefix, docs: docs, warnings: warnings}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build projection cache: %w", err)
	}

	cache := &Cache{
		byShortCode:      make(map[string]CachedDocument),
		children:         make(map[string][]string),
		blocks:           make(map[string][]string),
		workspaceMembers: make(map[string][]string),
	}

	for _, r := range results {
		cache.Warnings = append(cache.Warnings, r.warnings...)
		for _, doc := range r.docs {
			cache.workspaceMembers[r.prefix] = append(cache.workspaceMembers[r.prefix], doc.ShortCode)
			if _, exists := cache.byShortCode[doc.ShortCode]; !exists {
				cache.byShortCode[doc.ShortCode] = doc
			}
		}
	}

	for _, doc := range cache.byShortCode {
		if _, known := cache.byShortCode[doc.Parent]; known && doc.Parent != doc.ShortCode {
			cache.children[doc.Parent] = append(cache.children[doc.Parent], doc.ShortCode)
		}
		for _, blocker := range doc.BlockedBy {
			cache.blocks[blocker] = append(cache.blocks[blocker], doc.ShortCode)
		}
	}

	for _, list := range cache.children {
		sort.Strings(list)
	}
	for _, list := range cache.blocks {
		sort.Strings(list)
	}
	for _, list := range cache.workspaceMembers {
		sort.Strings(list)
	}

	return cache, nil
}

// walkPrefix reads every ".md" file directly under dir (the flat layout
// hydration and flatten both produce) and parses its frontmatter. A file
// with no parseable short_code is recorded as a Warning and skipped; it
// never aborts the rest of the walk.
func walkPrefix(dir, prefix string, owned bool) ([]CachedDocument, []Warning) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []Warning{{Path: dir, Reason: err.Error()}}
	}

	var docs []CachedDocument
	var warnings []Warning

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Reason: err.Error()})
			continue
		}

		fm, body, ok, err := frontmatter.Parse(raw)
		if err != nil || !ok || fm.ShortCode == "" {
			warnings = append(warnings, Warning{Path: path, Reason: "no parseable short_code"})
			continue
		}

		docs = append(docs, CachedDocument{
			ShortCode:    fm.ShortCode,
			Title:        deriveTitle(body, fm.ShortCode),
			DocumentType: fm.Level,
			Phase:        fm.Phase(),
			Parent:       fm.Parent,
			BlockedBy:    fm.BlockedBy,
			Archived:     fm.Archived,
			Workspace:    prefix,
			Owned:        owned,
			FilePath:     path,
		})
	}

	return docs, warnings
}

// deriveTitle takes the first "# " markdown heading in body, or falls back
// to shortCode when the body has none. The frontmatter schema has no title
// field of its own (SPEC_FULL.md §6), so the body's first heading is the
// only available source.
func deriveTitle(body []byte, shortCode string) string {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return shortCode
}

// Get returns the document for short_code, or (zero, false) if unknown.
func (c *Cache) Get(shortCode string) (CachedDocument, bool) {
	doc, ok := c.byShortCode[shortCode]
	return doc, ok
}

// ChildrenOf returns every document whose parent is shortCode, across every
// workspace. An orphaned/unresolved parent reference yields no entry here
// (the referencing document is still in by_short_code, just not indexed as
// a child of anything real).
func (c *Cache) ChildrenOf(shortCode string) []CachedDocument {
	var result []CachedDocument
	for _, code := range c.children[shortCode] {
		if doc, ok := c.byShortCode[code]; ok {
			result = append(result, doc)
		}
	}
	return result
}

// Blocks returns every document listing shortCode in blocked_by. This is a
// non-recursive, one-hop lookup: cycles in blocked_by are tolerated because
// nothing here walks the graph.
func (c *Cache) Blocks(shortCode string) []CachedDocument {
	var result []CachedDocument
	for _, code := range c.blocks[shortCode] {
		if doc, ok := c.byShortCode[code]; ok {
			result = append(result, doc)
		}
	}
	return result
}

// Progress aggregates the phase of every child of shortCode across every
// workspace. A document with no children yields an all-zero summary.
func (c *Cache) Progress(shortCode string) ProgressSummary {
	var summary ProgressSummary
	for _, child := range c.ChildrenOf(shortCode) {
		if child.Archived {
			continue
		}
		switch child.Phase {
		case "backlog":
			summary.Backlog++
		case "todo":
			summary.Todo++
		case "active", "in-progress", "in_progress":
			summary.Active++
		case "done", "completed":
			summary.Completed++
		case "blocked":
			summary.Blocked++
		default:
			summary.Other++
		}
	}
	return summary
}

// WorkspaceDocuments returns every document recorded as a member of prefix,
// including any whose short code also appears elsewhere (duplicate short
// codes across workspaces are tolerated, not deduplicated here).
func (c *Cache) WorkspaceDocuments(prefix string) []CachedDocument {
	var result []CachedDocument
	for _, code := range c.workspaceMembers[prefix] {
		if doc, ok := c.byShortCode[code]; ok {
			result = append(result, doc)
		}
	}
	return result
}

// UpstreamContext transitively follows parent links from every document in
// prefix, staying within prefix, until the chain leaves it; the first
// out-of-workspace parent reached on each chain is collected. A parent
// chain that loops back on itself terminates (visited-set guard) rather
// than looping forever, and yields nothing for that chain.
func (c *Cache) UpstreamContext(prefix string) []CachedDocument {
	found := make(map[string]bool)
	var ancestors []CachedDocument

	for _, code := range c.workspaceMembers[prefix] {
		doc, ok := c.byShortCode[code]
		if !ok {
			continue
		}

		current := doc.Parent
		visited := map[string]bool{doc.ShortCode: true}
		for current != "" && !visited[current] {
			visited[current] = true
			parentDoc, ok := c.byShortCode[current]
			if !ok {
				break
			}
			if parentDoc.Workspace != prefix {
				if !found[parentDoc.ShortCode] {
					found[parentDoc.ShortCode] = true
					ancestors = append(ancestors, parentDoc)
				}
				break
			}
			current = parentDoc.Parent
		}
	}

	return ancestors
}
