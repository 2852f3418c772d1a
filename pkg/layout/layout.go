// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package layout maps between a workspace's hierarchical on-disk directory
// tree and the flat, per-prefix layout the central repository stores
// documents in. It is the only place in the sync engine that walks a real
// filesystem directory tree; everything downstream works on in-memory
// short-code-keyed maps.
package layout

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/metis-project/metis-sync/pkg/frontmatter"
)

// Document pairs a short code with the raw bytes of its markdown file.
type Document struct {
	ShortCode string
	Content   []byte
}

// Warning records a non-fatal problem encountered while walking a tree.
// Flatten and ReadFlat collect these instead of failing outright, since one
// malformed file should never block sync of everything else.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

// reservedNames are always skipped by Flatten and never removed by
// WriteFlat, regardless of walk depth.
var reservedNames = map[string]bool{
	".metis":       true,
	".git":         true,
	".metisignore": true,
	"metis.db":     true,
}

// isReserved reports whether name (a single path component) must be
// skipped: the fixed reserved names, any dotfile/dotdir, or the
// metis.sqlite* family, or the .code-index directory.
func isReserved(name string) bool {
	if reservedNames[name] {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasPrefix(name, "metis.sqlite") {
		return true
	}
	if name == ".code-index" {
		return true
	}
	return false
}

// Flatten walks root (the workspace's on-disk hierarchy) and extracts every
// valid document. Files without a parseable short_code, files under a
// reserved name at any depth, and anything under an "archived" directory
// are skipped. Duplicate short codes keep the first occurrence encountered
// and produce a Warning for every later one.
func Flatten(root string) (map[string][]byte, []Warning, error) {
	result := make(map[string][]byte)
	var warnings []Warning

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Reason: err.Error()})
			return nil
		}

		name := d.Name()
		if path != root && isReserved(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if name == "archived" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".md") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Reason: err.Error()})
			return nil
		}

		shortCode, ok := frontmatter.HasShortCode(raw)
		if !ok {
			warnings = append(warnings, Warning{Path: path, Reason: "no parseable short_code"})
			return nil
		}

		if _, exists := result[shortCode]; exists {
			warnings = append(warnings, Warning{Path: path, Reason: "duplicate short_code " + shortCode + ", keeping first"})
			return nil
		}
		result[shortCode] = raw
		return nil
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("walk %s: %w", root, err)
	}

	return result, warnings, nil
}

// ReadFlat enumerates a single flat directory, non-recursively, and returns
// every valid markdown document keyed by short code.
func ReadFlat(dir string) (map[string][]byte, []Warning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	result := make(map[string][]byte)
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
		shortCode, ok := frontmatter.HasShortCode(raw)
		if !ok {
			warnings = append(warnings, Warning{Path: path, Reason: "no parseable short_code"})
			continue
		}
		if _, exists := result[shortCode]; exists {
			warnings = append(warnings, Warning{Path: path, Reason: "duplicate short_code " + shortCode + ", keeping first"})
			continue
		}
		result[shortCode] = raw
	}

	return result, warnings, nil
}

// levelDirs maps a frontmatter "level" value to its pluralized directory
// name in the hierarchical layout. A level outside this set (or missing)
// falls back to "other".
var levelDirs = map[string]string{
	"vision":     "visions",
	"strategy":   "strategies",
	"initiative": "initiatives",
	"task":       "tasks",
	"adr":        "adrs",
}

// Unflatten computes each document's hierarchical on-disk path (relative to
// the workspace root) from its frontmatter level/parent, the inverse of
// Flatten. A document with no parent lives at "<level_dir>/<short_code>.md".
// A document with a parent lives under the parent's own directory (the
// parent's path with ".md" stripped): "<parent_dir>/<level_dir>/<short_code>.md",
// matching the nesting Flatten walks (e.g. "strategies/X/initiatives/Y/tasks/Z.md").
//
// An unparseable document, a parent reference to a short code absent from
// docs, or a parent cycle all degrade to placing the document at its
// top-level path and produce a Warning; they never abort the whole batch.
func Unflatten(docs map[string][]byte) (map[string]string, []Warning) {
	parsed := make(map[string]frontmatter.Document, len(docs))
	var warnings []Warning
	for shortCode, raw := range docs {
		doc, _, ok, err := frontmatter.Parse(raw)
		if err != nil || !ok {
			warnings = append(warnings, Warning{Path: shortCode, Reason: "no parseable frontmatter, placed at top level"})
			doc = frontmatter.Document{}
		}
		doc.ShortCode = shortCode
		parsed[shortCode] = doc
	}

	paths := make(map[string]string, len(parsed))
	resolving := make(map[string]bool, len(parsed))
	for shortCode := range parsed {
		path, warns := resolvePath(shortCode, parsed, paths, resolving)
		paths[shortCode] = path
		warnings = append(warnings, warns...)
	}
	return paths, warnings
}

// resolvePath resolves shortCode's hierarchical path, memoizing into paths
// and recursing through the parent chain. resolving tracks the in-progress
// chain so a parent cycle is caught instead of looping forever.
func resolvePath(shortCode string, parsed map[string]frontmatter.Document, paths map[string]string, resolving map[string]bool) (string, []Warning) {
	if path, done := paths[shortCode]; done {
		return path, nil
	}

	doc := parsed[shortCode]
	dir := levelDirs[doc.Level]
	if dir == "" {
		dir = "other"
	}
	topLevel := filepath.Join(dir, shortCode+".md")

	if doc.Parent == "" || doc.Parent == shortCode {
		return topLevel, nil
	}
	if _, ok := parsed[doc.Parent]; !ok {
		return topLevel, []Warning{{Path: shortCode, Reason: "parent " + doc.Parent + " not found, placed at top level"}}
	}
	if resolving[doc.Parent] {
		return topLevel, []Warning{{Path: shortCode, Reason: "parent cycle through " + doc.Parent + ", placed at top level"}}
	}

	resolving[shortCode] = true
	parentPath, warnings := resolvePath(doc.Parent, parsed, paths, resolving)
	resolving[shortCode] = false
	paths[doc.Parent] = parentPath

	parentDir := strings.TrimSuffix(parentPath, ".md")
	return filepath.Join(parentDir, dir, shortCode+".md"), warnings
}

// WriteHierarchy writes docs into root's hierarchical layout via Unflatten,
// creating every intermediate directory as needed. Unlike WriteFlat, it
// never removes files already on disk: hierarchy reconstruction is additive
// by design, since a stale sibling under a different parent is not this
// function's business to judge.
func WriteHierarchy(root string, docs map[string][]byte) ([]Warning, error) {
	paths, warnings := Unflatten(docs)
	for shortCode, relPath := range paths {
		fullPath := filepath.Join(root, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return warnings, fmt.Errorf("create dir for %s: %w", shortCode, err)
		}
		if err := os.WriteFile(fullPath, docs[shortCode], 0o644); err != nil {
			return warnings, fmt.Errorf("write %s: %w", fullPath, err)
		}
	}
	return warnings, nil
}

// WriteFlat writes docs to dir (by short_code + ".md"), creating dir if
// needed, then deletes any ".md" file already in dir whose short code is
// not present in docs. Non-".md" files are left untouched.
func WriteFlat(dir string, docs map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	for shortCode, content := range docs {
		path := filepath.Join(dir, shortCode+".md")
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") || isReserved(entry.Name()) {
			continue
		}
		shortCode := strings.TrimSuffix(entry.Name(), ".md")
		if _, keep := docs[shortCode]; keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove stale %s: %w", entry.Name(), err)
		}
	}

	return nil
}
