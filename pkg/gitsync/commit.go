// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitsync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	metiserrors "github.com/metis-project/metis-sync/internal/errors"
)

// commitSignature identifies the sync engine as the author of every commit
// it writes; the central repository's history is an append-only sync log,
// not a place for per-user attribution.
var commitSignature = object.Signature{
	Name:  "metis-sync",
	Email: "sync@metis.invalid",
}

// CommitUpdate grafts the given files/removals onto the fetched HEAD tree,
// restricted to ownedPrefix, and creates a new commit parenting fetched
// HEAD. The local branch pointer is moved via a detached update (the
// scratch clone never checks out a working tree), so a retried cycle can
// rebuild cleanly without "current tip is not the first parent" errors.
//
// Every path in files and removals must be prefixed by ownedPrefix + "/";
// any violation is rejected before any tree mutation happens.
func (s *SyncContext) CommitUpdate(ownedPrefix string, files map[string][]byte, removals []string, message string) (plumbing.Hash, error) {
	if !s.hasFetched {
		return plumbing.ZeroHash, fmt.Errorf("commit requested before fetch")
	}

	prefix := strings.TrimSuffix(ownedPrefix, "/") + "/"
	for path := range files {
		if !strings.HasPrefix(path, prefix) {
			return plumbing.ZeroHash, &metiserrors.WriteScopeViolationError{Path: path, Scope: ownedPrefix}
		}
	}
	for _, path := range removals {
		if !strings.HasPrefix(path, prefix) {
			return plumbing.ZeroHash, &metiserrors.WriteScopeViolationError{Path: path, Scope: ownedPrefix}
		}
	}

	baseTree, err := s.treeAt(s.fetchedHead)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("load base tree: %w", err)
	}

	newTreeHash, err := s.graftTree(baseTree.Hash, files, removals)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("graft tree: %w", err)
	}

	commit := &object.Commit{
		Author:       commitSignature,
		Committer:    commitSignature,
		Message:      message,
		TreeHash:     newTreeHash,
		ParentHashes: []plumbing.Hash{s.fetchedHead},
	}
	commit.Author.When = time.Now().UTC()
	commit.Committer.When = commit.Author.When

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}
	commitHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store commit: %w", err)
	}

	ref := plumbing.NewHashReference(localBranchRef(s), commitHash)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("update local branch: %w", err)
	}

	s.pendingCommit = commitHash
	return commitHash, nil
}

func localBranchRef(s *SyncContext) plumbing.ReferenceName {
	branch := s.branch
	if branch == "" {
		branch = "main"
	}
	return plumbing.NewBranchReferenceName(branch)
}

// graftTree rebuilds baseTree, replacing entries for every path in files
// and deleting every path in removals, writing only the subtrees that
// actually changed. Everything outside the touched prefix is carried over
// bit-exactly by reusing the original tree object's hash for unmodified
// children.
func (s *SyncContext) graftTree(base plumbing.Hash, files map[string][]byte, removals []string) (plumbing.Hash, error) {
	tree, err := object.GetTree(s.repo.Storer, base)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("load tree %s: %w", base, err)
	}

	entries := make(map[string]object.TreeEntry, len(tree.Entries))
	order := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries[e.Name] = e
		order = append(order, e.Name)
	}

	for path, content := range files {
		name, rest := splitOnce(path)
		if rest == "" {
			hash, err := s.storeBlob(content)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if _, exists := entries[name]; !exists {
				order = append(order, name)
			}
			entries[name] = object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: hash}
			continue
		}

		childHash, err := s.graftSubtree(entries, name, rest, content, false)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if _, exists := entries[name]; !exists {
			order = append(order, name)
		}
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: childHash}
	}

	for _, path := range removals {
		name, rest := splitOnce(path)
		if rest == "" {
			delete(entries, name)
			continue
		}
		if entry, ok := entries[name]; ok && entry.Mode == filemode.Dir {
			childHash, err := s.removeFromSubtree(entry.Hash, rest)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: childHash}
		}
	}

	return s.storeTree(entries, order)
}

// graftSubtree descends into (or creates) the subtree named name, applying
// a single file write at the remaining relative path rest.
func (s *SyncContext) graftSubtree(parentEntries map[string]object.TreeEntry, name, rest string, content []byte, _ bool) (plumbing.Hash, error) {
	var childTree map[string]object.TreeEntry
	var childOrder []string

	if existing, ok := parentEntries[name]; ok && existing.Mode == filemode.Dir {
		tree, err := object.GetTree(s.repo.Storer, existing.Hash)
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("load subtree %s: %w", name, err)
		}
		childTree = make(map[string]object.TreeEntry, len(tree.Entries))
		for _, e := range tree.Entries {
			childTree[e.Name] = e
			childOrder = append(childOrder, e.Name)
		}
	} else {
		childTree = make(map[string]object.TreeEntry)
	}

	nextName, nextRest := splitOnce(rest)
	if nextRest == "" {
		hash, err := s.storeBlob(content)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if _, exists := childTree[nextName]; !exists {
			childOrder = append(childOrder, nextName)
		}
		childTree[nextName] = object.TreeEntry{Name: nextName, Mode: filemode.Regular, Hash: hash}
		return s.storeTree(childTree, childOrder)
	}

	grandHash, err := s.graftSubtree(childTree, nextName, nextRest, content, false)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, exists := childTree[nextName]; !exists {
		childOrder = append(childOrder, nextName)
	}
	childTree[nextName] = object.TreeEntry{Name: nextName, Mode: filemode.Dir, Hash: grandHash}
	return s.storeTree(childTree, childOrder)
}

// removeFromSubtree deletes rest from the subtree identified by hash.
func (s *SyncContext) removeFromSubtree(hash plumbing.Hash, rest string) (plumbing.Hash, error) {
	tree, err := object.GetTree(s.repo.Storer, hash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("load subtree: %w", err)
	}

	entries := make(map[string]object.TreeEntry, len(tree.Entries))
	order := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries[e.Name] = e
		order = append(order, e.Name)
	}

	name, childRest := splitOnce(rest)
	if childRest == "" {
		delete(entries, name)
	} else if entry, ok := entries[name]; ok && entry.Mode == filemode.Dir {
		newChildHash, err := s.removeFromSubtree(entry.Hash, childRest)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries[name] = object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: newChildHash}
	}

	return s.storeTree(entries, order)
}

func (s *SyncContext) storeBlob(content []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

func (s *SyncContext) storeTree(entries map[string]object.TreeEntry, order []string) (plumbing.Hash, error) {
	tree := &object.Tree{}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		entry, ok := entries[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		tree.Entries = append(tree.Entries, entry)
	}
	sortTreeEntries(tree.Entries)

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// sortTreeEntries puts entries into git's canonical tree order: byte-wise
// by name, except a directory name sorts as though suffixed with "/". This
// matters because tree.Encode writes entries in the order given rather than
// sorting them itself — a newly-grafted entry that sorts before an existing
// sibling (e.g. adding "API-V-0000.md" next to "API-V-0001.md") would
// otherwise land at the end of the slice and produce a tree object real git
// (and any host with receive.fsckObjects=true) rejects as non-canonical.
func sortTreeEntries(entries []object.TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return treeEntrySortKey(entries[i]) < treeEntrySortKey(entries[j])
	})
}

func treeEntrySortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

func splitOnce(path string) (head, rest string) {
	idx := strings.IndexByte(path, '/')
	if idx < 0 {
		return path, ""
	}
	return path[:idx], path[idx+1:]
}
