// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package dehydration computes the owned workspace's outgoing changes
// against the central repository's current view of that workspace, and
// turns them into a commit via pkg/gitsync — or a no-op if nothing changed.
package dehydration

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/metis-project/metis-sync/pkg/gitsync"
)

// Outcome is the result of one dehydration attempt.
type Outcome struct {
	// Changed is false when the owned subtree already matches central
	// (the idempotence short-circuit); Commit is the zero hash in that case.
	Changed bool
	Commit  plumbing.Hash
}

// Dehydrate diffs localDocs (the owned workspace's flattened documents,
// keyed by short code) against the central repository's current state of
// ownedPrefix at head, and commits the difference if any exists.
func Dehydrate(sc *gitsync.SyncContext, head plumbing.Hash, ownedPrefix string, localDocs map[string][]byte) (Outcome, error) {
	centralDocs, err := sc.ReadFlatUnderPrefix(head, ownedPrefix)
	if err != nil {
		return Outcome{}, fmt.Errorf("read central state of %s: %w", ownedPrefix, err)
	}

	files := make(map[string][]byte)
	var removals []string

	for code, content := range localDocs {
		existing, present := centralDocs[code]
		if !present || !bytes.Equal(existing, content) {
			files[code+".md"] = content
		}
	}
	for code := range centralDocs {
		if _, present := localDocs[code]; !present {
			removals = append(removals, code+".md")
		}
	}

	if len(files) == 0 && len(removals) == 0 {
		return Outcome{Changed: false}, nil
	}

	prefixedFiles := make(map[string][]byte, len(files))
	for name, content := range files {
		prefixedFiles[ownedPrefix+"/"+name] = content
	}
	prefixedRemovals := make([]string, len(removals))
	for i, name := range removals {
		prefixedRemovals[i] = ownedPrefix + "/" + name
	}

	message := fmt.Sprintf("sync: %s @ %s", ownedPrefix, time.Now().UTC().Format(time.RFC3339))

	commit, err := sc.CommitUpdate(ownedPrefix, prefixedFiles, prefixedRemovals, message)
	if err != nil {
		return Outcome{}, fmt.Errorf("commit update: %w", err)
	}

	return Outcome{Changed: true, Commit: commit}, nil
}
