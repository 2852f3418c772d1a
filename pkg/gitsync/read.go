// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitsync

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/metis-project/metis-sync/pkg/frontmatter"
)

// TopLevelDirs returns the names of every top-level directory in commit's
// tree. Used by hydration to discover workspace prefixes without walking
// the whole tree.
func (s *SyncContext) TopLevelDirs(commit plumbing.Hash) ([]string, error) {
	tree, err := s.treeAt(commit)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}

	var dirs []string
	for _, entry := range tree.Entries {
		if entry.Mode == filemode.Dir {
			dirs = append(dirs, entry.Name)
		}
	}
	return dirs, nil
}

// ReadFlatUnderPrefix reads every immediate ".md" child of prefix in
// commit's tree and returns them keyed by short_code, mirroring
// pkg/layout.ReadFlat's contract but sourced from a git tree instead of a
// filesystem directory.
func (s *SyncContext) ReadFlatUnderPrefix(commit plumbing.Hash, prefix string) (map[string][]byte, error) {
	tree, err := s.treeAt(commit)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}

	entry, err := tree.FindEntry(prefix)
	if err != nil {
		return map[string][]byte{}, nil
	}
	if entry.Mode != filemode.Dir {
		return map[string][]byte{}, nil
	}

	subtree, err := object.GetTree(s.repo.Storer, entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("load subtree %s: %w", prefix, err)
	}

	result := make(map[string][]byte)
	for _, child := range subtree.Entries {
		if child.Mode != filemode.Regular || !strings.HasSuffix(child.Name, ".md") {
			continue
		}

		blob, err := object.GetBlob(s.repo.Storer, child.Hash)
		if err != nil {
			return nil, fmt.Errorf("load blob %s/%s: %w", prefix, child.Name, err)
		}
		reader, err := blob.Reader()
		if err != nil {
			return nil, fmt.Errorf("open blob %s/%s: %w", prefix, child.Name, err)
		}
		var buf bytes.Buffer
		_, copyErr := io.Copy(&buf, reader)
		reader.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("read blob %s/%s: %w", prefix, child.Name, copyErr)
		}

		raw := buf.Bytes()
		shortCode, ok := frontmatter.HasShortCode(raw)
		if !ok {
			continue
		}
		result[shortCode] = raw
	}

	return result, nil
}
