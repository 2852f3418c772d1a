// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitsync implements the sync engine's only contact with git: a
// short-lived scratch clone wrapping github.com/go-git/go-git/v5, used to
// fetch the central repository, diff it against a previously known commit,
// read individual blobs, and commit+push a workspace's owned subtree back.
//
// Nothing in this package touches the workspace's own files; it operates
// entirely on an in-memory tree view of the central repository plus a
// throwaway directory under the system temp dir.
package gitsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	metiserrors "github.com/metis-project/metis-sync/internal/errors"
	"github.com/metis-project/metis-sync/pkg/repository"
)

const remoteName = "origin"

// candidateDefaultBranches is the order in which SyncContext looks for the
// remote's default branch when none is pinned explicitly.
var candidateDefaultBranches = []string{"main", "master"}

// ChangeKind classifies one path's change between two tree snapshots.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change describes a single path's delta between two commits.
type Change struct {
	Path string
	Kind ChangeKind
}

// SyncContext is a short-lived handle on a scratch clone of one remote.
// Construction never touches the network; call Fetch to do that.
type SyncContext struct {
	repo       *git.Repository
	scratchDir string
	remoteURL  string
	auth       AuthToken

	branch      string
	fetchedHead plumbing.Hash
	hasFetched  bool

	pendingCommit plumbing.Hash
}

// NewSyncContext prepares a scratch clone for remoteURL. It does not
// contact the network.
func NewSyncContext(remoteURL string, auth AuthToken) (*SyncContext, error) {
	scratchDir, err := os.MkdirTemp("", "metis-sync-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	repo, err := git.PlainInit(scratchDir, false)
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, fmt.Errorf("init scratch repo: %w", err)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: remoteName,
		URLs: []string{remoteURL},
	}); err != nil {
		os.RemoveAll(scratchDir)
		return nil, fmt.Errorf("configure remote: %w", err)
	}

	return &SyncContext{
		repo:       repo,
		scratchDir: scratchDir,
		remoteURL:  remoteURL,
		auth:       auth,
	}, nil
}

// Close removes the scratch directory. Safe to call multiple times.
func (s *SyncContext) Close() error {
	if s.scratchDir == "" {
		return nil
	}
	err := os.RemoveAll(s.scratchDir)
	s.scratchDir = ""
	return err
}

// Fetch contacts the remote, updates local refs, and resolves the remote's
// default branch. Returns (hash, false, nil) when the remote has no
// commits yet (empty central repo).
func (s *SyncContext) Fetch(ctx context.Context) (plumbing.Hash, bool, error) {
	candidates := authCandidates(s.remoteURL, s.auth)
	iter := newBoundedAuthIterator(candidates)

	var lastErr error
	for {
		authMethod, ok := iter.next()
		if !ok {
			break
		}

		err := s.repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: remoteName,
			Auth:       authMethod,
			RefSpecs: []config.RefSpec{
				"+refs/heads/*:refs/remotes/origin/*",
			},
			Tags: git.NoTags,
		})
		if err == nil || err == git.NoErrAlreadyUpToDate {
			return s.resolveDefaultBranch()
		}
		if err == transport.ErrEmptyRemoteRepository {
			return plumbing.ZeroHash, false, nil
		}

		lastErr = err
		if !isAuthError(err) {
			break
		}
	}

	return plumbing.ZeroHash, false, classifyFetchError(s.remoteURL, lastErr)
}

// resolveDefaultBranch picks the remote's default branch: "main", then
// "master", then the first valid remote-tracking branch the local ref
// iterator yields.
func (s *SyncContext) resolveDefaultBranch() (plumbing.Hash, bool, error) {
	refs, err := s.repo.References()
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("list refs: %w", err)
	}

	remoteBranches := make(map[string]plumbing.Hash)
	var first string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		const prefix = "refs/remotes/origin/"
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		branch := strings.TrimPrefix(name, prefix)
		if !repository.IsValidBranchName(branch) {
			return nil
		}
		remoteBranches[branch] = ref.Hash()
		if first == "" {
			first = branch
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("walk refs: %w", err)
	}

	if len(remoteBranches) == 0 {
		return plumbing.ZeroHash, false, nil
	}

	for _, candidate := range candidateDefaultBranches {
		if hash, ok := remoteBranches[candidate]; ok {
			s.branch = candidate
			s.fetchedHead = hash
			s.hasFetched = true
			return hash, true, nil
		}
	}

	s.branch = first
	s.fetchedHead = remoteBranches[first]
	s.hasFetched = true
	return s.fetchedHead, true, nil
}

// DiffSince lists the changes between since (exclusive) and the fetched
// HEAD, optionally restricted to files under pathFilter. A nil since means
// every file reachable from HEAD is reported as Added. An unrecognized
// since (not an ancestor reachable in this scratch clone, e.g. after a
// force-push) is reported as DivergedHistoryError.
func (s *SyncContext) DiffSince(since *plumbing.Hash, pathFilter string) ([]Change, error) {
	if !s.hasFetched {
		return nil, fmt.Errorf("diff requested before fetch")
	}

	headTree, err := s.treeAt(s.fetchedHead)
	if err != nil {
		return nil, fmt.Errorf("load head tree: %w", err)
	}

	if since == nil {
		return changesFromTree(headTree, pathFilter, Added)
	}

	if _, err := s.repo.CommitObject(*since); err != nil {
		return nil, &metiserrors.DivergedHistoryError{PreviousCommit: since.String()}
	}

	prevTree, err := s.treeAt(*since)
	if err != nil {
		return nil, &metiserrors.DivergedHistoryError{PreviousCommit: since.String()}
	}

	treeChanges, err := prevTree.Diff(headTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	var result []Change
	for _, c := range treeChanges {
		path := changePath(c)
		if pathFilter != "" && !strings.HasPrefix(path, pathFilter) {
			continue
		}
		result = append(result, Change{Path: path, Kind: classifyChange(c)})
	}
	return result, nil
}

func (s *SyncContext) treeAt(hash plumbing.Hash) (*object.Tree, error) {
	commit, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

func changesFromTree(tree *object.Tree, pathFilter string, kind ChangeKind) ([]Change, error) {
	var result []Change
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk tree: %w", err)
		}
		if entry.Mode.IsFile() && (pathFilter == "" || strings.HasPrefix(name, pathFilter)) {
			result = append(result, Change{Path: name, Kind: kind})
		}
	}
	return result, nil
}

// ReadBlob returns the content of path as of commit.
func (s *SyncContext) ReadBlob(commit plumbing.Hash, path string) ([]byte, error) {
	tree, err := s.treeAt(commit)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}

	file, err := tree.File(path)
	if err != nil {
		return nil, metiserrors.Wrap(fmt.Errorf("%s: %w", path, err), metiserrors.ErrNotFound)
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob reader: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return buf.Bytes(), nil
}
