// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package testutil provides hermetic git repository fixtures for tests,
// built on go-git rather than shelling out to the git binary.
package testutil

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var fixtureSignature = &object.Signature{
	Name:  "Test",
	Email: "test@test.com",
	When:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
}

// TempBareRepo creates a temporary bare git repository, suitable for use as
// a "remote" in tests. Cleanup is automatic via t.TempDir.
func TempBareRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	if _, err := git.PlainInit(dir, true); err != nil {
		t.Fatalf("failed to init bare git repo: %v", err)
	}

	return dir
}

// TempWorkingRepo creates a temporary non-bare git repository with no
// commits. Cleanup is automatic via t.TempDir.
func TempWorkingRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	return dir
}

// TempWorkingRepoWithCommit creates a temp working repo with one commit
// containing a README.md.
func TempWorkingRepoWithCommit(t *testing.T) string {
	t.Helper()
	dir := TempWorkingRepo(t)
	CommitFile(t, dir, "README.md", "# Test", "initial commit")
	return dir
}

// CommitFile writes path (relative to repoDir) with contents and commits it
// to repoDir's current branch, returning the new commit hash.
func CommitFile(t *testing.T, repoDir, path, contents, message string) string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open repo at %s: %v", repoDir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	if err := wt.Filesystem.MkdirAll(wt.Filesystem.Join(path, ".."), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}

	f, err := wt.Filesystem.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	if _, err := f.Write([]byte(contents)); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}

	if _, err := wt.Add(path); err != nil {
		t.Fatalf("failed to stage %s: %v", path, err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:    fixtureSignature,
		Committer: fixtureSignature,
	})
	if err != nil {
		t.Fatalf("failed to commit %s: %v", path, err)
	}

	return hash.String()
}

// AddRemote wires remoteName -> url on the repo at repoDir.
func AddRemote(t *testing.T, repoDir, remoteName, url string) {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open repo at %s: %v", repoDir, err)
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: remoteName,
		URLs: []string{url},
	})
	if err != nil {
		t.Fatalf("failed to add remote %s -> %s: %v", remoteName, url, err)
	}
}
