// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitsync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	metiserrors "github.com/metis-project/metis-sync/internal/errors"
)

// pushRejectPatterns are substrings seen in go-git/transport error messages
// that indicate a retriable, contention-driven push failure: another
// writer landed a commit first, a ref lock is briefly held, or the remote
// no longer has the ref we thought it did.
var pushRejectPatterns = []string{
	"non-fast-forward",
	"rejected",
	"not present locally",
	"already exists",
	"lock",
}

// Push sends the commit built by CommitUpdate to the remote's default
// branch. Returns ErrPushRejected (retriable, caught by the orchestrator's
// full-cycle retry loop) or an AuthError/NetworkError (not retriable).
func (s *SyncContext) Push(ctx context.Context) error {
	if s.pendingCommit.IsZero() {
		return fmt.Errorf("push requested before a commit was built")
	}

	branchRef := localBranchRef(s)
	candidates := authCandidates(s.remoteURL, s.auth)
	iter := newBoundedAuthIterator(candidates)

	var lastErr error
	for {
		authMethod, ok := iter.next()
		if !ok {
			break
		}

		err := s.repo.PushContext(ctx, &git.PushOptions{
			RemoteName: remoteName,
			Auth:       authMethod,
			RefSpecs: []config.RefSpec{
				config.RefSpec(branchRef.String() + ":" + branchRef.String()),
			},
		})
		if err == nil || err == git.NoErrAlreadyUpToDate {
			return nil
		}

		lastErr = err
		if !isAuthError(err) {
			break
		}
	}

	return classifyPushError(s.remoteURL, lastErr)
}

// classifyPushError maps a go-git push error onto the sync engine's error
// taxonomy. Pattern matching on the error string is unavoidable here: both
// go-git and the smart-HTTP/SSH protocols it wraps report push rejections
// as free-form text, not typed errors.
func classifyPushError(remoteURL string, err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range pushRejectPatterns {
		if strings.Contains(msg, pattern) {
			return metiserrors.Wrap(fmt.Errorf("push to %s: %w", remoteURL, err), metiserrors.ErrPushRejected)
		}
	}

	if isAuthError(err) {
		return &metiserrors.AuthError{URL: sanitizedURL(remoteURL), Cause: err}
	}
	if isNetworkError(err) {
		return &metiserrors.NetworkError{URL: sanitizedURL(remoteURL), Cause: err}
	}

	return fmt.Errorf("push to %s: %w", remoteURL, err)
}

// classifyFetchError maps a go-git fetch error; fetch failures are never
// retriable by the orchestrator (a failing fetch mid-retry stops the loop
// outright rather than looping, per SPEC_FULL.md §4.6's error table).
func classifyFetchError(remoteURL string, err error) error {
	if err == nil {
		return nil
	}
	if isAuthError(err) {
		return &metiserrors.AuthError{URL: sanitizedURL(remoteURL), Cause: err}
	}
	if isNetworkError(err) {
		return &metiserrors.NetworkError{URL: sanitizedURL(remoteURL), Cause: err}
	}
	return fmt.Errorf("fetch from %s: %w", remoteURL, err)
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, transport.ErrInvalidAuthMethod) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "403")
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "no such host", "timeout", "network is unreachable", "i/o timeout", "dial tcp"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// sanitizedURL masks any embedded userinfo before the URL is attached to an
// error that might reach logs.
func sanitizedURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = url.UserPassword("***", "***")
	return parsed.String()
}

func changePath(c object.Change) string {
	if c.To.Name != "" {
		return c.To.Name
	}
	return c.From.Name
}

func classifyChange(c object.Change) ChangeKind {
	switch {
	case c.From.Name == "" && c.To.Name != "":
		return Added
	case c.From.Name != "" && c.To.Name == "":
		return Deleted
	default:
		return Modified
	}
}
