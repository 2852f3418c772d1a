// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package errors defines the sync engine's error taxonomy: a closed set of
// sentinels and typed wrappers that let callers distinguish retriable
// failures from user-actionable ones from programmer bugs, without string
// matching on error messages.
package errors

import (
	"errors"
	"strconv"
)

// Generic sentinels, used across packages for simple not-found/conflict cases.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Engine taxonomy sentinels (see SPEC_FULL.md §6).
var (
	// ErrNoUpstreamConfigured means sync was invoked in single-workspace mode.
	ErrNoUpstreamConfigured = errors.New("no upstream configured")

	// ErrInvalidConfig means a config value failed validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrAuthFailed means the credential chain was exhausted without success.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNetworkUnreachable means the remote could not be reached.
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrPushRejected means the remote rejected the push for a retriable
	// reason (non-fast-forward, lock contention, concurrent writer race).
	// Internal only — the orchestrator catches this and loops; it must
	// never escape to a caller.
	ErrPushRejected = errors.New("push rejected")

	// ErrRetriesExhausted means the retry budget was spent without a
	// successful push.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrDivergedHistory means the previously recorded commit is no longer
	// reachable from the remote's history (force-push/rewrite).
	ErrDivergedHistory = errors.New("diverged history")

	// ErrWriteScopeViolation means code attempted to write outside the
	// workspace's owned prefix. Always a programmer error.
	ErrWriteScopeViolation = errors.New("write scope violation")
)

// Wrap associates err with target so that errors.Is(result, target) holds.
// A nil err yields target unchanged (useful for constructing a sentinel-typed
// error from scratch); a nil target returns err unchanged.
func Wrap(err, target error) error {
	if err == nil {
		return target
	}
	if target == nil {
		return err
	}
	return &wrappedError{msg: err.Error(), cause: err, target: target}
}

// WrapWithMessage annotates err with a message, preserving errors.Is/As
// against err. A nil err returns nil.
func WrapWithMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: message + ": " + err.Error(), cause: err}
}

// Is reports whether err matches target, per errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

type wrappedError struct {
	msg    string
	cause  error
	target error
}

func (e *wrappedError) Error() string { return e.msg }

func (e *wrappedError) Unwrap() error { return e.cause }

// Is lets errors.Is match either the wrapped cause or the declared target,
// so Wrap(err, ErrPushRejected) satisfies errors.Is(result, ErrPushRejected)
// even though target is not in the Unwrap chain by default.
func (e *wrappedError) Is(target error) bool {
	return e.target != nil && errors.Is(e.target, target)
}

// AuthError is a user-actionable failure: the credential chain for url was
// exhausted without a usable method succeeding.
type AuthError struct {
	URL   string
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return "auth error for " + e.URL + ": " + e.Cause.Error()
	}
	return "auth error for " + e.URL
}

func (e *AuthError) Unwrap() error { return ErrAuthFailed }

// NetworkError is a user-actionable failure: url could not be reached.
type NetworkError struct {
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return "network error for " + e.URL + ": " + e.Cause.Error()
	}
	return "network error for " + e.URL
}

func (e *NetworkError) Unwrap() error { return ErrNetworkUnreachable }

// RetriesExhaustedError reports the retry budget spent on push contention.
type RetriesExhaustedError struct {
	Retries int
	Last    error
}

func (e *RetriesExhaustedError) Error() string {
	return "retries exhausted after " + strconv.Itoa(e.Retries) + " retry(ies)"
}

func (e *RetriesExhaustedError) Unwrap() error { return ErrRetriesExhausted }

// WriteScopeViolationError reports an attempted write outside an owned prefix.
type WriteScopeViolationError struct {
	Path  string
	Scope string
}

func (e *WriteScopeViolationError) Error() string {
	return "write scope violation: path " + e.Path + " is outside owned prefix " + e.Scope
}

func (e *WriteScopeViolationError) Unwrap() error { return ErrWriteScopeViolation }

// InvalidConfigError reports a config validation failure on a specific field.
type InvalidConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return "invalid config: " + e.Field + "=" + e.Value + ": " + e.Reason
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DivergedHistoryError reports that a previously synced commit is no longer
// reachable from the remote.
type DivergedHistoryError struct {
	PreviousCommit string
}

func (e *DivergedHistoryError) Error() string {
	return "diverged history: commit " + e.PreviousCommit + " no longer reachable from remote"
}

func (e *DivergedHistoryError) Unwrap() error { return ErrDivergedHistory }
