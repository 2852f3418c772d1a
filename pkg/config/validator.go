// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	metiserrors "github.com/metis-project/metis-sync/internal/errors"
	"github.com/metis-project/metis-sync/internal/log"
)

var (
	// envVarPattern matches ${VAR_NAME} syntax.
	envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

	// validPrefix matches workspace prefixes: lowercase letters/digits/hyphen,
	// 2-20 chars, must start with a letter.
	validPrefix = regexp.MustCompile(`^[a-z][a-z0-9-]{1,19}$`)

	// validSHA matches a full 40-character hex commit hash.
	validSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// Validator validates a WorkspaceConfig and expands its environment
// variable references.
type Validator struct {
	// ExpandEnvVars enables environment variable expansion.
	ExpandEnvVars bool

	// Logger receives a warning for every unresolved ${VAR_NAME} reference.
	Logger log.Logger
}

// NewValidator creates a Validator with default settings.
func NewValidator() *Validator {
	return &Validator{ExpandEnvVars: true, Logger: log.Stderr{}}
}

// Validate checks a WorkspaceConfig against the schema rules in
// SPEC_FULL.md §4.1. It does not mutate c; call ExpandEnvVarsInConfig
// separately once validation has passed.
func (v *Validator) Validate(c *WorkspaceConfig) error {
	if c == nil {
		return metiserrors.WrapWithMessage(fmt.Errorf("config is nil"), "validate")
	}

	if c.Workspace.Prefix == "" && c.Sync.UpstreamURL != "" {
		return &metiserrors.InvalidConfigError{Field: "workspace.prefix", Value: "", Reason: "required once sync.upstream_url is set"}
	}
	if c.Workspace.Prefix != "" && !validPrefix.MatchString(c.Workspace.Prefix) {
		return &metiserrors.InvalidConfigError{
			Field: "workspace.prefix", Value: c.Workspace.Prefix,
			Reason: "must be lowercase letters/digits/hyphen, 2-20 chars, starting with a letter",
		}
	}

	// An empty upstream_url is a legal state: the workspace is running in
	// single-workspace mode and the orchestrator is a no-op (Result.NoUpstream).
	if c.Sync.UpstreamURL != "" && !isValidUpstreamURL(c.Sync.UpstreamURL) {
		return &metiserrors.InvalidConfigError{
			Field: "sync.upstream_url", Value: c.Sync.UpstreamURL,
			Reason: "must be a ssh (git@host:path), https://, or file:// URL",
		}
	}

	if c.Sync.LastSyncedCommit != "" && !validSHA.MatchString(c.Sync.LastSyncedCommit) {
		return &metiserrors.InvalidConfigError{
			Field: "sync.last_synced_commit", Value: c.Sync.LastSyncedCommit,
			Reason: "must be a 40-character hex commit hash",
		}
	}

	return nil
}

// isValidUpstreamURL reports whether url looks like one of the three clone
// URL shapes the sync engine accepts.
func isValidUpstreamURL(url string) bool {
	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "file://") {
		return true
	}
	// scp-like ssh shorthand, e.g. git@github.com:acme/metis-central.git
	if strings.Contains(url, "@") && strings.Contains(url, ":") {
		return true
	}
	if strings.HasPrefix(url, "ssh://") {
		return true
	}
	return false
}

// ExpandEnvVarsInConfig expands ${VAR_NAME} references in c's fields that
// may legitimately hold secrets. Missing variables expand to "" and produce
// a warning through Logger; they never fail the load.
func (v *Validator) ExpandEnvVarsInConfig(c *WorkspaceConfig) {
	if !v.ExpandEnvVars || c == nil {
		return
	}
	c.Sync.UpstreamURL = v.expandString(c.Sync.UpstreamURL)
}

// expandString replaces every ${VAR_NAME} occurrence in s with the named
// environment variable's value.
func (v *Validator) expandString(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		value := os.Getenv(varName)
		if value == "" {
			v.logger().Warn("environment variable %s is not set", varName)
		}
		return value
	})
}

// logger returns v.Logger, falling back to a stderr logger for a Validator
// constructed without NewValidator (e.g. a zero-value struct literal).
func (v *Validator) logger() log.Logger {
	if v.Logger == nil {
		return log.Stderr{}
	}
	return v.Logger
}

// IsValidPrefix reports whether name is a legal workspace prefix.
func IsValidPrefix(name string) bool {
	return validPrefix.MatchString(name)
}

// SanitizeURL masks embedded credentials in a clone URL for safe logging.
func SanitizeURL(s string) string {
	return regexp.MustCompile(`://[^:/@]+:[^@]+@`).ReplaceAllString(s, "://***:***@")
}
