// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package config loads and validates the per-workspace configuration file
// that tells the sync engine which prefix a workspace owns, where the
// central upstream lives, and where the last successful sync left off.
//
// # File Location
//
// Every workspace carries exactly one config file, at a fixed path relative
// to its root:
//
//	<metis_root>/.metis/config.yaml
//
// There is no profile layer and no precedence chain: one file, one
// workspace. Multi-workspace coordination happens through the shared
// central repository, not through local config inheritance.
//
// # Example
//
//	workspace:
//	  prefix: api
//	  team: platform
//	sync:
//	  upstream_url: git@github.com:acme/metis-central.git
//	  last_synced_commit: ""
//
// # Environment Variables
//
// sync.upstream_url supports ${VAR_NAME} expansion. A reference to an unset
// variable is expanded to the empty string and produces a warning; it is
// never treated as a fatal error, since a missing token should surface at
// the auth step with a precise error rather than block config load.
//
// # Security
//
// Config directories are created with 0700 permissions and the config file
// itself with 0600, since upstream_url may embed credentials. Writes go
// through a temp-file-plus-rename sequence so a crash mid-write never
// leaves a half-written config.yaml behind.
package config
