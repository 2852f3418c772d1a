// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// relPath is where a workspace's config lives, relative to its root.
const relPath = ".metis/config.yaml"

// Store loads and saves a single workspace's config.yaml.
type Store struct {
	// root is the workspace root directory (the directory containing .metis/).
	root      string
	validator *Validator
}

// NewStore creates a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root, validator: NewValidator()}
}

// Path returns the absolute path to the config file.
func (s *Store) Path() string {
	return filepath.Join(s.root, relPath)
}

// Load reads, validates, and expands the workspace config. A missing file
// is reported as os.ErrNotExist via errors.Is, so callers can distinguish
// "not initialized yet" from a genuine read failure.
func (s *Store) Load() (WorkspaceConfig, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return WorkspaceConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg WorkspaceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return WorkspaceConfig{}, fmt.Errorf("parse config: %w", err)
	}

	if err := s.validator.Validate(&cfg); err != nil {
		return WorkspaceConfig{}, err
	}
	s.validator.ExpandEnvVarsInConfig(&cfg)

	return cfg, nil
}

// Save validates cfg and writes it atomically: marshal, write to a temp
// file in the same directory, then rename over the target. A crash between
// the write and the rename leaves the previous config.yaml intact.
func (s *Store) Save(cfg WorkspaceConfig) error {
	if err := s.validator.Validate(&cfg); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp config: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}

	return nil
}

// UpdateLastSyncedCommit loads the current config, sets
// sync.last_synced_commit, and saves it back atomically. Used by the
// orchestrator after every successful push.
func (s *Store) UpdateLastSyncedCommit(commit string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	cfg.Sync.LastSyncedCommit = commit
	return s.Save(cfg)
}
