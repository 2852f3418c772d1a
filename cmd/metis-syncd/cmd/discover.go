// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"os"
	"strings"

	"github.com/metis-project/metis-sync/pkg/config"
)

// discoverPrefixes lists every top-level directory under root that looks
// like a workspace prefix: not dot-prefixed, and valid per
// config.IsValidPrefix. Used to scope the post-sync projection rebuild
// without hard-coding which prefixes were hydrated.
func discoverPrefixes(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var prefixes []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || !config.IsValidPrefix(name) {
			continue
		}
		prefixes = append(prefixes, name)
	}
	return prefixes
}
