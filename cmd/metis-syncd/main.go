// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Command metis-syncd is a thin harness wiring pkg/config and
// pkg/orchestrator into a CLI. It holds no sync logic of its own.
package main

import (
	metissync "github.com/metis-project/metis-sync"
	"github.com/metis-project/metis-sync/cmd/metis-syncd/cmd"
)

func main() {
	cmd.Execute(metissync.Version)
}
