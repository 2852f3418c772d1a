// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package cmd

import (
	"github.com/metis-project/metis-sync/internal/log"
	"github.com/metis-project/metis-sync/pkg/orchestrator"
)

// loggingProgressSink reports phase/retry events through a log.Logger
// instead of printing directly; OnComplete is left to the calling command,
// which prints its own result summary on stdout.
type loggingProgressSink struct {
	logger log.Logger
}

func (s loggingProgressSink) OnPhase(phase string) {
	s.logger.Debug("phase %s", phase)
}

func (s loggingProgressSink) OnRetry(attempt int, err error) {
	s.logger.Warn("retry %d after push rejection: %v", attempt, err)
}

func (loggingProgressSink) OnComplete(_ orchestrator.Result) {}

// loggerFor returns a verbose stderr logger, or a silent one when
// --verbose was not passed.
func loggerFor(verbose bool) log.Logger {
	if verbose {
		return log.Stderr{Verbose: true}
	}
	return log.Noop{}
}

// progressSinkFor wraps logger as a ProgressSink for the orchestrator.
func progressSinkFor(logger log.Logger) orchestrator.ProgressSink {
	return loggingProgressSink{logger: logger}
}
