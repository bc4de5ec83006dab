package cli

// This file contains session recording functionality for saving what a
// session reported to the history directory.

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qasego/qasego/gotest"
	"github.com/qasego/qasego/history"
	"github.com/qasego/qasego/model"
	"github.com/urfave/cli/v2"
)

// newHistory prepares the history of a session started at startTime.
func (a *App) newHistory(ctx context.Context, opts *testOptions) *model.History {
	h := &model.History{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Timestamp: opts.startTime,
		Args:      os.Args,
		WorkDir:   opts.workDir,
		WorkerID:  opts.workerID,
	}

	if rel, err := filepath.Rel(opts.repoRoot, opts.workDir); err == nil {
		h.WorkDir = rel
	}

	// Capture git info (non-fatal if it fails)
	if info, err := a.getGitInfo(ctx, opts.workDir); err == nil {
		h.Git = info
	} else {
		a.logger.Debug().Err(err).Msg("Git information unavailable")
	}
	return h
}

// recordHistory finishes h with the outcome of the session and writes it.
func (a *App) recordHistory(h *model.History, opts *testOptions, sessionErr error) {
	h.Duration = time.Since(opts.startTime)
	h.ExitCode = exitCode(sessionErr)

	runDir, err := history.Record(history.Root(opts.repoRoot), h)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record history")
		return
	}
	a.logger.Debug().Str("dir", runDir).Str("id", h.ID).Msg("Recorded session")
}

// exitCode returns the process exit code err leads to.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return gotest.ExitCode(err)
}
