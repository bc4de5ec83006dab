package cli

// This file contains Git integration utilities for retrieving
// repository information.

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/qasego/qasego/model"
)

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// getRepoRoot returns the top level directory of the repository holding dir.
func (a *App) getRepoRoot(ctx context.Context, dir string) (string, error) {
	root, err := git(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not in a git repository: %w", err)
	}
	return root, nil
}

func (a *App) getGitInfo(ctx context.Context, dir string) (*model.Git, error) {
	// Get current commit hash
	commit, err := git(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git commit: %w", err)
	}

	// Get current branch
	branch, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get git branch: %w", err)
	}

	info := &model.Git{Commit: commit, Branch: branch}
	if root, err := a.getRepoRoot(ctx, dir); err == nil {
		info.Repo = filepath.Base(root)
	}
	return info, nil
}
