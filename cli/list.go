package cli

// This file contains the list command for displaying previous sessions.

import (
	"fmt"
	"strings"
	"time"

	"github.com/qasego/qasego/history"
	"github.com/qasego/qasego/model"
	"github.com/urfave/cli/v2"
)

func (a *App) historyEntries(ctx *cli.Context) ([]history.Entry, error) {
	repoRoot, err := a.getRepoRoot(ctx.Context, ".")
	if err != nil {
		return nil, err
	}
	root, err := history.ExistingRoot(repoRoot)
	if err != nil {
		return nil, err
	}

	entries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

func (a *App) list(ctx *cli.Context) error {
	filterPath := ctx.String("path")
	limit := ctx.Int("limit")

	historyEntries, err := a.historyEntries(ctx)
	if err != nil {
		return err
	}

	// Apply path filter if specified
	var filteredEntries []history.Entry
	for _, entry := range historyEntries {
		if filterPath == "" || strings.Contains(entry.History.WorkDir, filterPath) {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	if len(filteredEntries) == 0 {
		if filterPath != "" {
			fmt.Fprintf(a.stdout, "No history entries found matching path: %s\n", filterPath)
		} else {
			fmt.Fprintln(a.stdout, "No history entries found")
		}
		return nil
	}

	// Apply limit
	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(a.stdout, "\n=== History (%d total) ===\n\n", len(filteredEntries))
	for _, entry := range displayRuns {
		a.printEntry(entry)
	}

	fmt.Fprintf(a.stdout, "\nView results: %s view <ID>\n", AppName)
	return nil
}

func (a *App) printEntry(entry history.Entry) {
	h := entry.History
	timestamp := h.Timestamp.Format("2006-01-02 15:04:05")

	// Determine status indicator
	status := "✓"
	if h.ExitCode != 0 {
		status = "✗"
	}

	fmt.Fprintf(a.stdout, "%s  %s  [%s]  exit=%d  id=%s\n", status, timestamp, h.Duration.Round(time.Millisecond), h.ExitCode, short(h.ID))

	// Format args (skip the program name)
	if len(h.Args) > 1 {
		fmt.Fprintf(a.stdout, "   Args: %s\n", strings.Join(h.Args[1:], " "))
	}
	if h.WorkDir != "" {
		fmt.Fprintf(a.stdout, "   Path: %s\n", h.WorkDir)
	}
	if h.WorkerID != "" {
		fmt.Fprintf(a.stdout, "   Worker: %s\n", h.WorkerID)
	}
	if h.Git != nil && h.Git.Commit != "" {
		fmt.Fprintf(a.stdout, "   Commit: %s", short(h.Git.Commit))
		if h.Git.Branch != "" {
			fmt.Fprintf(a.stdout, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(a.stdout)
	}
	if h.Run != nil {
		reported, dropped := countResults(h.Results)
		fmt.Fprintf(a.stdout, "   Run: %d %q (%s), %d reported, %d dropped\n", h.Run.ID, h.Run.Title, h.Run.Outcome, reported, dropped)
	}
	fmt.Fprintf(a.stdout, "   %s\n\n", entry.FullPath)
}

func countResults(results []model.HistoryResult) (reported, dropped int) {
	for _, r := range results {
		if r.Error != "" {
			dropped++
		} else {
			reported++
		}
	}
	return reported, dropped
}

func short(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
