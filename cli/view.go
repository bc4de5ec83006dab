package cli

// This file contains the view command for displaying the results of a
// previous session.

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/qasego/qasego/history"
	"github.com/urfave/cli/v2"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

// parseViewArgs returns the ID or index to view, "0" when none is given.
func parseViewArgs(in []string) string {
	in = removeFirstDashDash(in)
	if len(in) == 0 {
		return "0"
	}
	return in[0]
}

func (a *App) view(ctx *cli.Context) error {
	arg := parseViewArgs(ctx.Args().Slice())

	historyEntries, err := a.historyEntries(ctx)
	if err != nil {
		return err
	}

	entry, err := history.Find(historyEntries, arg)
	if err != nil {
		return err
	}
	a.displayHistoryEntry(entry)
	return nil
}

func (a *App) displayHistoryEntry(entry *history.Entry) {
	h := entry.History

	// Print header
	fmt.Fprintf(a.stdout, "=== Session: %s ===\n", short(h.ID))
	fmt.Fprintf(a.stdout, "Time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.stdout, "Duration: %s\n", h.Duration)
	fmt.Fprintf(a.stdout, "Exit Code: %d\n", h.ExitCode)
	if h.WorkDir != "" {
		fmt.Fprintf(a.stdout, "Working Dir: %s\n", h.WorkDir)
	}
	if h.Git != nil && h.Git.Commit != "" {
		fmt.Fprintf(a.stdout, "Git Commit: %s", short(h.Git.Commit))
		if h.Git.Branch != "" {
			fmt.Fprintf(a.stdout, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(a.stdout)
	}
	if h.Run == nil {
		fmt.Fprintln(a.stdout, "\nNothing was reported to Qase")
		fmt.Fprintf(a.stdout, "History directory: %s\n", entry.FullPath)
		return
	}
	fmt.Fprintf(a.stdout, "Qase Run: %d %s (%s)\n\n", h.Run.ID, h.Run.Title, h.Run.Outcome)

	t := table.NewWriter()
	t.SetOutputMirror(a.stdout)
	t.SetStyle(table.StyleLight)
	renderResults(t, h.Results)
	t.Render()
}
