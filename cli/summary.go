package cli

// This file contains the summary printed at the end of a session.

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/qasego/qasego/model"
	"github.com/qasego/qasego/plugin"
)

func (a *App) printSummary(s plugin.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(a.stdout)
	if s.Run != nil {
		t.SetTitle(fmt.Sprintf("Qase run %d: %s (%s)", s.Run.ID, s.Run.Title, s.Outcome))
	}
	renderResults(t, s.Results)

	if s.Dropped > 0 {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		fmt.Sprintf("%d reported", s.Reported),
		fmt.Sprintf("%d suppressed", s.Suppressed),
		fmt.Sprintf("%d dropped", s.Dropped),
	})
	t.Render()
}

// renderResults appends one row per result to t.
func renderResults(t table.Writer, results []model.HistoryResult) {
	t.AppendHeader(table.Row{"Test", "Case", "Status", "Phase", "Result"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Case", Align: text.AlignRight},
		{Name: "Result", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, r := range results {
		result := r.Hash
		if r.Error != "" {
			result = "not reported: " + r.Error
		}
		t.AppendRow(table.Row{r.NodeID, r.CaseID, r.Status, r.Phase, result})
	}
}
