package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"adinsights/internal/domain"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderReport writes the per-account outcome table followed by the run
// totals.
func RenderReport(w io.Writer, report *domain.SyncReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Sync %s  %s .. %s", report.RunID, report.Window.From, report.Window.To))

	t.AppendHeader(table.Row{"Account", "Status", "Level", "Entities", "Fetched", "Stored", "Dropped", "Backfilled", "Warnings", "Duration", "Errors"})
	for _, res := range report.Accounts {
		t.AppendRow(table.Row{
			res.AccountID,
			res.Status,
			res.Level,
			res.EntitiesProcessed,
			res.RecordsFetched,
			res.RecordsProcessed,
			dropSummary(res),
			res.RecordsBackfilled,
			len(res.Warnings),
			res.Duration.Round(time.Millisecond),
			strings.Join(res.Errors, "; "),
		})
	}

	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d ok / %d failed / %d skipped", report.Succeeded, report.Failed, report.Skipped),
		"",
		report.EntitiesProcessed,
		"",
		report.RecordsProcessed,
		report.RecordsDropped,
		"",
		"",
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
		report.Errors,
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
		{Number: 11, WidthMax: 60},
	})
	t.Render()

	if report.Cancelled {
		fmt.Fprintf(w, "Run cancelled, %d account(s) skipped\n", report.Skipped)
	}
}

// dropSummary renders the drop count with its reasons, e.g. "2 (missing_identity=2)".
func dropSummary(res domain.AccountResult) string {
	if res.RecordsDropped == 0 {
		return "0"
	}
	reasons := make([]string, 0, len(res.DropReasons))
	for reason, n := range res.DropReasons {
		reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(reasons)
	return fmt.Sprintf("%d (%s)", res.RecordsDropped, strings.Join(reasons, ", "))
}
