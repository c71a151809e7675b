package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"promo-pipelines/ledger"
	"promo-pipelines/tasks"
	"promo-pipelines/types"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderReports(w io.Writer, reports []*types.RunReport) {
	for _, r := range reports {
		title := fmt.Sprintf("%s campaigns", r.Kind)
		if r.Resumed {
			title += " (resumed)"
		}
		fmt.Fprintln(w, title)

		t := newTable(w)
		t.AppendHeader(table.Row{"Rows read", "Invalid", "Already processed", "Pending", "Expanded", "Files", "Succeeded", "Failed", "Stamped"})
		t.AppendRow(table.Row{r.RowsRead, r.RowsInvalid, r.RowsProcessed, r.RowsPending, r.RowsExpanded, r.FilesGenerated, r.FilesSucceeded, r.FilesFailed, r.RowsStamped})
		t.Render()

		if len(r.Files) == 0 {
			continue
		}
		ft := newTable(w)
		ft.AppendHeader(table.Row{"File", "Channel", "Rows", "Attempts", "Result"})
		for _, f := range r.Files {
			result := "ok"
			if !f.Success {
				result = "failed: " + f.Error
			}
			ft.AppendRow(table.Row{f.Name, f.Channel, f.Rows, f.Attempts, result})
		}
		ft.Render()
	}
}

func renderPending(w io.Writer, files []ledger.PendingFile) {
	fmt.Fprintf(w, "%d file(s) failed in the previous batch:\n", len(files))
	t := newTable(w)
	t.AppendHeader(table.Row{"File", "Kind", "Attempts", "Last attempt", "Last error"})
	for _, f := range files {
		t.AppendRow(table.Row{f.Name, f.Kind, f.Attempts, f.LastAttempt, f.LastError})
	}
	t.Render()
}

func renderLedger(w io.Writer, path string, doc *ledger.Document) {
	fmt.Fprintf(w, "%s (updated %s)\n", path, doc.LastUpdated)
	names := make([]string, 0, len(doc.Files))
	for name := range doc.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w)
	t.AppendHeader(table.Row{"File", "Kind", "Sheet", "Status", "Attempts", "Last attempt", "Last error"})
	for _, name := range names {
		e := doc.Files[name]
		t.AppendRow(table.Row{name, e.Kind, e.Sheet, e.Status, e.Attempts, e.LastAttempt, e.LastError})
	}
	t.Render()
}

func renderLookup(w io.Writer, result map[int64]map[string]string) {
	ids := make([]int64, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	t := newTable(w)
	t.AppendHeader(table.Row{"Product", "Channel", "Listing"})
	for _, id := range ids {
		channels := result[id]
		if len(channels) == 0 {
			t.AppendRow(table.Row{id, "-", "no channel information"})
			continue
		}
		names := make([]string, 0, len(channels))
		for name := range channels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			t.AppendRow(table.Row{id, name, channels[name]})
		}
	}
	t.Render()
}

func renderSheets(w io.Writer, tabs []tasks.SheetInfo) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Sheet", "GID"})
	for i, s := range tabs {
		t.AppendRow(table.Row{i + 1, s.Title, strconv.FormatInt(s.ID, 10)})
	}
	t.Render()
}

func renderHistory(w io.Writer, runs []tasks.PipelineRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Started", "Pipeline", "Run", "Duration", "Result", "Files", "Error"})
	for _, r := range runs {
		result := "ok"
		if !r.Success {
			result = "failed"
		}
		ok, failed := 0, 0
		for _, f := range r.Files {
			if f.Success {
				ok++
			} else {
				failed++
			}
		}
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		t.AppendRow(table.Row{
			r.StartTime.Local().Format("2006-01-02 15:04"),
			r.Pipeline,
			runID,
			fmt.Sprintf("%.1fs", r.Duration),
			result,
			fmt.Sprintf("%d ok / %d failed", ok, failed),
			strings.TrimSpace(r.Error),
		})
	}
	t.Render()
}
