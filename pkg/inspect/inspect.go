// Package inspect renders materialized launches for the command line.
package inspect

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethpandaops/reportoor/pkg/hierarchy"
	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/store"
)

// FormatLaunch renders launch and its items as a tree table. Items must be
// ordered by id, which is hierarchy order since children are allocated after
// their parents.
func FormatLaunch(launch *store.Launch, items []store.TestItem) string {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(fmt.Sprintf("Launch %d: %s (%s)", launch.ID, launch.Name, launch.Status))

	t.AppendHeader(table.Row{"ID", "NAME", "TYPE", "STATUS", "DURATION", "TOTAL", "PASSED", "FAILED", "SKIPPED", "INTERRUPTED"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ID", Align: text.AlignRight},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "TOTAL", Align: text.AlignRight},
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "SKIPPED", Align: text.AlignRight},
		{Name: "INTERRUPTED", Align: text.AlignRight},
	})

	for _, item := range ordered(items) {
		depth := hierarchy.Depth(item.Path)
		if depth > 0 {
			depth--
		}

		t.AppendRow(table.Row{
			item.ID,
			strings.Repeat("  ", depth) + item.Name,
			item.Type,
			item.Status,
			formatDuration(item.StartTime, item.EndTime),
			item.Statistics.Total,
			item.Statistics.Passed,
			item.Statistics.Failed,
			item.Statistics.Skipped,
			item.Statistics.Interrupted,
		})
	}

	switch launch.Status {
	case reporting.StatusFailed, reporting.StatusInterrupted:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case reporting.StatusPassed:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleDefault)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		"",
		launch.Status,
		formatDuration(launch.StartTime, launch.EndTime),
		launch.Statistics.Total,
		launch.Statistics.Passed,
		launch.Statistics.Failed,
		launch.Statistics.Skipped,
		launch.Statistics.Interrupted,
	})

	t.Render()

	return buf.String()
}

// ordered returns items in depth-first order: each item directly followed by
// its descendants.
func ordered(items []store.TestItem) []store.TestItem {
	children := make(map[int64][]store.TestItem, len(items))
	known := make(map[int64]struct{}, len(items))

	for _, item := range items {
		known[item.ID] = struct{}{}
	}

	roots := make([]store.TestItem, 0, len(items))

	for _, item := range items {
		if item.ParentID == nil {
			roots = append(roots, item)

			continue
		}

		if _, ok := known[*item.ParentID]; !ok {
			roots = append(roots, item)

			continue
		}

		children[*item.ParentID] = append(children[*item.ParentID], item)
	}

	out := make([]store.TestItem, 0, len(items))

	var walk func(list []store.TestItem)
	walk = func(list []store.TestItem) {
		for _, item := range list {
			out = append(out, item)
			walk(children[item.ID])
		}
	}

	walk(roots)

	return out
}

func formatDuration(start time.Time, end *time.Time) string {
	if end == nil {
		return "-"
	}

	d := end.Sub(start)
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return d.Truncate(time.Millisecond).String()
}
