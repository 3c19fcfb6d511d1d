package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tbreport/report"
	"tbreport/scenario"
	"tbreport/selector"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func statusText(status string) string {
	switch status {
	case scenario.StatusPassed:
		return text.FgGreen.Sprint(status)
	case scenario.StatusFailed:
		return text.FgRed.Sprint(status)
	}
	return status
}

// renderResult prints the steps and selections of a run.
func renderResult(w io.Writer, res scenario.Result) {
	steps := newTable(w, "Run "+res.RunID)
	steps.AppendHeader(table.Row{"#", "Step", "Status", "Duration", "Error"})
	for i, s := range res.Steps {
		steps.AppendRow(table.Row{i + 1, s.Name, statusText(s.Status), s.Duration.Round(time.Millisecond), s.Error})
	}
	steps.AppendFooter(table.Row{"", "", statusText(res.Status), res.Duration().Round(time.Millisecond), ""})
	steps.Render()

	if len(res.Outcomes) > 0 {
		renderOutcomes(w, res.Outcomes)
	}
	if res.Verification != nil {
		renderVerification(w, *res.Verification)
	}
	if res.Screenshot != "" {
		fmt.Fprintf(w, "screenshot: %s\n", res.Screenshot)
	}
}

func renderOutcomes(w io.Writer, outs []selector.SelectionOutcome) {
	t := newTable(w, "Selections")
	t.AppendHeader(table.Row{"Field", "Requested", "Selected", "Match", "Interaction", "Options"})
	for _, o := range outs {
		t.AppendRow(table.Row{o.Field, o.Requested, o.Selected, o.Kind.String(), o.Interaction, o.Candidates})
	}
	t.Render()
}

func renderVerification(w io.Writer, v report.Verification) {
	t := newTable(w, "Report verification")
	t.AppendHeader(table.Row{"Criterion", "Column"})
	keys := make([]string, 0, len(v.Columns))
	for k := range v.Columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{k, v.Columns[k]})
	}
	for _, k := range v.Ignored {
		t.AppendRow(table.Row{k, "ignored"})
	}
	result := text.FgRed.Sprint("no match")
	if v.Matched {
		result = text.FgGreen.Sprintf("match (rows %v)", v.MatchingRows)
	}
	t.AppendFooter(table.Row{"result", result})
	t.Render()
	if v.Malformed > 0 {
		fmt.Fprintf(w, "%d malformed rows skipped\n", v.Malformed)
	}
}

func renderFields(w io.Writer, fields []selector.FieldDescriptor) {
	t := newTable(w, "Fields")
	t.AppendHeader(table.Row{"Field", "#", "Locator", "Special"})
	for _, f := range fields {
		for i, loc := range f.Strategies {
			name, special := f.Name, string(f.Special)
			if i > 0 {
				name, special = "", ""
			}
			t.AppendRow(table.Row{name, i + 1, loc.String(), special})
		}
		t.AppendSeparator()
	}
	t.Render()
}

func renderRuns(w io.Writer, runs []scenario.Result) {
	t := newTable(w, "Recent runs")
	t.AppendHeader(table.Row{"Run", "Started", "Status", "Duration", "Failed step"})
	for _, r := range runs {
		failed := ""
		for _, s := range r.Steps {
			if s.Status == scenario.StatusFailed {
				failed = s.Name
			}
		}
		t.AppendRow(table.Row{r.RunID, r.StartedAt.Format(time.RFC3339), statusText(r.Status), r.Duration().Round(time.Second), failed})
	}
	t.Render()
}

func renderGrid(w io.Writer, g report.Grid) {
	t := newTable(w, "Report grid")
	header := make(table.Row, len(g.Headers))
	for i, h := range g.Headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, r := range g.Rows {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.Render()
}

// parseCriteria reads key=value pairs.
func parseCriteria(pairs []string) (report.FilterCriteria, error) {
	c := report.FilterCriteria{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("criterion %q must be key=value", p)
		}
		c[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return c, nil
}
