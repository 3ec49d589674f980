package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"obsnote/adapters/excel"
	"obsnote/domain/comparison"
	"obsnote/internal/report"
	"obsnote/ports"
)

// Output formats
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatXLSX  = "xlsx"
)

var (
	fieldHeader = color.New(color.Bold, color.FgCyan)
	increase    = color.New(color.FgRed)
	decrease    = color.New(color.FgGreen)
)

func writeComparison(w io.Writer, format string, result *comparison.Result) error {
	switch format {
	case formatTable:
		return comparisonTables(w, result)
	case formatJSON:
		return writeJSON(w, result)
	case formatYAML:
		return yaml.NewEncoder(w).Encode(result)
	case formatXLSX:
		return excel.WriteComparison(w, result)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func comparisonTables(w io.Writer, result *comparison.Result) error {
	fmt.Fprintf(w, "Selection documents: %s  Baseline documents: %s\n\n",
		humanize.Comma(int64(result.SelectionCount)), humanize.Comma(int64(result.BaselineCount)))

	if result.NoComparable || len(result.Summaries) == 0 {
		_, err := fmt.Fprintln(w, "No comparable fields.")
		return err
	}

	for _, s := range result.Summaries {
		fmt.Fprintf(w, "%s  max difference %.2f  JS divergence %.3f  p-value %.3g\n",
			fieldHeader.Sprint(s.Field), s.Divergence, s.JSDivergence, s.PValue)

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Value", "Selection", "Baseline", "Change"})
		for _, c := range s.Changes {
			t.AppendRow(table.Row{
				c.Value,
				fmt.Sprintf("%.0f%%", c.SelectionPercentage*100),
				fmt.Sprintf("%.0f%%", c.BaselinePercentage*100),
				colorChange(c.ChangePercentage),
			})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
		})
		t.SetStyle(table.StyleLight)
		t.Render()
		fmt.Fprintln(w)
	}
	return nil
}

func colorChange(c comparison.ChangePercentage) string {
	formatted := report.FormatChange(c)
	switch {
	case float64(c) > 0:
		return increase.Sprint(formatted)
	case float64(c) < 0:
		return decrease.Sprint(formatted)
	}
	return formatted
}

func traceTable(w io.Writer, traces []ports.AgentTrace, finished bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Origin", "Input", "Response", "Created"})
	for i, tr := range traces {
		t.AppendRow(table.Row{i + 1, tr.Origin, text.Trim(tr.Input, 60), text.Trim(tr.Response, 60), humanize.Time(tr.CreatedAt)})
	}
	status := "running"
	if finished {
		status = "finished"
	}
	t.AppendFooter(table.Row{"", "", "", "", status})
	t.SetStyle(table.StyleLight)
	t.Render()
}
