// Package charts turns comparison summaries into chart specifications for
// an external renderer.
package charts

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"obsnote/domain/comparison"
)

const (
	selectionSeries = "Selection"
	baselineSeries  = "Baseline"
)

// BuildComparisonCharts returns one chart specification per summary in
// the same order. Each spec is the option object of a grouped bar chart
// comparing value shares in the selection and baseline windows.
func BuildComparisonCharts(summaries []comparison.ComparisonSummary) ([]json.RawMessage, error) {
	specs := make([]json.RawMessage, 0, len(summaries))
	for _, s := range summaries {
		bar := comparisonBar(s)
		bar.Validate()
		spec, err := json.Marshal(bar.JSON())
		if err != nil {
			return nil, fmt.Errorf("failed to encode chart for %s: %w", s.Field, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// RenderPage writes a standalone HTML page with one chart per summary
func RenderPage(w io.Writer, title string, summaries []comparison.ComparisonSummary) error {
	page := components.NewPage()
	page.PageTitle = title
	for _, s := range summaries {
		page.AddCharts(comparisonBar(s))
	}
	return page.Render(w)
}

func comparisonBar(s comparison.ComparisonSummary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    s.Field,
			Subtitle: fmt.Sprintf("max difference %.2f, JS divergence %.3f", s.Divergence, s.JSDivergence),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "% of window"}),
	)

	labels := make([]string, len(s.Changes))
	selection := make([]opts.BarData, len(s.Changes))
	baseline := make([]opts.BarData, len(s.Changes))
	for i, c := range s.Changes {
		labels[i] = c.Value
		selection[i] = opts.BarData{Value: c.SelectionPercentage * 100}
		baseline[i] = opts.BarData{Value: c.BaselinePercentage * 100}
	}

	bar.SetXAxis(labels).
		AddSeries(selectionSeries, selection).
		AddSeries(baselineSeries, baseline)
	return bar
}
