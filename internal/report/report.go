// Package report renders analysis results as markdown and HTML.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"obsnote/domain/comparison"
	"obsnote/domain/logpattern"
)

// ComparisonMarkdown renders one table per compared field
func ComparisonMarkdown(result *comparison.Result) string {
	var b strings.Builder
	b.WriteString("# Bubble-up comparison\n\n")
	fmt.Fprintf(&b, "Selection documents: %s, baseline documents: %s\n\n",
		humanize.Comma(int64(result.SelectionCount)), humanize.Comma(int64(result.BaselineCount)))

	if result.NoComparable || len(result.Summaries) == 0 {
		b.WriteString("_No comparable fields._\n")
		return b.String()
	}

	for _, s := range result.Summaries {
		fmt.Fprintf(&b, "## %s\n\n", escape(s.Field))
		fmt.Fprintf(&b, "Max difference %.2f, JS divergence %.3f, p-value %.3g\n\n", s.Divergence, s.JSDivergence, s.PValue)
		b.WriteString("| Value | Selection | Baseline | Change |\n")
		b.WriteString("| --- | ---: | ---: | ---: |\n")
		for _, c := range s.Changes {
			fmt.Fprintf(&b, "| %s | %.0f%% | %.0f%% | %s |\n",
				escape(c.Value), c.SelectionPercentage*100, c.BaselinePercentage*100, FormatChange(c.ChangePercentage))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// LogPatternMarkdown renders insights and ranked pattern differences
func LogPatternMarkdown(result *logpattern.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("# Log patterns\n\n")

	if len(result.LogInsights) > 0 {
		b.WriteString("## Insights\n\n| Pattern | Count |\n| --- | ---: |\n")
		for _, p := range result.LogInsights {
			fmt.Fprintf(&b, "| `%s` | %s |\n", escape(p.Pattern), humanize.Comma(int64(p.Count)))
		}
		b.WriteString("\n")
	}

	if len(result.PatternMapDifference) > 0 {
		b.WriteString("## Pattern differences\n\n| Pattern | Selection | Baseline | Lift |\n| --- | ---: | ---: | ---: |\n")
		for _, p := range result.PatternMapDifference {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
				escape(p.Pattern), optional(p.Selection), optional(p.Base), optional(p.Lift))
		}
		b.WriteString("\n")
	}

	for _, step := range result.Steps {
		if step.Status == logpattern.StepFailed {
			fmt.Fprintf(&b, "> **%s failed:** %s\n\n", step.Name, step.Error)
		}
	}
	return b.String()
}

// HTML converts markdown into an HTML fragment
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}

// FormatChange renders a change percentage, "new" for appeared values
func FormatChange(c comparison.ChangePercentage) string {
	v := float64(c)
	switch {
	case math.IsInf(v, 1):
		return "new"
	case math.IsNaN(v) || math.IsInf(v, -1):
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", v)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3g", *v)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
