package bubbleup

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"obsnote/domain/comparison"
)

const (
	// DefaultMaxResults bounds the number of summarized fields
	DefaultMaxResults = 30
	// MaxValueChanges bounds the value rows kept per field
	MaxValueChanges = 30

	percentagePlaces = 2
)

// FormatComparisonSummary turns the top maxResults ranked differences into
// per-value percentage changes. maxResults <= 0 selects DefaultMaxResults.
func FormatComparisonSummary(diffs []comparison.FieldDifference, maxResults int) []comparison.ComparisonSummary {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if len(diffs) > maxResults {
		diffs = diffs[:maxResults]
	}

	summaries := make([]comparison.ComparisonSummary, 0, len(diffs))
	for _, d := range diffs {
		summaries = append(summaries, comparison.ComparisonSummary{
			Field:        d.Field,
			Divergence:   d.Divergence,
			JSDivergence: d.JSDivergence,
			PValue:       d.PValue,
			Changes:      valueChanges(d.SelectionDist, d.BaselineDist),
		})
	}
	return summaries
}

func valueChanges(sel, base comparison.Distribution) []comparison.ValueChange {
	selTotal := safeTotal(sel)
	baseTotal := safeTotal(base)

	keys := unionKeys(sel, base)
	changes := make([]comparison.ValueChange, 0, len(keys))
	for _, k := range keys {
		s := roundPercentage(float64(sel[k]) / selTotal)
		b := roundPercentage(float64(base[k]) / baseTotal)
		changes = append(changes, comparison.ValueChange{
			Value:               k,
			SelectionPercentage: s,
			BaselinePercentage:  b,
			ChangePercentage:    ChangeBetween(s, b),
		})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		a, c := changes[i], changes[j]
		if a.BaselinePercentage != c.BaselinePercentage {
			return a.BaselinePercentage > c.BaselinePercentage
		}
		if a.SelectionPercentage != c.SelectionPercentage {
			return a.SelectionPercentage > c.SelectionPercentage
		}
		return a.Value < c.Value
	})

	if len(changes) > MaxValueChanges {
		changes = changes[:MaxValueChanges]
	}
	return changes
}

// ChangeBetween is the relative change from baseline b to selection s in
// percent: +Inf when the value only appears in the selection, 0 when it
// appears in neither.
func ChangeBetween(s, b float64) comparison.ChangePercentage {
	if b == 0 {
		if s > 0 {
			return comparison.ChangePercentage(math.Inf(1))
		}
		return 0
	}
	return comparison.ChangePercentage((s - b) / b * 100)
}

func roundPercentage(v float64) float64 {
	r, err := stats.Round(v, percentagePlaces)
	if err != nil {
		return 0
	}
	return r
}
