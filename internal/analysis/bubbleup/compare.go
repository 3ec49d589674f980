package bubbleup

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"obsnote/domain/comparison"
	"obsnote/domain/sample"
)

// Options tune the comparison pipeline. Zero values select defaults.
type Options struct {
	GroupCount int
	MaxResults int
	// Workers bounds how many fields are scored in parallel
	Workers int
}

func (o Options) withDefaults() Options {
	if o.GroupCount <= 0 {
		o.GroupCount = DefaultGroupCount
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// CompareFields builds, groups and scores the distributions of every
// candidate, then ranks them. The window is only read.
func CompareFields(window sample.ComparisonWindow, candidates []comparison.FieldCandidate, opts Options) []comparison.FieldDifference {
	opts = opts.withDefaults()
	selFlat := FlattenAll(window.Selection.Documents)
	baseFlat := FlattenAll(window.Baseline.Documents)

	diffs := make([]comparison.FieldDifference, len(candidates))
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i, c := range candidates {
		g.Go(func() error {
			sel := buildFromFlat(selFlat, c.Name)
			base := buildFromFlat(baseFlat, c.Name)
			diffs[i] = ScoreField(c.Name, sel, base, opts.GroupCount)
			return nil
		})
	}
	_ = g.Wait()

	RankDifferences(diffs)
	return diffs
}

// Compare runs the whole pure pipeline from samples to summaries
func Compare(window sample.ComparisonWindow, candidates []comparison.FieldCandidate, opts Options) []comparison.ComparisonSummary {
	opts = opts.withDefaults()
	return FormatComparisonSummary(CompareFields(window, candidates, opts), opts.MaxResults)
}
