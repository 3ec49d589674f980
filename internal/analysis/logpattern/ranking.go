// Package logpattern orders the results returned by the log pattern
// backend before they are displayed.
package logpattern

import (
	"math"
	"regexp"
	"sort"

	"obsnote/domain/logpattern"
)

// TopPatternsPerGroup is how many patterns each lift group contributes
const TopPatternsPerGroup = 10

var errorKeywords = regexp.MustCompile(`(?i)\b(error|errors|exception|fail|failed|failure|fatal|panic|timeout|timed out|critical|refused|denied)\b`)

// IsErrorPattern reports whether the pattern text mentions an error keyword
func IsErrorPattern(pattern string) bool {
	return errorKeywords.MatchString(pattern)
}

// sortScore is the selection value used for the without-lift group. Error
// patterns sort as if their selection were 1.
func sortScore(p logpattern.LogPattern) float64 {
	if IsErrorPattern(p.Pattern) {
		return 1
	}
	return p.SelectionValue()
}

// RankPatternDifferences splits patterns by whether they carry a non-zero
// lift. Patterns without lift are ordered by error-boosted selection, the
// rest by |lift| then |selection|. The top TopPatternsPerGroup of each
// group are concatenated, without-lift first. The input is not modified.
func RankPatternDifferences(patterns []logpattern.LogPattern) []logpattern.LogPattern {
	var withLift, withoutLift []logpattern.LogPattern
	for _, p := range patterns {
		if p.HasLift() {
			withLift = append(withLift, p)
		} else {
			withoutLift = append(withoutLift, p)
		}
	}

	sort.SliceStable(withLift, func(i, j int) bool {
		li, lj := math.Abs(*withLift[i].Lift), math.Abs(*withLift[j].Lift)
		if li != lj {
			return li > lj
		}
		return math.Abs(withLift[i].SelectionValue()) > math.Abs(withLift[j].SelectionValue())
	})
	sort.SliceStable(withoutLift, func(i, j int) bool {
		return sortScore(withoutLift[i]) > sortScore(withoutLift[j])
	})

	ranked := make([]logpattern.LogPattern, 0, 2*TopPatternsPerGroup)
	ranked = append(ranked, head(withoutLift, TopPatternsPerGroup)...)
	ranked = append(ranked, head(withLift, TopPatternsPerGroup)...)
	return ranked
}

// SortInsights orders log insights by count descending
func SortInsights(insights []logpattern.LogPattern) []logpattern.LogPattern {
	sorted := append([]logpattern.LogPattern(nil), insights...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	return sorted
}

func head(patterns []logpattern.LogPattern, n int) []logpattern.LogPattern {
	if len(patterns) > n {
		return patterns[:n]
	}
	return patterns
}
