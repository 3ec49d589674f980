package bubbleup

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"obsnote/domain/comparison"
)

// ProbabilityPair holds aligned per-key probabilities of two distributions
type ProbabilityPair struct {
	Keys      []string
	Selection []float64
	Baseline  []float64
}

// Probabilities aligns both distributions over the sorted union of their
// keys. Each side is divided by its own total, or by 1 when the total is 0.
func Probabilities(sel, base comparison.Distribution) ProbabilityPair {
	keys := unionKeys(sel, base)
	pair := ProbabilityPair{
		Keys:      keys,
		Selection: make([]float64, len(keys)),
		Baseline:  make([]float64, len(keys)),
	}

	selTotal := safeTotal(sel)
	baseTotal := safeTotal(base)
	for i, k := range keys {
		pair.Selection[i] = float64(sel[k]) / selTotal
		pair.Baseline[i] = float64(base[k]) / baseTotal
	}
	return pair
}

func safeTotal(d comparison.Distribution) float64 {
	t := d.Total()
	if t == 0 {
		return 1
	}
	return float64(t)
}

// MaxDifference is the largest signed increase p-q over all keys, 0 when
// there are no keys. Decreases never raise the score.
func MaxDifference(p ProbabilityPair) float64 {
	if len(p.Keys) == 0 {
		return 0
	}
	diff := make([]float64, len(p.Keys))
	floats.SubTo(diff, p.Selection, p.Baseline)
	return floats.Max(diff)
}

// JSDivergence is the Jensen-Shannon divergence in bits. Terms where either
// side is zero are skipped. The result is never negative.
func JSDivergence(p ProbabilityPair) float64 {
	terms := make([]float64, 0, len(p.Keys))
	for i := range p.Keys {
		ps, qs := p.Selection[i], p.Baseline[i]
		if ps == 0 || qs == 0 {
			continue
		}
		m := (ps + qs) / 2
		terms = append(terms, 0.5*ps*math.Log2(ps/m)+0.5*qs*math.Log2(qs/m))
	}
	js := floats.Sum(terms)
	if js < 0 || math.IsNaN(js) {
		return 0
	}
	return js
}

// ScoreField groups a field's distributions if they are numeric and wide,
// then scores them.
func ScoreField(field string, sel, base comparison.Distribution, groupCount int) comparison.FieldDifference {
	sel, base, grouped := GroupNumericKeys(sel, base, groupCount)
	p := Probabilities(sel, base)
	return comparison.FieldDifference{
		Field:         field,
		Divergence:    MaxDifference(p),
		JSDivergence:  JSDivergence(p),
		PValue:        HomogeneityPValue(sel, base),
		SelectionDist: sel,
		BaselineDist:  base,
		Grouped:       grouped,
	}
}

// RankDifferences sorts by divergence descending, ties by field name
func RankDifferences(diffs []comparison.FieldDifference) {
	sort.SliceStable(diffs, func(i, j int) bool {
		if diffs[i].Divergence != diffs[j].Divergence {
			return diffs[i].Divergence > diffs[j].Divergence
		}
		return diffs[i].Field < diffs[j].Field
	})
}
