package bubbleup

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"obsnote/domain/comparison"
)

// HomogeneityPValue runs a chi-square test of homogeneity on the 2xk table
// formed by the selection and baseline counts. It returns 1 when the test
// is undefined: an empty side or fewer than two distinct values.
func HomogeneityPValue(sel, base comparison.Distribution) float64 {
	stat, df := chiSquareStatistic(sel, base)
	if df < 1 || math.IsNaN(stat) {
		return 1
	}
	chiDist := distuv.ChiSquared{K: float64(df)}
	p := 1 - chiDist.CDF(stat)
	if p < 0 {
		return 0
	}
	return p
}

func chiSquareStatistic(sel, base comparison.Distribution) (float64, int) {
	selTotal := float64(sel.Total())
	baseTotal := float64(base.Total())
	n := selTotal + baseTotal
	if selTotal == 0 || baseTotal == 0 {
		return 0, 0
	}

	keys := unionKeys(sel, base)
	stat := 0.0
	for _, k := range keys {
		col := float64(sel[k] + base[k])
		if col == 0 {
			continue
		}
		expSel := selTotal * col / n
		expBase := baseTotal * col / n
		stat += sq(float64(sel[k])-expSel)/expSel + sq(float64(base[k])-expBase)/expBase
	}
	return stat, len(keys) - 1
}

func sq(x float64) float64 { return x * x }
