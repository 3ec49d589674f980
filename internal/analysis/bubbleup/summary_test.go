package bubbleup

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"obsnote/domain/comparison"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatComparisonSummaryPercentages(t *testing.T) {
	diffs := []comparison.FieldDifference{{
		Field:         "service",
		Divergence:    0.6,
		SelectionDist: comparison.Distribution{"A": 80, "B": 20},
		BaselineDist:  comparison.Distribution{"A": 20, "B": 80},
	}}

	summaries := FormatComparisonSummary(diffs, 0)

	require.Len(t, summaries, 1)
	changes := summaries[0].Changes
	require.Len(t, changes, 2)
	// ordered by baseline share, not by change magnitude
	assert.Equal(t, "B", changes[0].Value)
	assert.Equal(t, 0.2, changes[0].SelectionPercentage)
	assert.Equal(t, 0.8, changes[0].BaselinePercentage)
	assert.InDelta(t, -75.0, float64(changes[0].ChangePercentage), 1e-9)
	assert.Equal(t, "A", changes[1].Value)
	assert.InDelta(t, 300.0, float64(changes[1].ChangePercentage), 1e-9)
}

func TestChangeBetweenAppearedValue(t *testing.T) {
	c := ChangeBetween(0.05, 0)

	assert.True(t, math.IsInf(float64(c), 1))
	assert.False(t, math.IsNaN(float64(c)))
	assert.Equal(t, comparison.ChangePercentage(0), ChangeBetween(0, 0))
}

func TestFormatComparisonSummaryInfinitySerializes(t *testing.T) {
	diffs := []comparison.FieldDifference{{
		Field:         "error.type",
		SelectionDist: comparison.Distribution{"timeout": 5, "ok": 95},
		BaselineDist:  comparison.Distribution{"ok": 100},
	}}

	summaries := FormatComparisonSummary(diffs, 30)
	data, err := json.Marshal(summaries)

	require.NoError(t, err)
	assert.Contains(t, string(data), `"change_percentage":"Infinity"`)
}

func TestFormatComparisonSummaryLimits(t *testing.T) {
	sel := make(comparison.Distribution)
	for i := 0; i < 50; i++ {
		sel[fmt.Sprintf("v%02d", i)] = i + 1
	}
	var diffs []comparison.FieldDifference
	for i := 0; i < 40; i++ {
		diffs = append(diffs, comparison.FieldDifference{
			Field:         fmt.Sprintf("f%02d", i),
			SelectionDist: sel,
			BaselineDist:  sel,
		})
	}

	summaries := FormatComparisonSummary(diffs, 10)
	assert.Len(t, summaries, 10)
	assert.Equal(t, "f00", summaries[0].Field)
	for _, s := range summaries {
		assert.LessOrEqual(t, len(s.Changes), MaxValueChanges)
	}

	assert.Len(t, FormatComparisonSummary(diffs, 0), DefaultMaxResults)
}

func TestFormatComparisonSummaryPercentagesReconstructTotal(t *testing.T) {
	sel := comparison.Distribution{"A": 1, "B": 2, "C": 3}

	summaries := FormatComparisonSummary([]comparison.FieldDifference{{
		Field: "f", SelectionDist: sel, BaselineDist: comparison.Distribution{},
	}}, 1)

	sum := 0.0
	for _, c := range summaries[0].Changes {
		sum += c.SelectionPercentage
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}
