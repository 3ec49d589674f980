package excel

import (
	"bytes"
	"math"
	"testing"

	"obsnote/domain/comparison"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteComparison(t *testing.T) {
	result := &comparison.Result{
		Summaries: []comparison.ComparisonSummary{{
			Field:      "service",
			Divergence: 0.6,
			Changes: []comparison.ValueChange{
				{Value: "checkout", SelectionPercentage: 0.2, BaselinePercentage: 0.8, ChangePercentage: -75},
				{Value: "payments", SelectionPercentage: 0.05, ChangePercentage: comparison.ChangePercentage(math.Inf(1))},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteComparison(&buf, result))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Fields", "Changes"}, f.GetSheetList())

	fields, err := f.GetRows("Fields")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "service", fields[1][0])
	assert.Equal(t, "0.6", fields[1][1])

	changes, err := f.GetRows("Changes")
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, []string{"service", "checkout", "20", "80", "-75"}, changes[1])
	assert.Equal(t, "Infinity", changes[2][4])
}
