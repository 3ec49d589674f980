package comparison

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionTotal(t *testing.T) {
	d := Distribution{"a": 3, "b": 4}
	assert.Equal(t, 7, d.Total())
	assert.Equal(t, 0, Distribution{}.Total())
	assert.ElementsMatch(t, []string{"a", "b"}, d.Keys())
}

func TestChangePercentageJSON(t *testing.T) {
	changes := []ValueChange{
		{Value: "new", SelectionPercentage: 0.05, ChangePercentage: ChangePercentage(math.Inf(1))},
		{Value: "same", SelectionPercentage: 0.5, BaselinePercentage: 0.25, ChangePercentage: 100},
	}

	data, err := json.Marshal(changes)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"change_percentage":"Infinity"`)
	assert.Contains(t, string(data), `"change_percentage":100`)

	var decoded []ValueChange
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.True(t, decoded[0].ChangePercentage.IsAppeared())
	assert.Equal(t, ChangePercentage(100), decoded[1].ChangePercentage)
}
