package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"obsnote/domain/comparison"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *comparison.Result {
	return &comparison.Result{
		SelectionCount: 1200,
		BaselineCount:  4800,
		Summaries: []comparison.ComparisonSummary{{
			Field:      "service.name",
			Divergence: 0.6,
			Changes: []comparison.ValueChange{
				{Value: "cart", SelectionPercentage: 0.8, BaselinePercentage: 0.2, ChangePercentage: 300},
				{Value: "search", SelectionPercentage: 0.2, BaselinePercentage: 0, ChangePercentage: comparison.ChangePercentage(math.Inf(1))},
			},
		}},
	}
}

func TestWriteComparisonTable(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	require.NoError(t, writeComparison(&buf, formatTable, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "service.name")
	assert.Contains(t, out, "+300.0%")
	assert.Contains(t, out, "new")
}

func TestWriteComparisonJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeComparison(&buf, formatJSON, sampleResult()))

	var decoded comparison.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.True(t, decoded.Summaries[0].Changes[1].ChangePercentage.IsAppeared())
}

func TestWriteComparisonYAML(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeComparison(&buf, formatYAML, sampleResult()))

	assert.Contains(t, buf.String(), "field: service.name")
}

func TestWriteComparisonUnknownFormat(t *testing.T) {
	assert.Error(t, writeComparison(&bytes.Buffer{}, "csv", sampleResult()))
}

func TestWriteComparisonNoFields(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeComparison(&buf, formatTable, &comparison.Result{NoComparable: true}))

	assert.Contains(t, buf.String(), "No comparable fields.")
}

func TestSelectionWindow(t *testing.T) {
	w, err := selectionWindow("", "", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, w.End.Sub(w.Start))

	w, err = selectionWindow("2024-03-01T12:00:00Z", "2024-03-01T12:10:00Z", 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, w.Duration())

	_, err = selectionWindow("yesterday", "2024-03-01T12:10:00Z", 0)
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{`{"term":{"env":"prod"}}`})
	require.NoError(t, err)
	assert.Len(t, filters, 1)

	_, err = parseFilters([]string{`{"term":`})
	assert.Error(t, err)
}

func TestLoadCLIConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsnote.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  url: http://search:9200\nanalysis:\n  sample_size: 250\n"), 0o600))
	t.Setenv("OBSNOTE_ANALYSIS_MAX_RESULTS", "7")

	cfg, err := loadCLIConfig(viper.New(), path)

	require.NoError(t, err)
	assert.Equal(t, "http://search:9200", cfg.Search.URL)
	assert.Equal(t, 250, cfg.Analysis.SampleSize)
	assert.Equal(t, 7, cfg.Analysis.MaxResults)
	assert.Equal(t, 5, cfg.Analysis.GroupCount)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
}
