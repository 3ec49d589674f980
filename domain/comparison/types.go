package comparison

import (
	"encoding/json"
	"math"
	"strconv"
)

// FieldCandidate is a field worth comparing together with its distinct
// value count across the combined sample.
type FieldCandidate struct {
	Name        string `json:"name"`
	Cardinality int    `json:"cardinality"`
}

// Distribution maps a serialized value to its occurrence count
type Distribution map[string]int

// Total sums all counts
func (d Distribution) Total() int {
	total := 0
	for _, c := range d {
		total += c
	}
	return total
}

// Keys returns the keys in unspecified order
func (d Distribution) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	return keys
}

// FieldDifference is the scored comparison of one field
type FieldDifference struct {
	Field string `json:"field"`

	// Divergence is the maximum signed per-value probability increase from
	// baseline to selection. It is the ranking key.
	Divergence    float64      `json:"divergence"`
	JSDivergence  float64      `json:"js_divergence"`
	// PValue of a chi-square homogeneity test over the raw counts
	PValue        float64      `json:"p_value"`
	SelectionDist Distribution `json:"selection_dist"`
	BaselineDist  Distribution `json:"baseline_dist"`
	Grouped       bool         `json:"grouped"`
}

// ChangePercentage is a relative change in percent. +Inf marks a value that
// appeared in the selection but not in the baseline; it is encoded as the
// JSON string "Infinity" because encoding/json rejects infinities.
type ChangePercentage float64

const infinityLiteral = "Infinity"

// IsAppeared reports whether the change signals a newly appeared value
func (c ChangePercentage) IsAppeared() bool {
	return math.IsInf(float64(c), 1)
}

// MarshalJSON implements json.Marshaler
func (c ChangePercentage) MarshalJSON() ([]byte, error) {
	f := float64(c)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"` + infinityLiteral + `"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-` + infinityLiteral + `"`), nil
	case math.IsNaN(f):
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *ChangePercentage) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"` + infinityLiteral + `"`:
		*c = ChangePercentage(math.Inf(1))
		return nil
	case `"-` + infinityLiteral + `"`:
		*c = ChangePercentage(math.Inf(-1))
		return nil
	case "null":
		*c = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = ChangePercentage(f)
	return nil
}

// ValueChange describes how one value's share moved between the windows.
// Percentages are fractions of the window total rounded to two decimals.
type ValueChange struct {
	Value               string           `json:"value"`
	SelectionPercentage float64          `json:"selection_percentage"`
	BaselinePercentage  float64          `json:"baseline_percentage"`
	ChangePercentage    ChangePercentage `json:"change_percentage"`
}

// ComparisonSummary is the presentation form of one FieldDifference
type ComparisonSummary struct {
	Field        string        `json:"field"`
	Divergence   float64       `json:"divergence"`
	JSDivergence float64       `json:"js_divergence"`
	PValue       float64       `json:"p_value"`
	Changes      []ValueChange `json:"changes"`
}

// Result is everything one bubble-up run produces
type Result struct {
	RunID          string              `json:"run_id"`
	SelectionCount int                 `json:"selection_count"`
	BaselineCount  int                 `json:"baseline_count"`
	FieldsCompared []FieldCandidate    `json:"fields_compared"`
	Summaries      []ComparisonSummary `json:"summaries"`
	Charts         []json.RawMessage   `json:"charts,omitempty"`
	NoComparable   bool                `json:"no_comparable_fields"`
}
