package sample

import (
	"encoding/json"
	"fmt"
	"time"

	"obsnote/domain/core"
)

// DefaultSampleSize caps the number of documents fetched per window
const DefaultSampleSize = 1000

// BaselineMultiplier is how many selection durations the baseline window spans
const BaselineMultiplier = 5

// Document is one search hit, keyed by field name. Values may be nested
// objects, arrays or any JSON scalar.
type Document map[string]interface{}

// TimeWindow is the half-open interval [Start, End)
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow creates a window and validates it
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Duration returns the window length
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate rejects zero and inverted windows
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", core.ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", core.ErrInvalidWindow,
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside [Start, End)
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether the two half-open windows share any instant
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// String formats the window for logs
func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// BaselineFor returns the window of BaselineMultiplier x the selection's
// duration that ends exactly when the selection starts.
func BaselineFor(selection TimeWindow) TimeWindow {
	d := selection.Duration()
	return TimeWindow{
		Start: selection.Start.Add(-BaselineMultiplier * d),
		End:   selection.Start,
	}
}

// Sample is a bounded, ordered set of documents fetched for one window
type Sample struct {
	Window    TimeWindow `json:"window"`
	Documents []Document `json:"documents"`
}

// Len returns the number of documents in the sample
func (s Sample) Len() int {
	return len(s.Documents)
}

// ComparisonWindow pairs the period under investigation with its baseline
type ComparisonWindow struct {
	Selection Sample `json:"selection"`
	Baseline  Sample `json:"baseline"`
}

// Combined returns selection documents followed by baseline documents
func (c ComparisonWindow) Combined() []Document {
	docs := make([]Document, 0, c.Selection.Len()+c.Baseline.Len())
	docs = append(docs, c.Selection.Documents...)
	docs = append(docs, c.Baseline.Documents...)
	return docs
}

// Filter is one additional boolean clause in the search backend's query
// language. It is passed through verbatim.
type Filter json.RawMessage

// MarshalJSON emits the raw clause
func (f Filter) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return []byte("null"), nil
	}
	return f, nil
}

// UnmarshalJSON keeps the raw clause
func (f *Filter) UnmarshalJSON(data []byte) error {
	*f = append((*f)[:0], data...)
	return nil
}

// FieldMetadata describes one indexed field as reported by the mapping
type FieldMetadata struct {
	Name        string `json:"name"`
	StorageType string `json:"storage_type"`
}

// StorageTypeKeyword is the exact-value string type eligible for comparison
const StorageTypeKeyword = "keyword"
