package bubbleup

import (
	"context"
	"sort"
	"strings"

	"obsnote/domain/comparison"
	"obsnote/domain/core"
	"obsnote/domain/sample"
	"obsnote/ports"
)

const (
	keywordSuffix = ".keyword"

	// identifierCardinalityBound applies to fields whose name ends in "id"
	identifierCardinalityBound = 30
	minCardinalityBound        = 5
	sampleSizeDivisor          = 4
)

// FieldDiscoverer picks the fields worth comparing for an index
type FieldDiscoverer struct {
	metadata ports.FieldMetadataPort
}

// NewFieldDiscoverer creates a discoverer backed by a field metadata lookup
func NewFieldDiscoverer(metadata ports.FieldMetadataPort) *FieldDiscoverer {
	return &FieldDiscoverer{metadata: metadata}
}

// DiscoverFields loads the index mapping and selects candidates from docs
func (d *FieldDiscoverer) DiscoverFields(ctx context.Context, index core.IndexName, docs []sample.Document) ([]comparison.FieldCandidate, error) {
	fields, err := d.metadata.GetFields(ctx, index)
	if err != nil {
		return nil, err
	}
	return SelectFields(fields, docs), nil
}

// KeywordFieldNames returns the display names of keyword-typed fields with
// any trailing ".keyword" removed, de-duplicated and sorted.
func KeywordFieldNames(fields []sample.FieldMetadata) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range fields {
		if f.StorageType != sample.StorageTypeKeyword {
			continue
		}
		name := strings.TrimSuffix(f.Name, keywordSuffix)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CardinalityBound is the largest distinct-value count a field may have
// and still be compared.
func CardinalityBound(field string, combinedSampleSize int) int {
	if strings.HasSuffix(strings.ToLower(field), "id") {
		return identifierCardinalityBound
	}
	bound := combinedSampleSize / sampleSizeDivisor
	if bound < minCardinalityBound {
		bound = minCardinalityBound
	}
	return bound
}

// Retained applies the retention rule for one field
func Retained(field string, cardinality, combinedSampleSize int) bool {
	return cardinality > 0 && cardinality <= CardinalityBound(field, combinedSampleSize)
}

// SelectFields computes the cardinality of every keyword field across docs
// and keeps those within bounds. An empty docs slice yields no fields.
func SelectFields(fields []sample.FieldMetadata, docs []sample.Document) []comparison.FieldCandidate {
	names := KeywordFieldNames(fields)
	flat := FlattenAll(docs)

	candidates := make([]comparison.FieldCandidate, 0, len(names))
	for _, name := range names {
		card := cardinality(flat, name)
		if !Retained(name, card, len(docs)) {
			continue
		}
		candidates = append(candidates, comparison.FieldCandidate{Name: name, Cardinality: card})
	}
	return candidates
}

func cardinality(flat []map[string]interface{}, field string) int {
	distinct := make(map[string]struct{})
	for _, doc := range flat {
		if key, ok := CanonicalValue(doc[field]); ok {
			distinct[key] = struct{}{}
		}
	}
	return len(distinct)
}
