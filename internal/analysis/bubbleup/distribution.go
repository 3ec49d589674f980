package bubbleup

import (
	"obsnote/domain/comparison"
	"obsnote/domain/sample"
)

// BuildDistribution counts the canonical values of field (a dot path) in
// docs. Null and missing values are skipped, so the total equals the
// number of present occurrences.
func BuildDistribution(docs []sample.Document, field string) comparison.Distribution {
	return buildFromFlat(FlattenAll(docs), field)
}

func buildFromFlat(flat []map[string]interface{}, field string) comparison.Distribution {
	dist := make(comparison.Distribution)
	for _, doc := range flat {
		key, ok := CanonicalValue(doc[field])
		if !ok {
			continue
		}
		dist[key]++
	}
	return dist
}
