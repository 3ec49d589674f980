package ports

import (
	"context"

	"obsnote/domain/core"
	"obsnote/domain/sample"
)

// FetchRequest bounds one time-windowed document fetch
type FetchRequest struct {
	Index     core.IndexName
	TimeField string
	Window    sample.TimeWindow
	Filters   []sample.Filter
	Size      int
}

// SearchPort fetches documents from the search backend. Implementations
// must apply a range filter on TimeField, every extra filter clause, and
// the size cap.
type SearchPort interface {
	Fetch(ctx context.Context, req FetchRequest) ([]sample.Document, error)
}

// FieldMetadataPort resolves an index pattern's field mapping
type FieldMetadataPort interface {
	GetFields(ctx context.Context, index core.IndexName) ([]sample.FieldMetadata, error)
}
