package ports

import (
	"context"

	"obsnote/domain/core"
	"obsnote/domain/paragraph"
)

// ParagraphOutputRepository persists analysis results keyed by paragraph
type ParagraphOutputRepository interface {
	// Save inserts or replaces the output and bumps its version
	Save(ctx context.Context, output *paragraph.Output) error
	// Get returns core.ErrParagraphNotFound when nothing is stored
	Get(ctx context.Context, id core.ParagraphID) (*paragraph.Output, error)
	Delete(ctx context.Context, id core.ParagraphID) error
}
