package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"obsnote/domain/core"
	"obsnote/domain/paragraph"
	"obsnote/ports"
)

// ParagraphOutputRepository stores analysis results per paragraph. The SQL
// is written with ? placeholders and rebound, so it runs on postgres and
// sqlite3 alike.
type ParagraphOutputRepository struct {
	db *sqlx.DB
}

var _ ports.ParagraphOutputRepository = (*ParagraphOutputRepository)(nil)

// NewParagraphOutputRepository creates a new paragraph output repository
func NewParagraphOutputRepository(db *sqlx.DB) *ParagraphOutputRepository {
	return &ParagraphOutputRepository{db: db}
}

type outputRow struct {
	ParagraphID string    `db:"paragraph_id"`
	Kind        string    `db:"kind"`
	RequestHash string    `db:"request_hash"`
	Payload     []byte    `db:"payload"`
	Version     int       `db:"version"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Save inserts the output or replaces the stored one, incrementing its
// version. The stored version is written back into output.
func (r *ParagraphOutputRepository) Save(ctx context.Context, output *paragraph.Output) error {
	if output.UpdatedAt.IsZero() {
		output.UpdatedAt = time.Now().UTC()
	}

	query := r.db.Rebind(`
		INSERT INTO paragraph_outputs (paragraph_id, kind, request_hash, payload, version, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (paragraph_id) DO UPDATE SET
			kind = excluded.kind,
			request_hash = excluded.request_hash,
			payload = excluded.payload,
			version = paragraph_outputs.version + 1,
			updated_at = excluded.updated_at
		RETURNING version`)

	err := r.db.QueryRowxContext(ctx, query,
		output.ParagraphID.String(),
		string(output.Kind),
		string(output.RequestHash),
		string(output.Payload),
		output.UpdatedAt,
	).Scan(&output.Version)
	if err != nil {
		return fmt.Errorf("failed to save paragraph output: %w", err)
	}

	return nil
}

// Get returns the stored output or core.ErrParagraphNotFound
func (r *ParagraphOutputRepository) Get(ctx context.Context, id core.ParagraphID) (*paragraph.Output, error) {
	query := r.db.Rebind(`
		SELECT paragraph_id, kind, request_hash, payload, version, updated_at
		FROM paragraph_outputs
		WHERE paragraph_id = ?`)

	var row outputRow
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrParagraphNotFound, id)
		}
		return nil, fmt.Errorf("failed to get paragraph output: %w", err)
	}

	return &paragraph.Output{
		ParagraphID: core.ParagraphID(row.ParagraphID),
		Kind:        paragraph.OutputKind(row.Kind),
		RequestHash: core.RequestHash(row.RequestHash),
		Payload:     row.Payload,
		Version:     row.Version,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// Delete removes the stored output. Deleting a missing output is not an
// error.
func (r *ParagraphOutputRepository) Delete(ctx context.Context, id core.ParagraphID) error {
	query := r.db.Rebind(`DELETE FROM paragraph_outputs WHERE paragraph_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return fmt.Errorf("failed to delete paragraph output: %w", err)
	}
	return nil
}
