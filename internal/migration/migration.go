package migration

import (
	"context"
	"fmt"

	"obsnote/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every statement is
// idempotent so Run may be repeated on an existing schema.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	dialect, err := dialectFor(db.DriverName())
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}

	if err := r.createParagraphOutputsTable(ctx, db, dialect); err != nil {
		return errors.Wrap(err, "failed to create paragraph_outputs table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

type dialect struct {
	jsonType      string
	timestampType string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return dialect{jsonType: "JSONB", timestampType: "TIMESTAMPTZ"}, nil
	case "sqlite3":
		return dialect{jsonType: "TEXT", timestampType: "TIMESTAMP"}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

func (r *MigrationRunner) createParagraphOutputsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS paragraph_outputs (
			paragraph_id VARCHAR(255) PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			request_hash VARCHAR(64) NOT NULL DEFAULT '',
			payload %s NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at %s NOT NULL
		)`, d.jsonType, d.timestampType)

	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_paragraph_outputs_kind ON paragraph_outputs(kind)",
		"CREATE INDEX IF NOT EXISTS idx_paragraph_outputs_updated_at ON paragraph_outputs(updated_at)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}
