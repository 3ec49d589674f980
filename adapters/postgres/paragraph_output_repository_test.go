package postgres

import (
	"context"
	"testing"

	"obsnote/domain/core"
	"obsnote/domain/paragraph"
	"obsnote/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		t.Skipf("sqlite3 unavailable: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func TestParagraphOutputRepositoryRoundTrip(t *testing.T) {
	repo := NewParagraphOutputRepository(newTestDB(t))
	ctx := context.Background()

	output, err := paragraph.NewOutput("p-1", paragraph.OutputBubbleUp, "abc", map[string]int{"fields": 2})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, output))
	assert.Equal(t, 1, output.Version)

	stored, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, paragraph.OutputBubbleUp, stored.Kind)
	assert.Equal(t, core.RequestHash("abc"), stored.RequestHash)
	assert.JSONEq(t, `{"fields":2}`, string(stored.Payload))

	replacement, err := paragraph.NewOutput("p-1", paragraph.OutputLogPattern, "def", map[string]int{"fields": 3})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, replacement))
	assert.Equal(t, 2, replacement.Version)

	stored, err = repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, paragraph.OutputLogPattern, stored.Kind)
	assert.Equal(t, 2, stored.Version)
}

func TestParagraphOutputRepositoryNotFound(t *testing.T) {
	repo := NewParagraphOutputRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrParagraphNotFound)
	assert.True(t, core.IsNotFoundError(err))

	output, err := paragraph.NewOutput("p-2", paragraph.OutputBubbleUp, "", []int{})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, output))
	require.NoError(t, repo.Delete(ctx, "p-2"))
	require.NoError(t, repo.Delete(ctx, "p-2"))

	_, err = repo.Get(ctx, "p-2")
	assert.ErrorIs(t, err, core.ErrParagraphNotFound)
}
