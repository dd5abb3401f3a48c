package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
)

func snapshot(t *testing.T) *segment.Snapshot {
	t.Helper()
	e, err := indexer.NewEngine(indexer.Options{TrackPositions: true})
	require.NoError(t, err)
	res, err := e.Build(context.Background(), []document.Document{
		{ID: 1, Title: "one", Body: "A B A", Authors: []string{"Knuth, D.", "Perlis, A."}},
		{ID: 2, Title: "two", Body: "b c"},
		{ID: 2, Title: "two again", Body: "d"},
	})
	require.NoError(t, err)
	return segment.NewSnapshot(res)
}

func TestExportSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.ExportConfig{Driver: "sqlite3", Path: filepath.Join(t.TempDir(), "index.db")}
	ex, err := Open(ctx, cfg, config.PostgresConfig{})
	require.NoError(t, err)
	defer ex.Close()

	snap := snapshot(t)
	require.NoError(t, ex.Export(ctx, snap))

	terms, postings, docs, err := ex.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, terms)
	assert.Equal(t, 5, postings)
	assert.Equal(t, 2, docs)

	var positions string
	require.NoError(t, ex.db.QueryRowContext(ctx,
		"SELECT positions FROM postings WHERE term = ? AND doc_id = ?", "a", 1).Scan(&positions))
	assert.Equal(t, "0 2", positions)

	var title, authors string
	require.NoError(t, ex.db.QueryRowContext(ctx,
		"SELECT title, authors FROM documents WHERE doc_id = ?", 2).Scan(&title, &authors))
	assert.Equal(t, "two again", title)
	assert.Empty(t, authors)

	// A second export replaces the first.
	require.NoError(t, ex.Export(ctx, snap))
	terms, _, _, err = ex.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, terms)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.ExportConfig{Driver: "oracle"}, config.PostgresConfig{})
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?", New(nil, SQLite).placeholders(2))
	assert.Equal(t, "$1, $2, $3", New(nil, Postgres).placeholders(3))
}
