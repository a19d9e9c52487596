package store

import (
	"context"
	"path/filepath"
	"testing"

	"catalog_agent/pkg/core/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"Nome Format", "Descrizione", "Durata Ideale"}

// exerciseStore checks the round-trip contract shared by every backend.
func exerciseStore(t *testing.T, s catalog.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.AppendRow(ctx, []string{"Escape Room Classico", "Enigmi in squadra", "2"}))
	require.NoError(t, s.AppendRow(ctx, []string{"Cooking Challenge 2.0", "Gara di cucina", "3"}))

	schema, records, err := s.ReadAllRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.Schema(header), schema)
	require.Len(t, records, 2)
	last := records[1]
	assert.Equal(t, "Cooking Challenge 2.0", last["Nome Format"])
	assert.Equal(t, "Gara di cucina", last["Descrizione"])
	assert.Equal(t, "3", last["Durata Ideale"])

	grid, err := s.ReadRawGrid(ctx)
	require.NoError(t, err)
	row, col, err := catalog.LocateCell(grid, "Escape Room Classico", "Durata Ideale")
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	assert.Equal(t, 3, col)

	require.NoError(t, s.WriteCell(ctx, row, col, "2.5"))
	_, records, err = s.ReadAllRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.5", records[0]["Durata Ideale"])
	assert.Equal(t, "Enigmi in squadra", records[0]["Descrizione"])
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	exerciseStore(t, NewMemoryStore(header))
}

func TestMemoryStore_WriteCellGrowsShortRows(t *testing.T) {
	s := NewMemoryStore(header, []string{"Escape Room Classico"})
	require.NoError(t, s.WriteCell(context.Background(), 2, 3, "2"))

	_, records, err := s.ReadAllRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", records[0]["Durata Ideale"])
	assert.Equal(t, "", records[0]["Descrizione"])

	assert.Error(t, s.WriteCell(context.Background(), 0, 1, "x"))
}

func TestMemoryStore_ReadRawGridIsACopy(t *testing.T) {
	s := NewMemoryStore(header, []string{"A", "b", "c"})
	grid, err := s.ReadRawGrid(context.Background())
	require.NoError(t, err)
	grid[1][0] = "mutated"

	again, err := s.ReadRawGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", again[1][0])
}

func TestWorkbookStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	s, err := NewWorkbookStore(path, "Foglio1", header)
	require.NoError(t, err)
	exerciseStore(t, s)

	// Reopening an existing workbook keeps its content.
	reopened, err := NewWorkbookStore(path, "Foglio1", nil)
	require.NoError(t, err)
	_, records, err := reopened.ReadAllRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWorkbookStore_MissingFileNeedsHeader(t *testing.T) {
	_, err := NewWorkbookStore(filepath.Join(t.TempDir(), "none.xlsx"), "", nil)
	assert.Error(t, err)
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Foglio1'", quoteSheet("Foglio1"))
	assert.Equal(t, "'Team''s'", quoteSheet("Team's"))
}
