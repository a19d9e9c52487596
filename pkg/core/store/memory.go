package store

import (
	"context"
	"fmt"
	"sync"

	"catalog_agent/pkg/core/catalog"
)

// =============================================================================
// IN-MEMORY STORE (For development/testing)
// Production uses SheetsStore or WorkbookStore
// =============================================================================

// MemoryStore implements catalog.Store over an in-process grid.
type MemoryStore struct {
	mu   sync.RWMutex
	grid [][]string
}

// NewMemoryStore creates a store whose first row is header.
func NewMemoryStore(header []string, rows ...[]string) *MemoryStore {
	grid := make([][]string, 0, len(rows)+1)
	grid = append(grid, append([]string(nil), header...))
	for _, r := range rows {
		grid = append(grid, append([]string(nil), r...))
	}
	return &MemoryStore{grid: grid}
}

func (s *MemoryStore) ReadAllRecords(ctx context.Context) (catalog.Schema, []catalog.Record, error) {
	grid, err := s.ReadRawGrid(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog.RecordsFromGrid(grid)
}

// ReadRawGrid returns a copy of every cell.
func (s *MemoryStore) ReadRawGrid(ctx context.Context) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]string, len(s.grid))
	for i, r := range s.grid {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *MemoryStore) WriteCell(ctx context.Context, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell coordinate (%d,%d)", row, col)
	}
	for len(s.grid) < row {
		s.grid = append(s.grid, nil)
	}
	r := s.grid[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	s.grid[row-1] = r
	return nil
}

// AppendRow adds values after the last row.
func (s *MemoryStore) AppendRow(ctx context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grid = append(s.grid, append([]string(nil), values...))
	return nil
}
