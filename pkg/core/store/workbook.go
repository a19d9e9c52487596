package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"catalog_agent/pkg/core/catalog"

	"github.com/xuri/excelize/v2"
)

// WorkbookStore implements catalog.Store over a local .xlsx file.
// The file is reopened for every call so edits made in a spreadsheet program are seen.
type WorkbookStore struct {
	mu    sync.Mutex
	path  string
	sheet string
}

// NewWorkbookStore opens path, creating it with header when it does not exist yet.
func NewWorkbookStore(path, sheet string, header []string) (*WorkbookStore, error) {
	if sheet == "" {
		sheet = "Foglio1"
	}
	s := &WorkbookStore{path: path, sheet: sheet}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if len(header) == 0 {
			return nil, fmt.Errorf("workbook %s does not exist and no header was given", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workbook directory: %w", err)
		}
		f := excelize.NewFile()
		defer f.Close()
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
		row := make([]interface{}, len(header))
		for i, h := range header {
			row[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("failed to create workbook %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *WorkbookStore) ReadAllRecords(ctx context.Context) (catalog.Schema, []catalog.Record, error) {
	grid, err := s.ReadRawGrid(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog.RecordsFromGrid(grid)
}

func (s *WorkbookStore) ReadRawGrid(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", s.sheet, err)
	}
	return rows, nil
}

func (s *WorkbookStore) WriteCell(ctx context.Context, row, col int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinate (%d,%d): %w", row, col, err)
	}
	return s.mutate(func(f *excelize.File) error {
		return f.SetCellValue(s.sheet, cell, value)
	})
}

// AppendRow writes values on the row after the last non-empty one.
func (s *WorkbookStore) AppendRow(ctx context.Context, values []string) error {
	return s.mutate(func(f *excelize.File) error {
		rows, err := f.GetRows(s.sheet)
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(s.sheet, cell, &row)
	})
}

func (s *WorkbookStore) mutate(fn func(f *excelize.File) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return fmt.Errorf("workbook %s: %w", s.path, err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", s.path, err)
	}
	return nil
}
