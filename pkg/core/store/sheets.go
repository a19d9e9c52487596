package store

import (
	"context"
	"fmt"
	"strings"

	"catalog_agent/pkg/core/catalog"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore implements catalog.Store over a Google Sheets worksheet.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
}

// NewSheetsStore connects with a service account JSON document.
func NewSheetsStore(ctx context.Context, credentialsJSON []byte, spreadsheetID, worksheet string) (*SheetsStore, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("service account credentials not set")
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id not set")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &SheetsStore{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

func (s *SheetsStore) ReadAllRecords(ctx context.Context) (catalog.Schema, []catalog.Record, error) {
	grid, err := s.ReadRawGrid(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog.RecordsFromGrid(grid)
}

// ReadRawGrid returns the formatted value of every populated cell.
func (s *SheetsStore) ReadRawGrid(ctx context.Context) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(s.worksheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets read %s: %w", s.worksheet, err)
	}

	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		grid[i] = cells
	}
	return grid, nil
}

func (s *SheetsStore) WriteCell(ctx context.Context, row, col int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell coordinate (%d,%d): %w", row, col, err)
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, quoteSheet(s.worksheet)+"!"+cell, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", cell, err)
	}
	return nil
}

// AppendRow inserts values as a new row after the last populated one.
func (s *SheetsStore) AppendRow(ctx context.Context, values []string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteSheet(s.worksheet), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
