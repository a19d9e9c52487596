// Package catalog holds the in-memory model of the product catalog: the column
// schema read from the header row, immutable row snapshots, the field-kind table
// and the time-based snapshot cache.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrColumnNotFound   = errors.New("column not found")
	ErrEmptySchema      = errors.New("catalog has no header row")
)

// Store is the remote tabular store backing the catalog.
// Row 1 is always the header; data rows start at row 2. Coordinates are 1-based.
type Store interface {
	ReadAllRecords(ctx context.Context) (Schema, []Record, error)
	ReadRawGrid(ctx context.Context) ([][]string, error)
	WriteCell(ctx context.Context, row, col int, value string) error
	AppendRow(ctx context.Context, values []string) error
}

// Schema is the ordered list of column names. The first entry is the identity field.
type Schema []string

// Identity returns the name of the identity column.
func (s Schema) Identity() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Attributes returns every field except the identity field.
func (s Schema) Attributes() []string {
	if len(s) < 2 {
		return nil
	}
	out := make([]string, len(s)-1)
	copy(out, s[1:])
	return out
}

// Index returns the 0-based position of field, or -1.
func (s Schema) Index(field string) int {
	for i, name := range s {
		if name == field {
			return i
		}
	}
	return -1
}

func (s Schema) Has(field string) bool {
	return s.Index(field) >= 0
}

// Record is a single row as a field -> display string mapping.
type Record map[string]string

// Value is a field value that may be intentionally absent, i.e. left for a
// human to fill in.
type Value struct {
	Text    string `json:"text"`
	Missing bool   `json:"missing"`
}

func Present(text string) Value { return Value{Text: text} }

func Absent() Value { return Value{Missing: true} }

// Extraction maps schema fields to values pulled from a document.
type Extraction map[string]Value

// Identity returns the extracted identity value, or "" when it is absent.
func (e Extraction) Identity(schema Schema) string {
	v, ok := e[schema.Identity()]
	if !ok || v.Missing {
		return ""
	}
	return strings.TrimSpace(v.Text)
}

// Row is one catalog entry.
type Row struct {
	Identity string            `json:"identity"`
	Values   map[string]string `json:"values"`
}

// Snapshot is a point-in-time copy of the whole catalog. Callers own their copy.
type Snapshot struct {
	Schema   Schema    `json:"schema"`
	Rows     []Row     `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

// NewSnapshot builds a snapshot from a header and its records.
func NewSnapshot(schema Schema, records []Record) *Snapshot {
	snap := &Snapshot{
		Schema:   append(Schema(nil), schema...),
		Rows:     make([]Row, 0, len(records)),
		LoadedAt: time.Now(),
	}
	idField := schema.Identity()
	for _, rec := range records {
		values := make(map[string]string, len(schema))
		for _, field := range schema {
			values[field] = rec[field]
		}
		snap.Rows = append(snap.Rows, Row{Identity: rec[idField], Values: values})
	}
	return snap
}

// Identities returns identity values in catalog order.
func (s *Snapshot) Identities() []string {
	ids := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		ids[i] = row.Identity
	}
	return ids
}

// Lookup finds a row by exact identity.
func (s *Snapshot) Lookup(identity string) (Row, bool) {
	for _, row := range s.Rows {
		if row.Identity == identity {
			return row, true
		}
	}
	return Row{}, false
}

// Contains reports whether identity is present in the snapshot.
func (s *Snapshot) Contains(identity string) bool {
	_, ok := s.Lookup(identity)
	return ok
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Schema:   append(Schema(nil), s.Schema...),
		Rows:     make([]Row, len(s.Rows)),
		LoadedAt: s.LoadedAt,
	}
	for i, row := range s.Rows {
		values := make(map[string]string, len(row.Values))
		for k, v := range row.Values {
			values[k] = v
		}
		out.Rows[i] = Row{Identity: row.Identity, Values: values}
	}
	return out
}

// RecordsFromGrid turns a raw grid (header first) into a schema and records.
// Header names are whitespace-trimmed; short rows are padded and blank rows skipped.
func RecordsFromGrid(grid [][]string) (Schema, []Record, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, nil, ErrEmptySchema
	}
	schema := make(Schema, 0, len(grid[0]))
	for _, name := range grid[0] {
		schema = append(schema, strings.TrimSpace(name))
	}
	// Trailing unnamed header cells are formatting leftovers, not columns.
	for len(schema) > 0 && schema[len(schema)-1] == "" {
		schema = schema[:len(schema)-1]
	}
	if len(schema) == 0 {
		return nil, nil, ErrEmptySchema
	}

	records := make([]Record, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if isBlankRow(cells) {
			continue
		}
		rec := make(Record, len(schema))
		for i, field := range schema {
			if i < len(cells) {
				rec[field] = cells[i]
			} else {
				rec[field] = ""
			}
		}
		records = append(records, rec)
	}
	return schema, records, nil
}

// LocateCell scans a raw grid for the row holding identity in the first column
// and the header column named field. Both results are 1-based.
func LocateCell(grid [][]string, identity, field string) (row, col int, err error) {
	if len(grid) == 0 {
		return 0, 0, ErrEmptySchema
	}
	row = -1
	for i, cells := range grid {
		if i == 0 {
			continue
		}
		if len(cells) > 0 && cells[0] == identity {
			row = i + 1
			break
		}
	}
	if row == -1 {
		return 0, 0, ErrIdentityNotFound
	}
	col = -1
	for i, name := range grid[0] {
		if strings.TrimSpace(name) == field {
			col = i + 1
			break
		}
	}
	if col == -1 {
		return 0, 0, ErrColumnNotFound
	}
	return row, col, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
