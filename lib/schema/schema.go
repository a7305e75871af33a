package schema

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/feaforge/lrdb/lib/dberr"
)

// --------------------------------------------------------------------------
// Column Types
// --------------------------------------------------------------------------

// ColumnType identifies the value type of a column.
type ColumnType uint8

const (
	TypeInt64   ColumnType = iota + 1 // 64-bit signed integers (ids, subcases)
	TypeFloat64                       // 64-bit floats (result components)
	TypeString                        // UTF-8 strings (metadata)
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes a ColumnType as its string name.
func (t ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON deserializes a ColumnType from its string name.
func (t *ColumnType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "int64":
		*t = TypeInt64
	case "float64":
		*t = TypeFloat64
	case "string":
		*t = TypeString
	default:
		return fmt.Errorf("unknown column type: %s", s)
	}
	return nil
}

// --------------------------------------------------------------------------
// Schema Definition
// --------------------------------------------------------------------------

// Column is one named, typed column of a database schema.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the fixed column layout of a database. It is defined once at
// database creation and shared by every batch.
type Schema struct {
	Version int      `json:"version"`
	Columns []Column `json:"columns"`
}

// ColumnIndex returns the position of the named column and whether it exists.
func (s Schema) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that the schema itself is well-formed: at least one
// column, no duplicate names, no untyped columns.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return dberr.New(dberr.CodeSchemaMismatch, "schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return dberr.New(dberr.CodeSchemaMismatch, "schema contains an unnamed column")
		}
		if c.Type < TypeInt64 || c.Type > TypeString {
			return dberr.New(dberr.CodeSchemaMismatch, "column %q has no valid type", c.Name)
		}
		if _, ok := seen[c.Name]; ok {
			return dberr.New(dberr.CodeSchemaMismatch, "duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// --------------------------------------------------------------------------
// Rows
// --------------------------------------------------------------------------

// Row is one tabular record in schema column order. Values must be
// int64, float64 or string matching the column types.
type Row []any

// ValidateRow checks one row against the schema. Integer values are
// accepted for float columns (solver decks often emit whole numbers);
// everything else must match exactly.
func (s Schema) ValidateRow(row Row) error {
	if len(row) != len(s.Columns) {
		return dberr.New(dberr.CodeSchemaMismatch,
			"row has %d values, schema has %d columns", len(row), len(s.Columns))
	}
	for i, v := range row {
		col := s.Columns[i]
		switch col.Type {
		case TypeInt64:
			if _, ok := v.(int64); !ok {
				return dberr.New(dberr.CodeSchemaMismatch,
					"column %q expects int64, got %T", col.Name, v)
			}
		case TypeFloat64:
			switch v.(type) {
			case float64, int64:
			default:
				return dberr.New(dberr.CodeSchemaMismatch,
					"column %q expects float64, got %T", col.Name, v)
			}
		case TypeString:
			if _, ok := v.(string); !ok {
				return dberr.New(dberr.CodeSchemaMismatch,
					"column %q expects string, got %T", col.Name, v)
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Row Input
// --------------------------------------------------------------------------

// RowReader is the opaque iterable handed to the ingestion pipeline by an
// external result-file parser. It is consumed exactly once; Next returns
// io.EOF after the last row.
type RowReader interface {
	Next() (Row, error)
}

// sliceReader is a RowReader over an in-memory row slice.
type sliceReader struct {
	rows []Row
	pos  int
}

// NewSliceReader returns a RowReader over the given rows. Used by tests
// and the CSV ingestion adapter.
func NewSliceReader(rows []Row) RowReader {
	return &sliceReader{rows: rows}
}

func (r *sliceReader) Next() (Row, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}
