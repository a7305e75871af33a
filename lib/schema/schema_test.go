package schema

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/feaforge/lrdb/lib/dberr"
)

func testSchema() Schema {
	return Schema{
		Version: 1,
		Columns: []Column{
			{Name: "node", Type: TypeInt64},
			{Name: "stress", Type: TypeFloat64},
			{Name: "case", Type: TypeString},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	if err := testSchema().Validate(); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}

	empty := Schema{Version: 1}
	if err := empty.Validate(); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for empty schema, got %v", err)
	}

	dup := Schema{Version: 1, Columns: []Column{
		{Name: "a", Type: TypeInt64},
		{Name: "a", Type: TypeFloat64},
	}}
	if err := dup.Validate(); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for duplicate column, got %v", err)
	}

	unnamed := Schema{Version: 1, Columns: []Column{{Name: "", Type: TypeInt64}}}
	if err := unnamed.Validate(); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for unnamed column, got %v", err)
	}

	untyped := Schema{Version: 1, Columns: []Column{{Name: "a"}}}
	if err := untyped.Validate(); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for untyped column, got %v", err)
	}
}

func TestValidateRow(t *testing.T) {
	sch := testSchema()

	if err := sch.ValidateRow(Row{int64(1), 2.5, "static"}); err != nil {
		t.Errorf("valid row rejected: %v", err)
	}

	// Whole numbers are accepted for float columns.
	if err := sch.ValidateRow(Row{int64(1), int64(2), "static"}); err != nil {
		t.Errorf("integer value for float column rejected: %v", err)
	}

	if err := sch.ValidateRow(Row{int64(1), 2.5}); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for short row, got %v", err)
	}

	if err := sch.ValidateRow(Row{"x", 2.5, "static"}); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for string in int column, got %v", err)
	}

	if err := sch.ValidateRow(Row{int64(1), 2.5, int64(3)}); !dberr.Is(err, dberr.CodeSchemaMismatch) {
		t.Errorf("expected SchemaMismatch for int in string column, got %v", err)
	}
}

func TestColumnIndex(t *testing.T) {
	sch := testSchema()

	idx, ok := sch.ColumnIndex("stress")
	if !ok || idx != 1 {
		t.Errorf("expected (1, true) for stress, got (%d, %v)", idx, ok)
	}
	if _, ok := sch.ColumnIndex("nonexistent"); ok {
		t.Errorf("expected unknown column to be reported as missing")
	}
}

func TestColumnTypeJSON(t *testing.T) {
	data, err := json.Marshal(testSchema())
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}

	var decoded Schema
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	for i, c := range testSchema().Columns {
		if decoded.Columns[i] != c {
			t.Errorf("column %d changed over JSON: want %+v, got %+v", i, c, decoded.Columns[i])
		}
	}

	var typ ColumnType
	if err := json.Unmarshal([]byte(`"complex128"`), &typ); err == nil {
		t.Errorf("expected error for unknown column type name")
	}
}

func TestColumnCodecInt64(t *testing.T) {
	var buf bytes.Buffer
	w := NewColumnWriter(&buf, TypeInt64)

	want := []int64{0, 1, -1, 1<<62 - 1, -(1 << 62)}
	for _, v := range want {
		if err := w.Append(v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	values, err := ReadColumn(&buf, TypeInt64, int64(len(want)))
	if err != nil {
		t.Fatalf("read column: %v", err)
	}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("value %d: want %d, got %v", i, v, values[i])
		}
	}
}

func TestColumnCodecFloat64(t *testing.T) {
	var buf bytes.Buffer
	w := NewColumnWriter(&buf, TypeFloat64)

	// The writer promotes whole int64 values into float columns.
	inputs := []any{1.5, -2.25, int64(3), 0.0}
	want := []float64{1.5, -2.25, 3.0, 0.0}
	for _, v := range inputs {
		if err := w.Append(v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	values, err := ReadColumn(&buf, TypeFloat64, int64(len(want)))
	if err != nil {
		t.Fatalf("read column: %v", err)
	}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("value %d: want %v, got %v", i, v, values[i])
		}
	}
}

func TestColumnCodecString(t *testing.T) {
	var buf bytes.Buffer
	w := NewColumnWriter(&buf, TypeString)

	want := []string{"", "a", "load-case-1", string(make([]byte, 300))}
	for _, v := range want {
		if err := w.Append(v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	values, err := ReadColumn(&buf, TypeString, int64(len(want)))
	if err != nil {
		t.Fatalf("read column: %v", err)
	}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("value %d: want %q, got %v", i, v, values[i])
		}
	}
}

func TestReadColumnTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewColumnWriter(&buf, TypeInt64)
	if err := w.Append(int64(42)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// Asking for more rows than the file holds must fail, not block.
	if _, err := ReadColumn(&buf, TypeInt64, 2); err == nil {
		t.Errorf("expected error reading past the end of the column")
	}
}

func TestSliceReader(t *testing.T) {
	rows := []Row{
		{int64(1), 2.5, "a"},
		{int64(2), 3.5, "b"},
	}
	r := NewSliceReader(rows)

	for i := range rows {
		row, err := r.Next()
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if len(row) != 3 {
			t.Errorf("row %d: unexpected length %d", i, len(row))
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last row, got %v", err)
	}
}
