package db

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/feaforge/lrdb/lib/schema"
)

// csvRowReader adapts a CSV stream to the row reader consumed by the
// ingestion pipeline. The first record must be a header matching the
// schema column names in order; values are parsed per column type.
type csvRowReader struct {
	r      *csv.Reader
	schema schema.Schema
	line   int
}

// newCSVRowReader validates the header and returns a reader over the
// remaining records.
func newCSVRowReader(r io.Reader, sch schema.Schema) (*csvRowReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(sch.Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, col := range sch.Columns {
		if header[i] != col.Name {
			return nil, fmt.Errorf("csv header column %d is %q, schema expects %q", i, header[i], col.Name)
		}
	}

	return &csvRowReader{r: cr, schema: sch, line: 1}, nil
}

func (c *csvRowReader) Next() (schema.Row, error) {
	record, err := c.r.Read()
	if err != nil {
		return nil, err // io.EOF ends the stream
	}
	c.line++

	row := make(schema.Row, len(record))
	for i, field := range record {
		switch c.schema.Columns[i].Type {
		case schema.TypeInt64:
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", c.line, c.schema.Columns[i].Name, err)
			}
			row[i] = v
		case schema.TypeFloat64:
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", c.line, c.schema.Columns[i].Name, err)
			}
			row[i] = v
		case schema.TypeString:
			row[i] = field
		}
	}
	return row, nil
}
