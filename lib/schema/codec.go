package schema

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Column file format: a flat sequence of encoded values, one file per
// column per batch. Numbers are 8-byte little-endian (floats via IEEE 754
// bits), strings are uvarint length followed by UTF-8 bytes. The row
// count lives in the catalog record, not in the file.

// --------------------------------------------------------------------------
// Column Writer
// --------------------------------------------------------------------------

// ColumnWriter appends values of a single column to an underlying writer.
type ColumnWriter struct {
	w   *bufio.Writer
	typ ColumnType
	buf [binary.MaxVarintLen64]byte
}

// NewColumnWriter creates a ColumnWriter for the given value type.
func NewColumnWriter(w io.Writer, typ ColumnType) *ColumnWriter {
	return &ColumnWriter{
		w:   bufio.NewWriter(w),
		typ: typ,
	}
}

// Append encodes and writes one value. The value must already have been
// validated against the schema.
func (cw *ColumnWriter) Append(v any) error {
	switch cw.typ {
	case TypeInt64:
		binary.LittleEndian.PutUint64(cw.buf[:8], uint64(v.(int64)))
		_, err := cw.w.Write(cw.buf[:8])
		return err
	case TypeFloat64:
		f, ok := v.(float64)
		if !ok {
			f = float64(v.(int64))
		}
		binary.LittleEndian.PutUint64(cw.buf[:8], math.Float64bits(f))
		_, err := cw.w.Write(cw.buf[:8])
		return err
	case TypeString:
		s := v.(string)
		n := binary.PutUvarint(cw.buf[:], uint64(len(s)))
		if _, err := cw.w.Write(cw.buf[:n]); err != nil {
			return err
		}
		_, err := cw.w.WriteString(s)
		return err
	default:
		return fmt.Errorf("unsupported column type %d", cw.typ)
	}
}

// Flush writes any buffered data to the underlying writer.
func (cw *ColumnWriter) Flush() error {
	return cw.w.Flush()
}

// --------------------------------------------------------------------------
// Column Reader
// --------------------------------------------------------------------------

// ReadColumn decodes exactly rows values of the given type from r.
func ReadColumn(r io.Reader, typ ColumnType, rows int64) ([]any, error) {
	br := bufio.NewReader(r)
	values := make([]any, 0, rows)
	var buf [8]byte

	for i := int64(0); i < rows; i++ {
		switch typ {
		case TypeInt64:
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			values = append(values, int64(binary.LittleEndian.Uint64(buf[:])))
		case TypeFloat64:
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(buf[:])))
		case TypeString:
			n, err := binary.ReadUvarint(br)
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			s := make([]byte, n)
			if _, err := io.ReadFull(br, s); err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			values = append(values, string(s))
		default:
			return nil, fmt.Errorf("unsupported column type %d", typ)
		}
	}
	return values, nil
}
