package query

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/feaforge/lrdb/lib/catalog"
	"github.com/feaforge/lrdb/lib/dberr"
	"github.com/feaforge/lrdb/lib/schema"
)

// --------------------------------------------------------------------------
// Source Abstraction
// --------------------------------------------------------------------------

// Source is what the engine needs from a database: its schema, a catalog
// snapshot, and per-batch column reads. lib/database implements it
// locally; rpc/client implements it for remote execution.
type Source interface {
	Schema() schema.Schema
	Snapshot() (catalog.Snapshot, error)
	ReadColumn(rec catalog.BatchRecord, name string) ([]any, error)
}

// Result is one tabular query result.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Execute evaluates a query against a snapshot taken at call start.
// Commits that land after this point are invisible to the query.
func Execute(ctx context.Context, src Source, q Query) (*Result, error) {
	snap, err := src.Snapshot()
	if err != nil {
		return nil, err
	}

	switch t := q.(type) {
	case Pick:
		return executePick(ctx, src, snap, t)
	case Group:
		return executeGroup(ctx, src, snap, t)
	default:
		return nil, dberr.New(dberr.CodeInternal, "unknown query type %T", q)
	}
}

// executePick concatenates matching rows across batches in ascending
// sequence order, then applies the requested output ordering.
func executePick(ctx context.Context, src Source, snap catalog.Snapshot, q Pick) (*Result, error) {
	read := orderedUnion(q.Projection, filterColumns(q.Filters), q.OrderBy)
	if err := checkColumns(src.Schema(), read); err != nil {
		return nil, err
	}

	colIdx := make(map[string]int, len(read))
	for i, c := range read {
		colIdx[c] = i
	}

	var rows [][]any
	for _, rec := range snap.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readBatch(src, rec, read)
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < rec.Rows; i++ {
			if !matchRow(data, q.Filters, i) {
				continue
			}
			row := make([]any, len(read))
			for j, c := range read {
				row[j] = data[c][i]
			}
			rows = append(rows, row)
		}
	}

	sortRows(rows, colIdx, q.OrderBy)

	// Strip the columns that were only read for filtering or ordering.
	out := make([][]any, len(rows))
	for i, row := range rows {
		projected := make([]any, len(q.Projection))
		for j, c := range q.Projection {
			projected[j] = row[colIdx[c]]
		}
		out[i] = projected
	}

	if len(out) == 0 && q.Strict {
		return nil, dberr.New(dberr.CodeEmptyResult, "query matched no rows")
	}
	return &Result{Columns: q.Projection, Rows: out}, nil
}

// executeGroup folds matching rows into per-group accumulators, one
// batch at a time; the batches themselves are never all held in memory.
func executeGroup(ctx context.Context, src Source, snap catalog.Snapshot, q Group) (*Result, error) {
	sch := src.Schema()
	kind, ok := reducerByName(q.Reducer)
	if !ok {
		return nil, dberr.New(dberr.CodeInternal, "unknown reducer %q", q.Reducer)
	}

	// Value columns are the projected columns outside the group key.
	valueCols := make([]string, 0, len(q.Projection))
	for _, c := range q.Projection {
		if !slices.Contains(q.GroupBy, c) {
			valueCols = append(valueCols, c)
		}
	}
	if len(valueCols) == 0 {
		return nil, dberr.New(dberr.CodeInternal, "group query projects no value columns")
	}

	read := orderedUnion(q.GroupBy, valueCols, filterColumns(q.Filters))
	if err := checkColumns(sch, read); err != nil {
		return nil, err
	}
	for _, c := range valueCols {
		idx, _ := sch.ColumnIndex(c)
		if sch.Columns[idx].Type == schema.TypeString {
			return nil, dberr.New(dberr.CodeSchemaMismatch,
				"reducer %q requires a numeric column, %q is a string column", q.Reducer, c)
		}
	}

	type groupState struct {
		key  []any
		accs []colAcc
	}
	states := make(map[string]*groupState)
	var order []string // first-seen group order

	for _, rec := range snap.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readBatch(src, rec, read)
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < rec.Rows; i++ {
			if !matchRow(data, q.Filters, i) {
				continue
			}

			keyVals := make([]any, len(q.GroupBy))
			for j, c := range q.GroupBy {
				keyVals[j] = data[c][i]
			}
			key := groupKey(keyVals)

			st, ok := states[key]
			if !ok {
				st = &groupState{key: keyVals, accs: make([]colAcc, len(valueCols))}
				states[key] = st
				order = append(order, key)
			}

			prov := Provenance{Batch: rec.Name, Sequence: rec.Sequence, Row: i}
			for ci, c := range valueCols {
				st.accs[ci].update(asFloat(data[c][i]), prov)
			}
		}
	}

	// Assemble the output table.
	columns := append([]string{}, q.GroupBy...)
	for _, c := range valueCols {
		columns = append(columns, outputColumns(kind, c)...)
	}
	colIdx := make(map[string]int, len(columns))
	for i, c := range columns {
		colIdx[c] = i
	}

	rows := make([][]any, 0, len(order))
	for _, key := range order {
		st := states[key]
		row := append([]any{}, st.key...)
		for ci := range valueCols {
			row = append(row, outputValues(kind, &st.accs[ci])...)
		}
		rows = append(rows, row)
	}

	for _, c := range q.OrderBy {
		if _, ok := colIdx[c]; !ok {
			return nil, dberr.New(dberr.CodeUnknownColumn, "order by column %q not in result", c)
		}
	}
	sortRows(rows, colIdx, q.OrderBy)

	if len(rows) == 0 && q.Strict {
		return nil, dberr.New(dberr.CodeEmptyResult, "query matched no rows")
	}
	return &Result{Columns: columns, Rows: rows}, nil
}

// --------------------------------------------------------------------------
// Column Access
// --------------------------------------------------------------------------

// readBatch reads exactly the named columns of one batch. This is the
// column-pruning property: nothing else is ever opened.
func readBatch(src Source, rec catalog.BatchRecord, cols []string) (map[string][]any, error) {
	data := make(map[string][]any, len(cols))
	for _, c := range cols {
		values, err := src.ReadColumn(rec, c)
		if err != nil {
			return nil, err
		}
		data[c] = values
	}
	return data, nil
}

// checkColumns verifies that every referenced column exists in the schema.
func checkColumns(sch schema.Schema, cols []string) error {
	for _, c := range cols {
		if _, ok := sch.ColumnIndex(c); !ok {
			return dberr.New(dberr.CodeUnknownColumn, "column %q not in schema", c)
		}
	}
	return nil
}

// filterColumns returns the columns referenced by the filters.
func filterColumns(filters []Filter) []string {
	cols := make([]string, len(filters))
	for i, f := range filters {
		cols[i] = f.Column
	}
	return cols
}

// orderedUnion merges column lists preserving first occurrence order.
func orderedUnion(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, c := range list {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Predicates and Ordering
// --------------------------------------------------------------------------

// matchRow evaluates all filters against row i (AND semantics).
func matchRow(data map[string][]any, filters []Filter, i int64) bool {
	for _, f := range filters {
		if !evalFilter(data[f.Column][i], f) {
			return false
		}
	}
	return true
}

// evalFilter evaluates one predicate. Values of incomparable types never
// match.
func evalFilter(v any, f Filter) bool {
	if f.Op == OpIn {
		for _, want := range f.Value.([]any) {
			if cmp, ok := compare(v, want); ok && cmp == 0 {
				return true
			}
		}
		return false
	}

	cmp, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}

// compare orders two values. Numbers (int64, float64) are compared
// numerically regardless of representation; strings lexically. The
// boolean is false for incomparable type combinations.
func compare(a, b any) (int, bool) {
	af, aNum := asNumber(a)
	bf, bNum := asNumber(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// asFloat converts a validated numeric column value.
func asFloat(v any) float64 {
	f, _ := asNumber(v)
	return f
}

// sortRows stably sorts rows by the orderBy columns, ascending.
func sortRows(rows [][]any, colIdx map[string]int, orderBy []string) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, c := range orderBy {
			idx := colIdx[c]
			cmp, ok := compare(rows[i][idx], rows[j][idx])
			if !ok || cmp == 0 {
				continue
			}
			return cmp < 0
		}
		return false
	})
}

// groupKey builds a map key from the group column values.
func groupKey(vals []any) string {
	var sb strings.Builder
	for _, v := range vals {
		fmt.Fprintf(&sb, "%v\x1f", v)
	}
	return sb.String()
}
