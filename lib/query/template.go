package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/feaforge/lrdb/lib/dberr"
)

// --------------------------------------------------------------------------
// Filters
// --------------------------------------------------------------------------

// FilterOp is a comparison operator over an identifying column.
type FilterOp string

const (
	OpEq FilterOp = "eq"
	OpNe FilterOp = "ne"
	OpLt FilterOp = "lt"
	OpLe FilterOp = "le"
	OpGt FilterOp = "gt"
	OpGe FilterOp = "ge"
	OpIn FilterOp = "in"
)

func validOp(op FilterOp) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn:
		return true
	}
	return false
}

// Filter is one row-wise predicate. For OpIn, Value must be a list.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// --------------------------------------------------------------------------
// Tagged Query Union
// --------------------------------------------------------------------------

// Query is a validated, executable query: either a Pick or a Group.
type Query interface {
	// Mode returns the query mode name ("pick" or "group").
	Mode() string
}

// Pick returns matching rows verbatim.
type Pick struct {
	Projection []string
	Filters    []Filter
	OrderBy    []string
	Strict     bool
}

func (Pick) Mode() string { return "pick" }

// Group aggregates matching rows per group key with a named reducer.
type Group struct {
	Projection []string
	Filters    []Filter
	GroupBy    []string
	Reducer    string
	OrderBy    []string
	Strict     bool
}

func (Group) Mode() string { return "group" }

// --------------------------------------------------------------------------
// Wire Document
// --------------------------------------------------------------------------

// document is the JSON encoding of a query template.
type document struct {
	Projection []string `json:"projection"`
	Filters    []Filter `json:"filters"`
	Mode       string   `json:"mode"`
	GroupBy    []string `json:"groupBy"`
	Reducer    string   `json:"reducer"`
	OrderBy    []string `json:"orderBy"`
	Strict     bool     `json:"strict"`
}

// Parse decodes a template document and maps it to the tagged union,
// validating its shape eagerly. Unknown fields are rejected. Column
// existence is checked later against the database schema at execution.
func Parse(data []byte) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternal, err, "decode query template")
	}

	if len(doc.Projection) == 0 {
		return nil, dberr.New(dberr.CodeInternal, "query template has an empty projection")
	}
	for _, f := range doc.Filters {
		if !validOp(f.Op) {
			return nil, dberr.New(dberr.CodeInternal, "unknown filter operator %q", f.Op)
		}
		if f.Op == OpIn {
			if _, ok := f.Value.([]any); !ok {
				return nil, dberr.New(dberr.CodeInternal,
					"filter %q: operator in requires a list value", f.Column)
			}
		}
	}

	switch doc.Mode {
	case "pick":
		if len(doc.GroupBy) > 0 || doc.Reducer != "" {
			return nil, dberr.New(dberr.CodeInternal, "pick queries take no groupBy or reducer")
		}
		return Pick{
			Projection: doc.Projection,
			Filters:    doc.Filters,
			OrderBy:    doc.OrderBy,
			Strict:     doc.Strict,
		}, nil
	case "group":
		if len(doc.GroupBy) == 0 {
			return nil, dberr.New(dberr.CodeInternal, "group queries require groupBy")
		}
		if _, ok := reducerByName(doc.Reducer); !ok {
			return nil, dberr.New(dberr.CodeInternal, "unknown reducer %q", doc.Reducer)
		}
		return Group{
			Projection: doc.Projection,
			Filters:    doc.Filters,
			GroupBy:    doc.GroupBy,
			Reducer:    doc.Reducer,
			OrderBy:    doc.OrderBy,
			Strict:     doc.Strict,
		}, nil
	default:
		return nil, dberr.New(dberr.CodeInternal, "unknown query mode %q", doc.Mode)
	}
}

// Encode serializes a query back into its document form. Used by the RPC
// client to ship templates to a remote node.
func Encode(q Query) ([]byte, error) {
	var doc document
	switch t := q.(type) {
	case Pick:
		doc = document{
			Projection: t.Projection, Filters: t.Filters,
			Mode: "pick", OrderBy: t.OrderBy, Strict: t.Strict,
		}
	case Group:
		doc = document{
			Projection: t.Projection, Filters: t.Filters,
			Mode: "group", GroupBy: t.GroupBy, Reducer: t.Reducer,
			OrderBy: t.OrderBy, Strict: t.Strict,
		}
	default:
		return nil, fmt.Errorf("unknown query type %T", q)
	}
	return json.Marshal(doc)
}
