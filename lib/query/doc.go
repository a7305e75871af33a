// Package query implements the declarative query engine over the
// columnar batches of a database.
//
// Queries are stateless templates in one of two shapes:
//
//   - Pick: return the rows matching the filter predicates, concatenated
//     across batches in ascending commit order, optionally re-ordered by
//     a final sort pass.
//
//   - Group: aggregate matching rows per group key with a named reducer.
//     The accumulator is updated incrementally batch by batch, so the
//     matched data of all batches is never resident at once.
//
// Templates arrive as JSON documents (projection, filters, mode, groupBy,
// reducer, orderBy, strict); unknown fields are rejected and the document
// is mapped eagerly to the Pick/Group tagged union at parse time.
//
// Execution takes a catalog snapshot once at call start, so an in-flight
// query is unaffected by concurrent commits (snapshot isolation), and
// reads only the column files named by the template - columns outside
// the projection, filters, grouping and ordering are never touched.
//
// The reducer registry is closed: max, min and envelope. All three carry
// provenance (originating batch) for each extreme value; ties keep the
// value seen first, i.e. the earliest-committed batch and lowest row.
package query
