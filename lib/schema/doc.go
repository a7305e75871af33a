// Package schema describes the fixed column layout of a load-results
// database and provides the codec for the columnar batch files.
//
// A database is created with one Schema (load case id, element/node id,
// subcase, result component values plus free metadata columns) and every
// ingested row must conform to it. The package focuses on:
//
//   - Schema and Column definitions with three value types
//     (int64, float64, string)
//   - Row validation against a Schema (typed SchemaMismatch errors)
//   - RowReader, the opaque consume-once iterable handed to the
//     ingestion pipeline by external result-file parsers
//   - The on-disk column file format: one file per column per batch,
//     fixed-width little-endian numbers and length-prefixed strings
//
// The column files written here are the only data files of the engine;
// the catalog package records their manifests and checksums.
package schema
