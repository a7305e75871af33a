// Package catalog implements the durable batch catalog, the single
// authoritative record of which data exists in a database.
//
// The catalog is an ordered sequence of immutable BatchRecords plus the
// database schema version. Sequence numbers are contiguous and strictly
// increasing, live batch names are unique, and any column file not
// referenced by a live record is garbage by definition.
//
// Key Components:
//
//   - BatchRecord: one committed unit of ingested data with its manifest
//     (ordered column-file references with byte sizes) and a sha256
//     content checksum over all referenced files. Records never change
//     after commit.
//
//   - Snapshot: an immutable copy of the record sequence handed to
//     readers. Queries and integrity checks operate on snapshots and are
//     unaffected by concurrent commits.
//
//   - ICatalogStore: Read/Commit/Truncate. Both mutators rewrite the
//     whole catalog image to a temporary file and atomically rename it
//     over the previous one, so a crash at any point leaves either the
//     old or the new image fully intact - a reader can never observe a
//     partially written catalog.
//
// The file store persists the catalog as a single versioned JSON image
// (catalog.json). Mutual exclusion between writers is the caller's
// responsibility (see lib/lockmgr); the store itself only guards its
// in-process state.
package catalog
