// Package database implements the load-results database handle: the
// component that ties the schema, the batch catalog, the column files and
// the writer lock together into the engine's public operations.
//
// A database lives in one directory:
//
//	<root>/schema.json        fixed column schema, written at creation
//	<root>/catalog.json       the batch catalog image (see lib/catalog)
//	<root>/batches/<name>/    one column file per schema column
//	<root>/staging/           in-flight ingestion data, garbage after a crash
//	<root>/attachments/       opaque auxiliary files
//
// Lifecycle is explicit: Create or Open a handle, operate, Close. There
// is no ambient "current database" state.
//
// Operations:
//
//   - Ingest stages the incoming rows into column files, computes the
//     batch checksum over the final bytes, and only then takes the
//     single-writer lock to move the files into place and commit the
//     catalog record. Staging happens entirely outside the lock; any
//     failure discards the staged files and leaves the catalog untouched.
//
//   - Restore truncates the catalog to a named batch, failing fast with
//     WriterBusy instead of queueing behind a running ingestion. The
//     operation is irreversible by design: truncated records are gone
//     from the catalog and their column files become garbage.
//
//   - Check recomputes every live batch checksum and reports corruption
//     and missing files as a structured result, never as an error.
//
//   - AdoptBatch commits an already-staged batch under its original
//     record, used by the replication protocol so synced batches pass
//     through the exact same commit path as local ingestion.
//
// Mutating operations take a sessions.Capability and fail with
// Unauthorized before any I/O if it is insufficient.
package database
