// Package lockmgr provides the single-writer lock of a database.
//
// Each database has exactly one writer lock, keyed by its root path. The
// ingestion commit step, rollback and the write side of replication all
// take it; readers never do. Acquire blocks (honouring the context) while
// TryAcquire fails fast - rollback uses the latter so an operator-issued
// restore never queues silently behind a long-running ingestion.
//
// Locks are held by opaque owner tokens generated from crypto/rand, so a
// release with a stale token cannot steal a lock that has since been
// re-acquired by someone else. The lock table is a concurrent map
// (xsync.MapOf); entries are created lazily per key and never removed,
// matching the small, stable set of open databases per process.
package lockmgr
