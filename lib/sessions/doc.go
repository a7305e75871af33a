// Package sessions provides the authentication store and the capability
// gate consumed by the storage engine.
//
// The engine itself treats authorization as a plain value: every mutating
// operation takes a Capability and fails with Unauthorized before doing
// any I/O if it is insufficient. This package is where those values come
// from in a running node.
//
// Key Components:
//
//   - Capability: none < read < write < admin. Write covers ingestion,
//     rollback, replication's follower side and attachment removal;
//     admin additionally covers user management and database removal.
//
//   - Store: a JSON users file with bcrypt password hashes
//     (golang.org/x/crypto/bcrypt), an admin flag and per-database
//     grants. Login verifies a password and issues an opaque uuid token;
//     live tokens are kept in a concurrent map and never persisted.
//
// The users file is rewritten whole on every change, temp-file + rename,
// with the same swap discipline as the catalog image.
package sessions
