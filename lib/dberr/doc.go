// Package dberr defines the typed error taxonomy shared by all lrdb
// components. Every operational failure of the storage engine is reported
// as an *Error carrying one of the Code constants, so callers can react
// to specific conditions (a name collision, a busy writer lock, a
// diverged replica) instead of string-matching messages.
//
// The package focuses on:
//   - A closed set of error codes mirroring the engine's contract
//   - errors.As compatible matching via the Is helper
//   - Uniform formatting of error messages
//
// Integrity findings (Corrupted, MissingData) are normally reported as
// structured results rather than raised errors; their codes exist here for
// the rare places where they must travel through an error value (e.g. the
// RPC boundary).
package dberr
