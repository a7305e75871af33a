package dberr

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

// Code identifies a class of operational failure.
type Code uint64

const (
	CodeInternal           Code = iota // 0: Unexpected internal failure (I/O, encoding, ...).
	CodeSchemaMismatch                 // 1: Ingested rows do not conform to the database schema.
	CodeNameCollision                  // 2: Batch name already exists in the live catalog.
	CodeCheckpointNotFound             // 3: Restore target batch does not exist.
	CodeWriterBusy                     // 4: Writer lock could not be acquired promptly.
	CodeUnknownColumn                  // 5: Query references a column absent from the schema.
	CodeEmptyResult                    // 6: Strict query matched zero rows.
	CodeDivergentHistory               // 7: Replica catalogs disagree where both hold data.
	CodeCorrupted                      // 8: Recomputed batch checksum disagrees with the catalog.
	CodeMissingData                    // 9: A manifest column file is missing on disk.
	CodeUnauthorized                   // 10: Caller lacks the capability for the operation.
)

func (c Code) String() string {
	switch c {
	case CodeInternal:
		return "Internal"
	case CodeSchemaMismatch:
		return "SchemaMismatch"
	case CodeNameCollision:
		return "NameCollision"
	case CodeCheckpointNotFound:
		return "CheckpointNotFound"
	case CodeWriterBusy:
		return "WriterBusy"
	case CodeUnknownColumn:
		return "UnknownColumn"
	case CodeEmptyResult:
		return "EmptyResult"
	case CodeDivergentHistory:
		return "DivergentHistory"
	case CodeCorrupted:
		return "Corrupted"
	case CodeMissingData:
		return "MissingData"
	case CodeUnauthorized:
		return "Unauthorized"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the typed error returned by all engine operations.
type Error struct {
	Code Code   // The error code
	Msg  string // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("lrdb (%s): %s", e.Code, e.Msg)
}

// New creates a new *Error with the given code and printf-style message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new *Error with the given code, keeping the original
// error text as the message suffix.
func Wrap(code Code, err error, context string) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf("%s: %v", context, err),
	}
}

// Is reports whether err is (or wraps) an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal if err carries no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
