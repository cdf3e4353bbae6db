package db

import "errors"

// Sentinel errors for store operations.
var (
	// ErrSchema marks a failed extension/table/index creation. Fatal at
	// startup: no ingest or retrieve may run after it.
	ErrSchema = errors.New("db: schema setup failed")

	// ErrPoolExhausted marks an operation that could not obtain a pooled
	// connection within the configured acquire timeout.
	ErrPoolExhausted = errors.New("db: no connection available within acquire timeout")
)

// Op constants name the SQL operation for error context.
const (
	OpCreateExtension = "CREATE EXTENSION"
	OpCreateTable     = "CREATE TABLE"
	OpCreateIndex     = "CREATE INDEX"
	OpInsert          = "INSERT"
	OpSearch          = "SELECT"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
